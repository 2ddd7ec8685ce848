//go:build linux

package mmap

import "golang.org/x/sys/unix"

const (
	populateFlag  = unix.MAP_POPULATE
	populateOnMap = true
)
