//go:build !linux

package mmap

const (
	populateFlag  = 0
	populateOnMap = false
)
