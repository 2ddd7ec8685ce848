//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func osMap(f *os.File, size int, prefault bool) ([]byte, func([]byte) error, error) {
	flags := unix.MAP_SHARED
	if prefault {
		flags |= populateFlag
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, flags)
	if err != nil {
		return nil, nil, err
	}

	return data, unix.Munmap, nil
}

func osMapRW(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}

	return data, unix.Munmap, nil
}

func osSync(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

var madvice = [...]int{
	AdviceNormal:     unix.MADV_NORMAL,
	AdviceSequential: unix.MADV_SEQUENTIAL,
	AdviceRandom:     unix.MADV_RANDOM,
	AdviceWillNeed:   unix.MADV_WILLNEED,
	AdviceDontNeed:   unix.MADV_DONTNEED,
}

func osAdvise(data []byte, a Advice) error {
	if len(data) == 0 || a < 0 || int(a) >= len(madvice) {
		return nil
	}
	// Sub-ranges need not be page aligned; EINVAL is ignored.
	if err := unix.Madvise(data, madvice[a]); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
