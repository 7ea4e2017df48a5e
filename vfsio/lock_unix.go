//go:build unix

package vfsio

import (
	"golang.org/x/sys/unix"
)

func (f *osFile) Lock(exclusive bool) error {
	how := unix.LOCK_SH | unix.LOCK_NB
	if exclusive {
		how = unix.LOCK_EX | unix.LOCK_NB
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		if err == unix.EWOULDBLOCK {
			return errBusy
		}
		return wrapHostError(err, f.Name())
	}
	return nil
}

func (f *osFile) Unlock() error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		return wrapHostError(err, f.Name())
	}
	return nil
}
