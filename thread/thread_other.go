// Copyright 2016 by Thorsten von Eicken, see LICENSE file

//go:build !linux

package thread

import "errors"

// DefaultPriority is somewhere in the lower middle of the realtime range.
const DefaultPriority = 10

// Realtime is only supported on linux.
func Realtime(priority int) error {
	return errors.New("thread: realtime scheduling is only supported on linux")
}
