// Copyright 2016 by Thorsten von Eicken, see LICENSE file

//go:build linux

// Package thread gives a goroutine its own kernel thread with realtime scheduling so that
// polling the radio is not delayed by the rest of the process.
package thread

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Scheduling policies accepted by Realtime.
const (
	FIFO = unix.SCHED_FIFO // fifo scheduling policy
	RR   = unix.SCHED_RR   // round-robin scheduling policy
)

// DefaultPriority is somewhere in the lower middle of the realtime range.
const DefaultPriority = 10

type schedParam struct {
	Priority int32
}

// Realtime locks the calling goroutine to its own kernel thread and elevates that
// thread's priority to realtime using the round-robin policy. The goroutine stays locked
// even if raising the priority fails, which typically happens when not running as root.
func Realtime(priority int) error {
	if priority < 1 || priority > 99 {
		return fmt.Errorf("thread: priority %d out of range 1..99", priority)
	}
	// First pin goroutine to its own kernel thread.
	runtime.LockOSThread()
	tid := unix.Gettid()
	param := schedParam{int32(priority)}
	_, _, errno := unix.RawSyscall(unix.SYS_SCHED_SETSCHEDULER, uintptr(tid),
		uintptr(RR), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		if errors.Is(errno, unix.EPERM) {
			return fmt.Errorf("thread: realtime priority needs CAP_SYS_NICE: %w", errno)
		}
		return fmt.Errorf("thread: sched_setscheduler: %w", errno)
	}
	return nil
}
