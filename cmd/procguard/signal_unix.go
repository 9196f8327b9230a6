//go:build !windows

package main

import "syscall"

func sendShutdownSignal(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

func sendReloadSignal(pid int) error {
	return syscall.Kill(pid, syscall.SIGHUP)
}
