//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package main

// isTerminal is always false where termios is unavailable.
func isTerminal(fd int) bool {
	return false
}
