//go:build !linux

package mtucontroller

import "fmt"

// QueryMSS has no portable equivalent to Linux's TCP_INFO outside the
// epoll build; the periodic MSS poll is skipped on these targets and
// the bisection-driven estimate (Ok/NotOk) is relied on exclusively.
func QueryMSS(fd int) (int, error) {
	return 0, fmt.Errorf("mtucontroller: MSS polling unsupported on this platform")
}
