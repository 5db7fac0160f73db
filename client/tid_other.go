//go:build !linux

package client

func gettid() int64 { return 0 }
