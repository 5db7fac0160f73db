package client

import "golang.org/x/sys/unix"

func gettid() int64 {
	return int64(unix.Gettid())
}
