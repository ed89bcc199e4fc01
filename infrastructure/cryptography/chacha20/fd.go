package chacha20

import (
	"os"
	"time"
)

// fdToFile wraps a raw file descriptor handed over on the control
// socket (spec §4.4 WAIT_FD) as an *os.File so net.FileConn can adopt
// it. The returned File takes ownership of fd.
func fdToFile(fd int) *os.File {
	return os.NewFile(uintptr(fd), "dtls-udp-socket")
}

func timeWrap(d time.Duration) time.Time {
	return time.Now().Add(d)
}
