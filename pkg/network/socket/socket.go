// Package socket opens listeners that roll over to the next free port.
package socket

import (
	"errors"
	"net"
	"os"
	"runtime"
	"syscall"
)

const (
	listenAttempts = 42
	udpBufferSize  = 16 * 1024 * 1024
)

// ListenUDP opens a UDP socket on the port or on one of the next free ones.
// The zero port picks any free port.
func ListenUDP(port int) (*net.UDPConn, error) {
	conn, err := udp(port)
	if err == nil || !IsPortBusyError(err) {
		return conn, err
	}
	for i := port + 1; i < port+listenAttempts; i++ {
		if conn, err = udp(i); err == nil {
			return conn, nil
		}
	}
	return nil, errors.New("no available ports")
}

func udp(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(udpBufferSize)
	_ = conn.SetWriteBuffer(udpBufferSize)
	return conn, nil
}

// IsPortBusyError tests if the given error is one of
// the port busy errors.
func IsPortBusyError(err error) bool {
	if err == nil {
		return false
	}
	var eOsSyscall *os.SyscallError
	if !errors.As(err, &eOsSyscall) {
		return false
	}
	var errErrno syscall.Errno
	if !errors.As(eOsSyscall, &errErrno) {
		return false
	}
	if errErrno == syscall.EADDRINUSE {
		return true
	}
	const WSAEADDRINUSE = 10048
	return runtime.GOOS == "windows" && errErrno == WSAEADDRINUSE
}
