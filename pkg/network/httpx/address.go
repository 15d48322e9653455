package httpx

import (
	"net"
	"strconv"
	"strings"
)

type Address string

// SplitHostPort splits the address into host and a port number,
// an absent or broken port is 0.
func (a Address) SplitHostPort() (string, int) {
	host, portStr, err := net.SplitHostPort(string(a))
	if err != nil {
		return string(a), 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// buildAddress joins network host from the first param
// with the port value of a listener from the second param.
//
// As example, address host.com:8080 and listener 123.123.123.123:8888 will be
// transformed to host.com:8888.
func buildAddress(address string, l Listener) string {
	addr, _, err := net.SplitHostPort(address)
	if err != nil {
		addr = address
	}
	if addr == "" {
		addr = "localhost"
	}

	port := l.GetPort()
	if port > 0 && port != 80 && port != 443 {
		addr += ":" + strconv.Itoa(port)
	}
	return addr
}

func extractHost(address string) string {
	if i := strings.Index(address, ":"); i >= 0 {
		return address[:i]
	}
	return address
}
