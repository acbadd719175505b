package gateway

import (
	"net"
	"strings"
)

// IsLoopback reports whether host names the local machine: "localhost",
// any address in 127.0.0.0/8, or ::1. Brackets around IPv6 literals are
// accepted.
func IsLoopback(host string) bool {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
