package httputil

import (
	"net"
	"net/http"
)

// ClientIP returns the request's remote IP without the port.
// Behind a trusted proxy the RealIP middleware has already put the client address there.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
