package security

import (
	"net/http"
	"net/http/httptest"
)

// newRequest builds a test request with an explicit peer address.
// An empty remoteAddr simulates a request with no resolvable source.
func newRequest(method, target, remoteAddr string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.RemoteAddr = remoteAddr
	return r
}
