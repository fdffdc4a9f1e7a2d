// Package header filters headers crossing the chat relay.
//
// The relay sits between the portal client and an OpenAI-compatible upstream:
//
//	Client <--> Relay <--> Upstream model API
//
// Each leg negotiates its own connection, compression and credentials, so
// only end-to-end metadata is copied across.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequestIDHeader correlates a client request with its upstream call.
const RequestIDHeader = "X-Request-Id"

// Handler manages headers between relay connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipRequest is the set of client request headers that never reach the
// upstream. Keys are in canonical form, as fasthttp reports them.
var skipRequest = map[string]struct{}{
	"Connection": {},

	// Rewritten by http.Transport for the upstream host.
	"Host": {},

	// http.Transport negotiates gzip itself and decompresses transparently.
	"Accept-Encoding": {},

	// The relay builds its own body.
	"Content-Length": {},
	"Content-Type":   {},

	// Client credentials are for the relay. The upstream gets the relay key.
	"Authorization": {},
	"Apikey":        {},
	"Cookie":        {},
}

// skipResponse is the set of upstream response headers that are not copied
// back to the client.
var skipResponse = map[string]struct{}{
	"Connection": {},

	// fasthttp chunks the client response independently.
	"Transfer-Encoding": {},

	// The body was decompressed by http.Transport.
	"Content-Encoding": {},

	// Length of the upstream body, not of what the client receives.
	"Content-Length": {},

	// Upstream cookies and CORS policy belong to the upstream origin.
	"Set-Cookie":                       {},
	"Access-Control-Allow-Origin":      {},
	"Access-Control-Allow-Headers":     {},
	"Access-Control-Allow-Credentials": {},
}

// SetUpstreamRequestHeaders copies forwardable client headers onto req.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies forwardable upstream headers onto the
// client response.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}
