package authclient

import (
	"net/http"
	"strings"
)

// DefaultPublicEndpoints lists the application paths that never carry
// credentials: the flows a user goes through before owning a session.
func DefaultPublicEndpoints() []string {
	return []string{
		"/login",
		"/register",
		"/register/confirm",
		"/verify-email",
		"/password-reset",
	}
}

// EndpointClassifier decides which requests the interceptor stages act on.
// Public endpoints skip credential attachment and 401 handling; external
// hosts (third-party asset CDNs) additionally skip error normalization, so
// expected cross-origin failures stay quiet.
type EndpointClassifier struct {
	publicPaths   []string
	externalHosts []string
}

// NewEndpointClassifier builds a classifier from the config's allow-lists.
func NewEndpointClassifier(cfg Config) *EndpointClassifier {
	if cfg == nil {
		cfg = SimpleConfig{}
	}
	return &EndpointClassifier{
		publicPaths:   cfg.GetPublicEndpoints(),
		externalHosts: cfg.GetExternalHosts(),
	}
}

// IsPublic reports whether the request targets a public auth flow or an
// external host. Public paths match at any segment boundary, so an API
// mounted under a base path ("/api/login") classifies the same as one at
// the root.
func (c *EndpointClassifier) IsPublic(req *http.Request) bool {
	if c.IsExternal(req) {
		return true
	}
	if req.URL == nil {
		return false
	}

	path := req.URL.Path
	for _, p := range c.publicPaths {
		if matchesPublicPath(path, p) {
			return true
		}
	}
	return false
}

// matchesPublicPath reports whether publicPath occurs in path aligned to
// segment boundaries on both sides: "/api/login" and "/login/confirm" match
// "/login", "/loginhistory" and "/users/login-stats" do not.
func matchesPublicPath(path, publicPath string) bool {
	if publicPath == "" {
		return false
	}
	if !strings.HasPrefix(publicPath, "/") {
		publicPath = "/" + publicPath
	}

	for idx := 0; ; {
		j := strings.Index(path[idx:], publicPath)
		if j < 0 {
			return false
		}
		end := idx + j + len(publicPath)
		if end == len(path) || path[end] == '/' {
			return true
		}
		idx += j + 1
	}
}

// IsExternal reports whether the request leaves the application for a known
// third-party host.
func (c *EndpointClassifier) IsExternal(req *http.Request) bool {
	if req.URL == nil {
		return false
	}

	host := req.URL.Hostname()
	for _, h := range c.externalHosts {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}
