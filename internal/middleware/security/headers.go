package security

import (
	"net/http"
	"strconv"
	"strings"
)

// Directive is one Content-Security-Policy directive and its sources.
type Directive struct {
	Name    string
	Sources []string
}

// HeaderPolicy lists the response headers set on every request.
type HeaderPolicy struct {
	CSP []Directive
	// Static holds headers sent unchanged, keyed by canonical name.
	Static map[string]string
	// HSTSMaxAge, when positive, adds Strict-Transport-Security to TLS
	// responses only.
	HSTSMaxAge     int
	HSTSSubdomains bool
}

// DefaultHeaderPolicy allows htmx from unpkg and nothing else off-site.
func DefaultHeaderPolicy() HeaderPolicy {
	return HeaderPolicy{
		CSP: []Directive{
			{"default-src", []string{"'self'"}},
			{"script-src", []string{"'self'", "https://unpkg.com"}},
			{"style-src", []string{"'self'", "'unsafe-inline'"}},
			{"img-src", []string{"'self'", "data:"}},
			{"connect-src", []string{"'self'"}},
			{"object-src", []string{"'none'"}},
			{"frame-ancestors", []string{"'none'"}},
			{"base-uri", []string{"'self'"}},
			{"form-action", []string{"'self'"}},
		},
		Static: map[string]string{
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
		},
		HSTSMaxAge:     31536000,
		HSTSSubdomains: true,
	}
}

// ContentSecurityPolicy renders the CSP header value.
func (p HeaderPolicy) ContentSecurityPolicy() string {
	parts := make([]string, 0, len(p.CSP))
	for _, d := range p.CSP {
		parts = append(parts, strings.TrimSpace(d.Name+" "+strings.Join(d.Sources, " ")))
	}
	return strings.Join(parts, "; ")
}

// Headers writes the policy onto every response. The header set is built
// once at construction.
type Headers struct {
	fixed http.Header
	hsts  string
}

func NewHeaders(p HeaderPolicy) *Headers {
	fixed := http.Header{}
	for name, value := range p.Static {
		if value != "" {
			fixed.Set(name, value)
		}
	}
	if csp := p.ContentSecurityPolicy(); csp != "" {
		fixed.Set("Content-Security-Policy", csp)
	}
	h := &Headers{fixed: fixed}
	if p.HSTSMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(p.HSTSMaxAge)
		if p.HSTSSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

func (h *Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dst := w.Header()
		for name, values := range h.fixed {
			dst[name] = values
		}
		if r.TLS != nil && h.hsts != "" {
			dst.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware marks responses cacheable for maxAge seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
