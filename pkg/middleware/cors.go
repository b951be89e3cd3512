package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access to the storefront.
type CORSConfig struct {
	// AllowedOrigins lists exact origins such as "https://shop.example". "*"
	// admits any origin.
	AllowedOrigins []string
	// AllowedMethods defaults to the cart API verbs.
	AllowedMethods []string
	// AllowedHeaders defaults to Accept, Content-Type, Last-Event-ID and the
	// correlation header.
	AllowedHeaders []string
	ExposedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds; 0 means one hour.
	MaxAge           int
	AllowCredentials bool
	// Environment "development" admits any origin regardless of the list.
	Environment string
}

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Accept", "Content-Type", "Last-Event-ID", CorrelationHeader}
)

// DefaultCORSConfig returns a permissive configuration for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: defaultCORSMethods,
		AllowedHeaders: defaultCORSHeaders,
		ExposedHeaders: []string{CorrelationHeader},
		MaxAge:         3600,
		Environment:    "development",
	}
}

// corsPolicy is a CORSConfig with its header values precomputed.
type corsPolicy struct {
	anyOrigin   bool
	origins     []string
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = 3600
	}
	return corsPolicy{
		anyOrigin:   cfg.Environment == "development" || slices.Contains(cfg.AllowedOrigins, "*"),
		origins:     cfg.AllowedOrigins,
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(methods, ", "),
		headers:     strings.Join(headers, ", "),
		exposed:     strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:      strconv.Itoa(maxAge),
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not admitted. Credentialed responses never use "*".
func (p corsPolicy) allowOrigin(origin string) string {
	switch {
	case p.anyOrigin && p.credentials:
		return origin
	case p.anyOrigin:
		return "*"
	case origin != "" && slices.Contains(p.origins, origin):
		return origin
	default:
		return ""
	}
}

// CORS sets cross-origin headers and answers preflight requests with 204.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")

			allowed := p.allowOrigin(origin)
			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if allowed != "*" {
					h.Add("Vary", "Origin")
				}
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.exposed != "" {
					h.Set("Access-Control-Expose-Headers", p.exposed)
				}
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Methods", p.methods)
				h.Set("Access-Control-Allow-Headers", p.headers)
				h.Set("Access-Control-Max-Age", p.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
