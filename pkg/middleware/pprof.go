package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Maharab24/Bottle-Collection/pkg/httputil"
	"github.com/Maharab24/Bottle-Collection/pkg/logger"
)

// RegisterPprof mounts the profiling endpoints under /debug/pprof, reachable
// only from the allowed networks.
func RegisterPprof(r chi.Router, allowed []string, log *slog.Logger) {
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Use(IPAllowlist(allowed, log))
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.HandleFunc("/*", pprof.Index)
	})
}

// ParsePrefixes turns CIDRs or bare addresses into prefixes. Entries that
// parse as neither are returned in rejected.
func ParsePrefixes(entries []string) (prefixes []netip.Prefix, rejected []string) {
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		rejected = append(rejected, e)
	}
	return prefixes, rejected
}

// remoteAddr extracts the client address from r.RemoteAddr, with or without
// a port.
func remoteAddr(r *http.Request) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	a, err := netip.ParseAddr(strings.Trim(r.RemoteAddr, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

// IPAllowlist rejects requests whose remote address is outside allowed with
// 403. An empty list denies everyone.
func IPAllowlist(allowed []string, log *slog.Logger) func(http.Handler) http.Handler {
	prefixes, rejected := ParsePrefixes(allowed)
	for _, e := range rejected {
		log.Warn("ignoring malformed allowlist entry", slog.String("entry", e))
	}

	permit := func(a netip.Addr) bool {
		for _, p := range prefixes {
			if p.Contains(a) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a, ok := remoteAddr(r); ok && permit(a) {
				next.ServeHTTP(w, r)
				return
			}
			log.Warn("debug endpoint refused",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("path", r.URL.Path),
			)
			httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:      "FORBIDDEN",
					Message:   "debug endpoints are not available from this address",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				},
			})
		})
	}
}
