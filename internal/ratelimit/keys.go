package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// UnknownKey is returned when a request carries no identity signal. All such
// callers share one budget.
const UnknownKey = "unknown"

// Key strategy names accepted by ExtractorFor.
const (
	StrategyRemoteAddr   = "remote_addr"
	StrategyForwardedFor = "forwarded"
	StrategyHeader       = "header"
)

// KeyExtractor derives the caller identity used to partition counters.
// Extract must never fail; it returns UnknownKey when nothing identifies the caller.
type KeyExtractor interface {
	Extract(r *http.Request) string
}

// KeyFunc adapts an ordinary function to KeyExtractor. An empty result maps
// to UnknownKey.
type KeyFunc func(r *http.Request) string

func (f KeyFunc) Extract(r *http.Request) string {
	if key := f(r); key != "" {
		return key
	}
	return UnknownKey
}

// RemoteAddr keys requests by the connection's IP address. It is the default.
type RemoteAddr struct{}

func (RemoteAddr) Extract(r *http.Request) string {
	return hostOnly(r.RemoteAddr)
}

// ForwardedFor trusts proxy headers: the first X-Forwarded-For entry, then
// X-Real-IP, then the connection address. Only use it behind a proxy that
// overwrites these headers.
type ForwardedFor struct{}

func (ForwardedFor) Extract(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return hostOnly(r.RemoteAddr)
}

// Header keys requests by a header value such as an API key. Requests without
// the header are keyed by Fallback, or pooled under UnknownKey when it is nil.
type Header struct {
	Name     string
	Fallback KeyExtractor
}

func (h Header) Extract(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(h.Name)); v != "" {
		return "header:" + v
	}
	if h.Fallback != nil {
		return h.Fallback.Extract(r)
	}
	return UnknownKey
}

// ExtractorFor maps a configured strategy name to an extractor. The header
// strategy falls back to the connection address.
func ExtractorFor(strategy, header string) (KeyExtractor, error) {
	switch strategy {
	case "", StrategyRemoteAddr:
		return RemoteAddr{}, nil
	case StrategyForwardedFor:
		return ForwardedFor{}, nil
	case StrategyHeader:
		if header == "" {
			return nil, &ConfigError{Field: "key_header", Reason: "is required for the header key strategy"}
		}
		return Header{Name: header, Fallback: RemoteAddr{}}, nil
	default:
		return nil, &ConfigError{Field: "key_strategy", Reason: fmt.Sprintf("unsupported strategy %q", strategy)}
	}
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// No port, e.g. a unix socket peer or a bare address.
		host = addr
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return UnknownKey
	}
	return host
}
