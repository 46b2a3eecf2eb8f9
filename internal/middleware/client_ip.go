package middleware

import (
	"log"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
)

var (
	trustedMu      sync.RWMutex
	trustedProxies []netip.Prefix
)

// SetTrustedProxies sets the peers whose X-Forwarded-For and X-Real-IP
// headers are honoured. Entries are CIDRs or single addresses.
func SetTrustedProxies(entries []string) {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		log.Printf("[Middleware] Ignoring invalid trusted proxy %q", entry)
	}

	trustedMu.Lock()
	trustedProxies = prefixes
	trustedMu.Unlock()
}

func isTrustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	trustedMu.RLock()
	defer trustedMu.RUnlock()
	for _, prefix := range trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// GetClientIP extracts the client IP from the request. Forwarding headers
// count only when the direct peer is a trusted proxy; X-Forwarded-For is then
// read right to left and the first hop that is not a trusted proxy wins.
func GetClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !isTrustedProxy(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if !isTrustedProxy(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}

	return peer
}
