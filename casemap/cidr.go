package casemap

import "net"

// MatchCIDR parses pattern as "a.b.c.d/len" (or an IPv6 equivalent) and
// reports whether ip falls within it. A pattern without a "/" is treated as
// a bare address and compared for exact equality.
func MatchCIDR(pattern string, ip net.IP) bool {
	if ip == nil {
		return false
	}

	if _, network, err := net.ParseCIDR(pattern); err == nil {
		return network.Contains(ip)
	}

	candidate := net.ParseIP(pattern)
	if candidate == nil {
		return false
	}
	return candidate.Equal(ip)
}
