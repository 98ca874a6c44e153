// Package blocklist rejects candidate links whose host matches a configured
// domain pattern.
package blocklist

import (
	"net/url"
	"slices"
	"strings"
)

// Blocklist stores exact hosts and suffix wildcards ("*.example.com" or
// ".example.com").
type Blocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

// New builds a Blocklist from patterns. It returns nil when no pattern is
// usable; a nil Blocklist blocks nothing.
func New(patterns []string) *Blocklist {
	b := &Blocklist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, "*."):
			b.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			b.addSuffix(strings.TrimPrefix(value, "."))
		default:
			b.exact[value] = struct{}{}
		}
	}
	if len(b.exact) == 0 && len(b.suffixes) == 0 {
		return nil
	}
	return b
}

func (b *Blocklist) addSuffix(suffix string) {
	if suffix == "" || slices.Contains(b.suffixes, suffix) {
		return
	}
	b.suffixes = append(b.suffixes, suffix)
}

// Blocked reports whether link points at a blocked host. Unparseable links
// are not blocked; the fetch reports them.
func (b *Blocklist) Blocked(link string) bool {
	if b == nil {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	return b.BlockedHost(u.Hostname())
}

// BlockedHost reports whether host matches a pattern.
func (b *Blocklist) BlockedHost(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
