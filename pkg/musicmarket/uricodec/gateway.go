package uricodec

import (
	"fmt"
	"regexp"
	"strings"
)

// Gateway maps (cid, path) pairs to HTTP URLs served by a content gateway
type Gateway interface {
	// URL returns the gateway URL of path inside cid
	URL(cid, path string) string

	// CID extracts the CID from a gateway URL, or "" when the URL is not served by this gateway
	CID(rawURL string) string

	// Path returns the unescaped path part of a gateway URL
	Path(rawURL string) string
}

// SubdomainGateway serves content at https://<cid>.<host>/<path>
type SubdomainGateway struct {
	Host string
	re   *regexp.Regexp
}

// NewSubdomainGateway creates a subdomain gateway for host (e.g. "ipfs.dweb.link")
func NewSubdomainGateway(host string) *SubdomainGateway {
	host = strings.Trim(host, "/")
	return &SubdomainGateway{
		Host: host,
		re:   regexp.MustCompile(`(https://)(\w+)(\.` + regexp.QuoteMeta(host) + `)`),
	}
}

func (g *SubdomainGateway) URL(cid, path string) string {
	return fmt.Sprintf("https://%s.%s/%s", cid, g.Host, Escape(path))
}

func (g *SubdomainGateway) CID(rawURL string) string {
	m := g.re.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[2]
}

func (g *SubdomainGateway) Path(rawURL string) string {
	loc := g.re.FindStringIndex(rawURL)
	if loc == nil {
		return ""
	}
	rest := strings.TrimPrefix(rawURL[loc[1]:], "/")
	rest, _, _ = strings.Cut(rest, "?")
	return Unescape(rest)
}

// PathGateway serves content at <base>/ipfs/<cid>/<path>, the layout of a locally run gateway
type PathGateway struct {
	BaseURL string
	re      *regexp.Regexp
}

// NewPathGateway creates a path gateway rooted at baseURL (e.g. "http://localhost:8080")
func NewPathGateway(baseURL string) *PathGateway {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &PathGateway{
		BaseURL: baseURL,
		re:      regexp.MustCompile(`^` + regexp.QuoteMeta(baseURL) + `/ipfs/(\w+)`),
	}
}

func (g *PathGateway) URL(cid, path string) string {
	return fmt.Sprintf("%s/ipfs/%s/%s", g.BaseURL, cid, Escape(path))
}

func (g *PathGateway) CID(rawURL string) string {
	m := g.re.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

func (g *PathGateway) Path(rawURL string) string {
	loc := g.re.FindStringIndex(rawURL)
	if loc == nil {
		return ""
	}
	rest := strings.TrimPrefix(rawURL[loc[1]:], "/")
	rest, _, _ = strings.Cut(rest, "?")
	return Unescape(rest)
}
