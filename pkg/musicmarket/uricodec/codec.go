// Package uricodec maps a content identifier and a path to canonical asset URIs and gateway URLs,
// and recovers the identifier from gateway URLs.
package uricodec

import (
	"net/url"
	"strings"
)

// DefaultScheme is the scheme of canonical asset URIs
const DefaultScheme = "ipfs"

// DefaultGatewayHost is the public subdomain gateway host
const DefaultGatewayHost = "ipfs.dweb.link"

var defaultCodec = New(DefaultScheme, NewSubdomainGateway(DefaultGatewayHost))

// Codec builds and parses URIs for one asset scheme and one gateway
type Codec struct {
	scheme  string
	gateway Gateway
}

// New creates a codec. An empty scheme defaults to ipfs and a nil gateway to the public subdomain gateway.
func New(scheme string, gateway Gateway) *Codec {
	if scheme == "" {
		scheme = DefaultScheme
	}
	if gateway == nil {
		gateway = NewSubdomainGateway(DefaultGatewayHost)
	}
	return &Codec{scheme: scheme, gateway: gateway}
}

// Default returns the codec for ipfs:// URIs and the ipfs.dweb.link gateway
func Default() *Codec {
	return defaultCodec
}

// Gateway returns the gateway used by the codec
func (c *Codec) Gateway() Gateway {
	return c.gateway
}

// AssetURI returns "<scheme>://<cid>/<encoded path>"
func (c *Codec) AssetURI(cid, path string) string {
	return c.scheme + "://" + cid + "/" + Escape(path)
}

// GatewayURL returns the gateway URL of path inside cid, or path unchanged when cid is empty
func (c *Codec) GatewayURL(cid, path string) string {
	if cid == "" {
		return path
	}
	return c.gateway.URL(cid, path)
}

// CIDFromGatewayURL extracts the CID from a gateway URL, returning "" when rawURL is not one
func (c *Codec) CIDFromGatewayURL(rawURL string) string {
	return c.gateway.CID(rawURL)
}

// ParseURI splits an asset URI or a gateway URL into its CID and unescaped path
func (c *Codec) ParseURI(uri string) (cid, path string, ok bool) {
	prefix := c.scheme + "://"
	if strings.HasPrefix(uri, prefix) {
		rest := strings.TrimPrefix(uri, prefix)
		cid, encoded, _ := strings.Cut(rest, "/")
		if cid == "" {
			return "", "", false
		}
		return cid, Unescape(encoded), true
	}

	cid = c.gateway.CID(uri)
	if cid == "" {
		return "", "", false
	}
	return cid, c.gateway.Path(uri), true
}

// FetchURL returns an HTTP(S) URL for uri. Asset URIs are mapped through the gateway,
// anything else is returned unchanged.
func (c *Codec) FetchURL(uri string) string {
	prefix := c.scheme + "://"
	if !strings.HasPrefix(uri, prefix) {
		return uri
	}
	cid, path, ok := c.ParseURI(uri)
	if !ok {
		return uri
	}
	return c.GatewayURL(cid, path)
}

// EncodeAssetURI returns "ipfs://<cid>/<encoded path>"
func EncodeAssetURI(cid, path string) string {
	return defaultCodec.AssetURI(cid, path)
}

// EncodeGatewayURL returns "https://<cid>.ipfs.dweb.link/<encoded path>", or path when cid is empty
func EncodeGatewayURL(cid, path string) string {
	return defaultCodec.GatewayURL(cid, path)
}

// DecodeCIDFromGatewayURL returns the CID of an ipfs.dweb.link URL or "" when the URL does not match
func DecodeCIDFromGatewayURL(rawURL string) string {
	return defaultCodec.CIDFromGatewayURL(rawURL)
}

// DecodeAssetURI splits an ipfs:// URI or an ipfs.dweb.link URL into CID and path
func DecodeAssetURI(uri string) (cid, path string, ok bool) {
	return defaultCodec.ParseURI(uri)
}

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes s the way browsers encode URI components:
// only A-Z a-z 0-9 and - _ . ! ~ * ' ( ) are left as is.
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// Unescape reverses Escape. Malformed escapes are returned unchanged.
func Unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
