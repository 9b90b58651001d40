package presets

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
)

// storeTransport answers gateway requests from a content store
type storeTransport struct {
	store musicmarket.ContentStore
	codec *uricodec.Codec
}

func (t *storeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rawURL := req.URL.String()
	cid := t.codec.CIDFromGatewayURL(rawURL)
	path := t.codec.Gateway().Path(rawURL)
	if cid == "" || path == "" {
		return response(req, http.StatusNotFound, nil), nil
	}

	rc, err := t.store.Get(req.Context(), cid, path)
	if errors.Is(err, musicmarket.ErrObjectNotFound) {
		return response(req, http.StatusNotFound, nil), nil
	}
	if err != nil {
		return nil, err
	}
	return response(req, http.StatusOK, rc), nil
}

func response(req *http.Request, status int, body io.ReadCloser) *http.Response {
	if body == nil {
		body = io.NopCloser(strings.NewReader(http.StatusText(status)))
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       body,
		Request:    req,
	}
}
