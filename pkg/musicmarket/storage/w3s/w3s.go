// Package w3s stores batches through a web3.storage style upload API and reads them back
// through a public IPFS gateway.
package w3s

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
)

const backendName = "w3s"

// DefaultEndpoint is the upload API used when none is configured
const DefaultEndpoint = "https://api.web3.storage"

// Config options for the upload API client
type Config struct {
	Endpoint   string           // Upload API base URL
	Token      string           // API token sent as a bearer token
	Gateway    uricodec.Gateway // Gateway used by Get, defaults to ipfs.dweb.link
	HTTPClient *http.Client     // Defaults to a client with a 60s timeout
}

// Client is a musicmarket.ContentStore backed by a remote upload API
type Client struct {
	endpoint string
	token    string
	gateway  uricodec.Gateway
	http     *http.Client
}

type uploadResponse struct {
	CID     string `json:"cid"`
	Message string `json:"message"`
}

// New creates an upload API client
func New(config Config) (musicmarket.ContentStore, error) {
	if config.Token == "" {
		return nil, errors.New("API token is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Gateway == nil {
		config.Gateway = uricodec.NewSubdomainGateway(uricodec.DefaultGatewayHost)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		endpoint: strings.TrimSuffix(config.Endpoint, "/"),
		token:    config.Token,
		gateway:  config.Gateway,
		http:     config.HTTPClient,
	}, nil
}

// Put uploads the batch as a single multipart request; the service stores it as one directory
func (c *Client) Put(ctx context.Context, name string, blobs []musicmarket.Blob) (string, error) {
	if err := contentstore.Validate(blobs); err != nil {
		return "", musicmarket.Rejected(backendName, "put", name, err)
	}

	body, contentType, err := encodeBatch(blobs)
	if err != nil {
		return "", musicmarket.Rejected(backendName, "put", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/upload", body)
	if err != nil {
		return "", musicmarket.Rejected(backendName, "put", name, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Name", uricodec.Escape(name))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", musicmarket.Unavailable(backendName, "put", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", musicmarket.Unavailable(backendName, "put", name, err)
	}

	var out uploadResponse
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
		return "", musicmarket.Unavailable(backendName, "put", name, statusError(resp.StatusCode, out.Message))
	case resp.StatusCode >= 400:
		return "", musicmarket.Rejected(backendName, "put", name, statusError(resp.StatusCode, out.Message))
	}

	cid, err := contentstore.ParseCID(out.CID)
	if err != nil {
		return "", musicmarket.Unavailable(backendName, "put", name, fmt.Errorf("unexpected upload response: %w", err))
	}
	return cid, nil
}

// Get fetches one object of a batch through the gateway
func (c *Client) Get(ctx context.Context, cid, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gateway.URL(cid, path), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", musicmarket.ErrStoreUnavailable, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, musicmarket.ErrObjectNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: gateway returned status %d", musicmarket.ErrStoreUnavailable, resp.StatusCode)
	}
	return resp.Body, nil
}

func encodeBatch(blobs []musicmarket.Blob) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, blob := range blobs {
		part, err := w.CreateFormFile("file", blob.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(blob.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func statusError(code int, message string) error {
	if message == "" {
		message = http.StatusText(code)
	}
	return fmt.Errorf("upload API returned status %d: %s", code, message)
}
