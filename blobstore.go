package ironpigeon

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore uploads opaque bytes with an expiry and returns the absolute
// URL the blob can be fetched from. Implementations must not inspect the
// blob; it is ciphertext.
type BlobStore interface {
	Upload(ctx context.Context, blob []byte, expiresUTC time.Time) (string, error)
}

// HTTPBlobStore uploads blobs to an HTTP blob service with PUT
// {base}/{random-name}?lifetime=<minutes>. The service answers with the
// blob's absolute URL in the Location header (or, failing that, the
// response body).
type HTTPBlobStore struct {
	// BaseURL is the root of the blob service.
	BaseURL string
	// HTTPClient is used for uploads; nil falls back to http.DefaultClient.
	HTTPClient *http.Client
}

// Upload implements BlobStore.
func (s *HTTPBlobStore) Upload(ctx context.Context, blob []byte, expiresUTC time.Time) (string, error) {
	if s.BaseURL == "" {
		return "", &PreconditionError{Message: "blob store base URL is not configured"}
	}

	lifetime := int64(time.Until(expiresUTC).Minutes())
	if lifetime < 0 {
		lifetime = 0
	}

	name := uuid.NewString()
	endpoint := strings.TrimSuffix(s.BaseURL, "/") + "/" + name +
		"?lifetime=" + strconv.FormatInt(lifetime, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	if loc := resp.Header.Get("Location"); loc != "" {
		return loc, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", &TransportError{URL: endpoint, Err: err}
	}
	location := strings.TrimSpace(string(body))
	if location == "" {
		return "", fmt.Errorf("blob service returned no location for %s", endpoint)
	}
	return location, nil
}
