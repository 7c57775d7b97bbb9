package batch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

// apiRequest performs a single call against the API and returns the raw
// response body together with the response headers. A non-nil body is
// POSTed as JSON; a nil body issues a bodyless GET (the catalog fetch).
// Non-2xx replies are not treated as transport failures: their bodies
// carry the API's error surface and are classified by the caller.
func apiRequest(ctx context.Context, httpc *http.Client, url, apiKey string, extraHeaders []string, body []byte) ([]byte, http.Header, error) {
	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		method = http.MethodPost
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, line := range extraHeaders {
		addHeaderLine(req.Header, line)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return reply, resp.Header, nil
}

// addHeaderLine applies a literal "Name: value" header line.
func addHeaderLine(h http.Header, line string) {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	h.Set(name, strings.TrimSpace(value))
}
