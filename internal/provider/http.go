package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 512

// StatusError is a non-200 upstream answer that the limiter did not retry.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// fetch issues a GET through client and returns the body of a 200 response.
func fetch(ctx context.Context, client Doer, provider, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(resp.Body)
}

func orDefaultClient(client Doer) Doer {
	if client == nil {
		return NewHostRateLimiter(nil)
	}
	return client
}
