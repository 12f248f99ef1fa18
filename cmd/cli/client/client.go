// Package client is the CLI's thin JSON client for the alloc8 API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crucial707/alloc8/cmd/cli/config"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s (%d): %v", e.Message, e.Status, e.Fields)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Do sends in as the JSON body (when non-nil) with the saved token and decodes
// the response into out (when non-nil).
func Do(ctx context.Context, method, path string, in, out any) error {
	token, err := config.ReadToken()
	if err != nil {
		return err
	}
	return send(ctx, method, path, token, in, out)
}

// DoAnonymous is Do without the Authorization header, for login.
func DoAnonymous(ctx context.Context, method, path string, in, out any) error {
	return send(ctx, method, path, "", in, out)
}

func send(ctx context.Context, method, path, token string, in, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, config.APIURL()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Fields = payload.Fields
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
