package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// errRequestFailed wraps a non-2xx admin response with its body.
type errRequestFailed struct {
	status int
	body   string
}

func (e *errRequestFailed) Error() string {
	return fmt.Sprintf("admin request failed: %s: %s", http.StatusText(e.status), e.body)
}

// adminGet issues a GET against the target service's admin surface and
// decodes the JSON response body into v.
func adminGet(path string, v interface{}) error {
	resp, err := httpClient.Get("http://" + serverAddr + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return &errRequestFailed{status: resp.StatusCode, body: string(body)}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// adminPost issues a bodyless POST against the target service's admin surface.
func adminPost(path string) error {
	resp, err := httpClient.Post("http://"+serverAddr+path, "application/octet-stream", nil)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return &errRequestFailed{status: resp.StatusCode, body: string(body)}
	}
	return nil
}
