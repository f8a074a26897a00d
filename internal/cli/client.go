// Package cli implements the siagactl operator commands. Every command is a
// thin wrapper over the coordination HTTP API.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

type Client struct {
	base  string
	actor string
	http  *http.Client
}

// NewClient reads the server address and actor identity from the environment.
func NewClient() *Client {
	base := os.Getenv("SIAGACTL_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &Client{
		base:  base,
		actor: os.Getenv("SIAGACTL_ACTOR"),
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Post(path string, body any) (map[string]any, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.actor != "" {
		req.Header.Set("X-Actor-ID", c.actor)
	}
	return c.do(req)
}

func (c *Client) Get(path string) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	if c.actor != "" {
		req.Header.Set("X-Actor-ID", c.actor)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (map[string]any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		if msg, ok := out["error"].(string); ok {
			return out, fmt.Errorf("%s (%d)", msg, resp.StatusCode)
		}
		return out, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return out, nil
}

func printStatus(label string, status any) {
	s, _ := status.(string)
	var c *color.Color
	switch s {
	case "valid", "operational", "available", "completed", "delivered", "resolved":
		c = color.New(color.FgGreen)
	case "pending", "reserved", "contained", "in_transit", "en_route", "assigned":
		c = color.New(color.FgYellow)
	case "invalid", "closed", "depleted", "cancelled", "full":
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgCyan)
	}
	fmt.Printf("%s: %s\n", label, c.Sprint(s))
}

func ok(format string, args ...any) {
	fmt.Printf("%s %s\n", color.New(color.FgGreen).Sprint("✓"), fmt.Sprintf(format, args...))
}
