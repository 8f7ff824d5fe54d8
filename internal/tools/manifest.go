package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest describes an external tool server and the capabilities it
// exposes. One YAML file per server in the manifest directory.
type Manifest struct {
	ServerID string        `yaml:"server_id"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  string        `yaml:"timeout"`
	Tools    []*Descriptor `yaml:"tools"`
}

// invokeRequest is the wire shape sent to a tool server.
type invokeRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// invokeResponse is the wire shape returned by a tool server.
type invokeResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// LoadManifest parses a single manifest file and binds an HTTP invoker
// to each descriptor it declares.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.ServerID == "" {
		return nil, fmt.Errorf("manifest %s: server_id is required", path)
	}
	if m.BaseURL == "" {
		return nil, fmt.Errorf("manifest %s: base_url is required", path)
	}

	timeout := 30 * time.Second
	if m.Timeout != "" {
		if d, err := time.ParseDuration(m.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	client := &http.Client{Timeout: timeout}
	for _, d := range m.Tools {
		if d.ServerID == "" {
			d.ServerID = m.ServerID
		}
		d.Invoke = newHTTPInvoker(client, m.BaseURL, d.Name)
	}
	return &m, nil
}

// newHTTPInvoker binds a descriptor to its server's /invoke endpoint.
func newHTTPInvoker(client *http.Client, baseURL, toolName string) InvokeFunc {
	endpoint := strings.TrimSuffix(baseURL, "/") + "/invoke"

	return func(ctx context.Context, args map[string]any) (string, error) {
		payload, err := json.Marshal(invokeRequest{Tool: toolName, Args: args})
		if err != nil {
			return "", fmt.Errorf("encode invoke request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("tool server %s: %w", toolName, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", fmt.Errorf("tool server %s: read response: %w", toolName, err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("tool server %s: status %d: %s", toolName, resp.StatusCode, string(body))
		}

		var out invokeResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("tool server %s: decode response: %w", toolName, err)
		}
		if out.Error != "" {
			return "", fmt.Errorf("tool %s: %s", toolName, out.Error)
		}
		return out.Result, nil
	}
}

// LoadManifestDir loads every *.yaml manifest in a directory into the
// registry. Returns the number of capabilities registered.
func LoadManifestDir(r *Registry, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read manifest dir %s: %w", dir, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		m, err := LoadManifest(filepath.Join(dir, name))
		if err != nil {
			return count, err
		}
		for _, d := range m.Tools {
			if err := r.Replace(d); err != nil {
				return count, fmt.Errorf("manifest %s: %w", name, err)
			}
			count++
		}
	}
	return count, nil
}
