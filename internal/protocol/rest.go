package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sabachan/sabachan/internal/types"
)

const restTimeout = 10 * time.Second

// RESTClient drives a module's REST control API (e.g. a mod that exposes
// server actions over HTTP instead of RCON), using HTTP basic auth and the
// method declared per command in the module manifest.
type RESTClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewRESTClient builds a client against baseURL, authenticating requests
// with HTTP basic auth when username is non-empty.
func NewRESTClient(baseURL, username, password string) *RESTClient {
	return &RESTClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: restTimeout},
	}
}

// Send issues an HTTP request for cmd. cmd.Name is the path (e.g.
// "/players"), cmd.Meta["method"] selects the HTTP method (default GET),
// and cmd.Raw, if set, is sent as the request body.
func (c *RESTClient) Send(ctx context.Context, cmd types.ServerCommand) (types.ServerResponse, error) {
	start := time.Now()

	method := http.MethodGet
	if m, ok := cmd.Meta["method"]; ok && m != "" {
		method = strings.ToUpper(m)
	}

	url := c.baseURL + cmd.Name
	var body io.Reader
	if cmd.Raw != "" {
		body = bytes.NewBufferString(cmd.Raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return types.ServerResponse{}, fmt.Errorf("rest request build: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.ServerResponse{Protocol: types.ProtocolREST}, fmt.Errorf("rest request %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.ServerResponse{Protocol: types.ProtocolREST}, fmt.Errorf("rest response read: %w", err)
	}

	statusOK := resp.StatusCode >= 200 && resp.StatusCode < 300
	return types.ServerResponse{
		OK:       statusOK,
		Output:   string(out),
		Latency:  time.Since(start),
		Protocol: types.ProtocolREST,
	}, nil
}

// Close is a no-op: the underlying http.Client has no persistent
// connection state that needs releasing between commands.
func (c *RESTClient) Close() error { return nil }
