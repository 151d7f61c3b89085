package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"locker-bank-backend/internal/parse"
)

// ErrUnreachable marks transport-level failures talking to the relay
// bridge. Callers report it rather than swallowing it.
var ErrUnreachable = errors.New("hardware relay unreachable")

// Client is the synchronous interface to the kiosk-side relay bridge that
// drives the physical locks and door sensors. Every call is bounded by the
// client's timeout; a timeout is fatal for the request it served.
type Client interface {
	Open(ctx context.Context, number int) error
	VerifyClosed(ctx context.Context, number int) (bool, error)
	StatusAll(ctx context.Context) (map[int]parse.DoorState, error)
	Ping(ctx context.Context) error
}

// HTTPClient talks to the relay bridge over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a relay client for the bridge at baseURL. The
// timeout covers the whole request including the serial round-trip behind
// the bridge.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type openRequest struct {
	CompartmentNumber int `json:"compartmentNumber"`
}

type doorResponse struct {
	State string `json:"state"`
}

type reportResponse struct {
	Report string `json:"report"`
}

// Open unlocks the compartment's door.
func (c *HTTPClient) Open(ctx context.Context, number int) error {
	body, err := json.Marshal(openRequest{CompartmentNumber: number})
	if err != nil {
		return fmt.Errorf("marshal open request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/api/relay/open", bytes.NewReader(body))
	return err
}

// VerifyClosed reads the compartment's door sensor.
func (c *HTTPClient) VerifyClosed(ctx context.Context, number int) (bool, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/relay/doors/%d", number), nil)
	if err != nil {
		return false, err
	}
	var resp doorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, fmt.Errorf("decode door response: %w", err)
	}
	return strings.EqualFold(resp.State, string(parse.DoorClosed)), nil
}

// StatusAll reads every door sensor in one round-trip. The bridge answers
// with the controller's compact report string.
func (c *HTTPClient) StatusAll(ctx context.Context) (map[int]parse.DoorState, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/relay/doors", nil)
	if err != nil {
		return nil, err
	}
	var resp reportResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return parse.StatusReport(resp.Report), nil
}

// Ping checks that the bridge and its controller are responding.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/ping", nil)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
