// Package homeassistant implements the home-automation platform port over
// the Home Assistant REST API, with state-change events carried by the
// websocket API.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/richardctrimble/ha-emulated-hue/internal/domain/model"
	"github.com/richardctrimble/ha-emulated-hue/internal/ports"
)

// Client talks to one Home Assistant instance. It satisfies
// ports.HomeAutomationPort.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	events     *eventListener
	log        zerolog.Logger
}

var _ ports.HomeAutomationPort = (*Client)(nil)

// NewClient creates a client for the given base URL and long-lived token.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	log = log.With().Str("component", "homeassistant").Logger()
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		events:     newEventListener(baseURL, token, log),
		log:        log,
	}
}

// Run keeps the websocket event stream connected until ctx is cancelled.
// Without it, SubscribeStateChange callbacks never fire and confirmation
// waits always run to their timeout.
func (c *Client) Run(ctx context.Context) {
	c.events.run(ctx)
}

// GetEntityState implements ports.HomeAutomationPort. A 404 from the
// platform reads as "entity absent", not an error.
func (c *Client) GetEntityState(ctx context.Context, entityKey string) (*ports.EntityState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/states/"+url.PathEscape(entityKey), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("home assistant api: status %d", resp.StatusCode)
	}

	var st ports.EntityState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// IssueCommand implements ports.HomeAutomationPort.
func (c *Client) IssueCommand(ctx context.Context, domain, action string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/services/%s/%s", c.baseURL, domain, action), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("home assistant api: %s.%s: status %d", domain, action, resp.StatusCode)
	}
	return nil
}

// SubscribeStateChange implements ports.HomeAutomationPort.
func (c *Client) SubscribeStateChange(entityKey string, callback func()) func() {
	return c.events.subscribe(entityKey, callback)
}

// ListEntityKeys implements ports.HomeAutomationPort.
func (c *Client) ListEntityKeys(ctx context.Context, category model.Category) ([]string, error) {
	states, err := c.listStates(ctx)
	if err != nil {
		return nil, err
	}
	prefix := string(category) + "."
	var keys []string
	for _, st := range states {
		if strings.HasPrefix(st.EntityID, prefix) {
			keys = append(keys, st.EntityID)
		}
	}
	return keys, nil
}

// EntityExists implements ports.HomeAutomationPort.
func (c *Client) EntityExists(ctx context.Context, entityKey string) bool {
	st, err := c.GetEntityState(ctx, entityKey)
	if err != nil {
		c.log.Warn().Err(err).Str("entity", entityKey).Msg("existence check failed")
		return false
	}
	return st != nil
}

func (c *Client) listStates(ctx context.Context) ([]ports.EntityState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/states", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("home assistant api: status %d", resp.StatusCode)
	}

	var states []ports.EntityState
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return nil, err
	}
	return states, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}
