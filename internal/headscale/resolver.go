package headscale

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Resolver maps a caller's VPN address to a username.
type Resolver interface {
	ResolveUsername(ctx context.Context, ipAddress string) (string, bool)
}

type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Client resolves usernames against the Headscale machine registry.
// Resolution is best effort: any failure degrades to "not resolved" and the
// caller falls back to the raw address.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

type machine struct {
	Name        string   `json:"name"`
	IPAddresses []string `json:"ipAddresses"`
	User        struct {
		Name string `json:"name"`
	} `json:"user"`
}

func (c *Client) ResolveUsername(ctx context.Context, ipAddress string) (string, bool) {
	m, ok := c.machineByIP(ctx, ipAddress)
	if !ok {
		return "", false
	}
	if m.User.Name != "" {
		c.logger.Infof("resolved %s to user %s", ipAddress, m.User.Name)
		return m.User.Name, true
	}
	if m.Name != "" {
		c.logger.Infof("resolved %s to machine %s", ipAddress, m.Name)
		return m.Name, true
	}
	return "", false
}

func (c *Client) machineByIP(ctx context.Context, ipAddress string) (machine, bool) {
	if c.url == "" || c.apiKey == "" {
		c.logger.Warn("headscale not configured, cannot resolve username")
		return machine{}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api/v1/machine", nil)
	if err != nil {
		c.logger.Errorf("create headscale request: %v", err)
		return machine{}, false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Errorf("query headscale: %v", err)
		return machine{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Errorf("query headscale: %v", fmt.Errorf("status %d", resp.StatusCode))
		return machine{}, false
	}

	var body struct {
		Machines []machine `json:"machines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Errorf("decode headscale response: %v", err)
		return machine{}, false
	}

	for _, m := range body.Machines {
		for _, addr := range m.IPAddresses {
			if addr == ipAddress {
				return m, true
			}
		}
	}

	c.logger.Warnf("no machine found with address %s", ipAddress)
	return machine{}, false
}

var _ Resolver = (*Client)(nil)
