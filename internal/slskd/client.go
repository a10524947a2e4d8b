package slskd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"soulfetch/internal/domain"
)

// Config carries connection settings for a slskd daemon.
type Config struct {
	BaseURL  string
	APIKey   string
	Username string
	Password string
	// SearchesPerSecond throttles search submissions so a burst of
	// acquisition requests cannot flood the daemon. Zero disables the limit.
	SearchesPerSecond float64
	HTTPClient        *http.Client
	Logger            *logrus.Logger
}

// Client talks to the slskd REST API (v0). It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	var limiter *rate.Limiter
	if cfg.SearchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SearchesPerSecond), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: cfg.HTTPClient,
		limiter:    limiter,
		logger:     cfg.Logger,
	}
}

type searchRequest struct {
	SearchText      string `json:"searchText"`
	FileLimit       int    `json:"fileLimit"`
	FilterResponses bool   `json:"filterResponses"`
	ResponseLimit   int    `json:"responseLimit"`
	SearchTimeout   int    `json:"searchTimeout"`
}

type searchStateResponse struct {
	ID        string           `json:"id"`
	Status    string           `json:"status"`
	Responses []searchResponse `json:"responses"`
}

type searchResponse struct {
	Username string       `json:"username"`
	Files    []searchFile `json:"files"`
}

type searchFile struct {
	Code      int    `json:"code"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	BitRate   int    `json:"bitRate"`
	Extension string `json:"extension"`
	IsLocked  bool   `json:"isLocked"`
}

// SubmitSearch starts a network search and returns its identifier.
func (c *Client) SubmitSearch(ctx context.Context, searchText string, fileLimit, responseLimit int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("search rate limit: %w", err)
		}
	}

	body := searchRequest{
		SearchText:      searchText,
		FileLimit:       fileLimit,
		FilterResponses: true,
		ResponseLimit:   responseLimit,
		SearchTimeout:   15000,
	}

	var resp searchStateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v0/searches", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", ErrNoSearchID
	}
	return resp.ID, nil
}

// SearchState fetches the current status and accumulated responses of a
// running search.
func (c *Client) SearchState(ctx context.Context, searchID string) (domain.SearchResult, error) {
	var resp searchStateResponse
	path := fmt.Sprintf("/api/v0/searches/%s?includeResponses=true", url.PathEscape(searchID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.SearchResult{}, err
	}

	result := domain.SearchResult{
		SearchID:      searchID,
		Completed:     strings.HasPrefix(resp.Status, "Completed"),
		ResponseCount: len(resp.Responses),
		Peers:         make([]domain.PeerListing, 0, len(resp.Responses)),
	}
	for _, peer := range resp.Responses {
		listing := domain.PeerListing{
			Username: peer.Username,
			Files:    make([]domain.FileDescriptor, 0, len(peer.Files)),
		}
		for _, f := range peer.Files {
			listing.Files = append(listing.Files, domain.FileDescriptor{
				Code:      f.Code,
				Filename:  f.Filename,
				Size:      f.Size,
				BitRate:   f.BitRate,
				Extension: f.Extension,
				IsLocked:  f.IsLocked,
			})
		}
		result.Peers = append(result.Peers, listing)
	}
	return result, nil
}

// StopSearch releases a search on the daemon side.
func (c *Client) StopSearch(ctx context.Context, searchID string) error {
	path := fmt.Sprintf("/api/v0/searches/%s", url.PathEscape(searchID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

type enqueueFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
	Code     int    `json:"code,omitempty"`
}

// EnqueueTransfers asks the daemon to queue the given files for download
// from a peer.
func (c *Client) EnqueueTransfers(ctx context.Context, username string, files []domain.FileDescriptor) error {
	payload := make([]enqueueFile, 0, len(files))
	for _, f := range files {
		payload = append(payload, enqueueFile{
			Filename: f.Filename,
			Size:     f.Size,
			Code:     f.Code,
		})
	}

	path := fmt.Sprintf("/api/v0/transfers/downloads/%s", url.PathEscape(username))
	if err := c.doJSON(ctx, http.MethodPost, path, payload, nil); err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return err
		}
		return &EnqueueError{Username: username, Err: err}
	}
	return nil
}

// SearchSummary is one entry of the daemon's search history.
type SearchSummary struct {
	SearchText    string `json:"searchText"`
	ResponseCount int    `json:"responseCount"`
}

// AllSearches returns the daemon's full search history.
func (c *Client) AllSearches(ctx context.Context) ([]SearchSummary, error) {
	var searches []SearchSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/v0/searches", nil, &searches); err != nil {
		return nil, err
	}
	return searches, nil
}

// Transfer is one peer's download batch as reported by the daemon.
type Transfer struct {
	Username    string              `json:"username"`
	Directories []TransferDirectory `json:"directories"`
}

type TransferDirectory struct {
	Directory string         `json:"directory"`
	Files     []TransferFile `json:"files"`
}

type TransferFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	State    string `json:"state"`
}

// AllDownloads returns every download transfer the daemon knows about,
// including removed ones.
func (c *Client) AllDownloads(ctx context.Context) ([]Transfer, error) {
	var transfers []Transfer
	if err := c.doJSON(ctx, http.MethodGet, "/api/v0/transfers/downloads?includeRemoved=true", nil, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	} else if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slskd %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
