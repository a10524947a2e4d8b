package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"soulfetch/internal/domain"
)

// ErrTimeout is returned by SearchStrict when the deadline elapses before
// the daemon reports the search as completed. The plain Search mode never
// returns it; a deadline hit there just means fewer responses.
var ErrTimeout = errors.New("search timed out")

// Client is the slice of the slskd API the coordinator needs.
type Client interface {
	SubmitSearch(ctx context.Context, searchText string, fileLimit, responseLimit int) (string, error)
	SearchState(ctx context.Context, searchID string) (domain.SearchResult, error)
	StopSearch(ctx context.Context, searchID string) error
}

type Config struct {
	FileLimit     int
	ResponseLimit int
	Deadline      time.Duration
	PollInterval  time.Duration
	Logger        *logrus.Logger
}

// Coordinator runs one network search per call: submit, poll until completed
// or deadline, stop server-side, return whatever accumulated.
type Coordinator struct {
	cfg    Config
	client Client
}

func NewCoordinator(cfg Config, client Client) *Coordinator {
	if cfg.FileLimit <= 0 {
		cfg.FileLimit = 1000
	}
	if cfg.ResponseLimit <= 0 {
		cfg.ResponseLimit = 50
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Coordinator{cfg: cfg, client: client}
}

// Search looks up an album and returns the responses gathered before the
// deadline. Hitting the deadline is not an error here; the background
// pipeline works with whatever arrived.
func (c *Coordinator) Search(ctx context.Context, artist, album string) (domain.SearchResult, error) {
	return c.run(ctx, artist, album, false)
}

// SearchStrict is the synchronous-caller variant: identical poll loop, but a
// deadline hit surfaces as ErrTimeout instead of a partial result.
func (c *Coordinator) SearchStrict(ctx context.Context, artist, album string) (domain.SearchResult, error) {
	return c.run(ctx, artist, album, true)
}

func (c *Coordinator) run(ctx context.Context, artist, album string, strictDeadline bool) (domain.SearchResult, error) {
	searchText := fmt.Sprintf("%s - %s", artist, album)
	logger := c.cfg.Logger.WithField("search", searchText)
	logger.Info("starting search")

	searchID, err := c.client.SubmitSearch(ctx, searchText, c.cfg.FileLimit, c.cfg.ResponseLimit)
	if err != nil {
		return domain.SearchResult{}, err
	}

	result, expired := c.waitForCompletion(ctx, logger, searchID)

	// Release the search server-side regardless of outcome.
	if err := c.client.StopSearch(ctx, searchID); err != nil {
		logger.Warnf("stop search %s: %v", searchID, err)
	}

	if expired && strictDeadline {
		return domain.SearchResult{}, ErrTimeout
	}

	logger.Infof("search finished with %d responses", result.ResponseCount)
	return result, nil
}

func (c *Coordinator) waitForCompletion(ctx context.Context, logger *logrus.Entry, searchID string) (domain.SearchResult, bool) {
	deadline := time.After(c.cfg.Deadline)
	result := domain.SearchResult{SearchID: searchID}

	for {
		state, err := c.client.SearchState(ctx, searchID)
		if err != nil {
			logger.Warnf("check search state: %v", err)
		} else {
			result = state
			if state.Completed {
				return result, false
			}
		}

		select {
		case <-ctx.Done():
			return result, true
		case <-deadline:
			return result, true
		case <-time.After(c.cfg.PollInterval):
		}
	}
}
