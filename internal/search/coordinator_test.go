package search_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"soulfetch/internal/domain"
	"soulfetch/internal/search"
	"soulfetch/internal/slskd"
)

type fakeClient struct {
	mu sync.Mutex

	submitErr     error
	submittedText string

	// states returned by successive SearchState calls; the last entry
	// repeats once exhausted.
	states    []domain.SearchResult
	stateErr  error
	stateCall int

	stopped bool
	stopErr error
}

func (f *fakeClient) SubmitSearch(_ context.Context, text string, _, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submittedText = text
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "search-1", nil
}

func (f *fakeClient) SearchState(context.Context, string) (domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return domain.SearchResult{}, f.stateErr
	}
	idx := f.stateCall
	if idx >= len(f.states) {
		idx = len(f.states) - 1
	}
	f.stateCall++
	return f.states[idx], nil
}

func (f *fakeClient) StopSearch(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return f.stopErr
}

func newCoordinator(client search.Client, deadline time.Duration) *search.Coordinator {
	return search.NewCoordinator(search.Config{
		Deadline:     deadline,
		PollInterval: time.Millisecond,
	}, client)
}

func completedResult(peers int) domain.SearchResult {
	result := domain.SearchResult{SearchID: "search-1", Completed: true, ResponseCount: peers}
	for i := 0; i < peers; i++ {
		result.Peers = append(result.Peers, domain.PeerListing{Username: "peer"})
	}
	return result
}

func TestCoordinator_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("builds the artist dash album query", func(t *testing.T) {
		client := &fakeClient{states: []domain.SearchResult{completedResult(1)}}
		c := newCoordinator(client, time.Second)

		if _, err := c.Search(ctx, "Pink Floyd", "The Wall"); err != nil {
			t.Fatalf("search: %v", err)
		}
		if client.submittedText != "Pink Floyd - The Wall" {
			t.Errorf("query = %q", client.submittedText)
		}
	})

	t.Run("polls until completed and stops the search", func(t *testing.T) {
		client := &fakeClient{states: []domain.SearchResult{
			{SearchID: "search-1"},
			{SearchID: "search-1"},
			completedResult(2),
		}}
		c := newCoordinator(client, time.Second)

		result, err := c.Search(ctx, "Pink Floyd", "The Wall")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if result.ResponseCount != 2 {
			t.Errorf("responses = %d, want 2", result.ResponseCount)
		}
		if !client.stopped {
			t.Error("search not stopped server-side")
		}
	})

	t.Run("deadline returns accumulated responses without error", func(t *testing.T) {
		partial := domain.SearchResult{SearchID: "search-1", ResponseCount: 1, Peers: []domain.PeerListing{{Username: "peer"}}}
		client := &fakeClient{states: []domain.SearchResult{partial}}
		c := newCoordinator(client, 10*time.Millisecond)

		result, err := c.Search(ctx, "Pink Floyd", "The Wall")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if result.ResponseCount != 1 {
			t.Errorf("responses = %d, want the partial result", result.ResponseCount)
		}
		if !client.stopped {
			t.Error("search not stopped after deadline")
		}
	})

	t.Run("submit failure propagates and skips polling", func(t *testing.T) {
		client := &fakeClient{submitErr: slskd.ErrNoSearchID}
		c := newCoordinator(client, time.Second)

		_, err := c.Search(ctx, "Pink Floyd", "The Wall")
		if !errors.Is(err, slskd.ErrNoSearchID) {
			t.Fatalf("err = %v, want ErrNoSearchID", err)
		}
		if client.stopped {
			t.Error("stop called for a search that never started")
		}
	})

	t.Run("stop failure is swallowed", func(t *testing.T) {
		client := &fakeClient{
			states:  []domain.SearchResult{completedResult(1)},
			stopErr: errors.New("boom"),
		}
		c := newCoordinator(client, time.Second)

		if _, err := c.Search(ctx, "Pink Floyd", "The Wall"); err != nil {
			t.Fatalf("search: %v", err)
		}
	})

	t.Run("transient state errors keep the poll loop alive", func(t *testing.T) {
		client := &fakeClient{states: []domain.SearchResult{{SearchID: "search-1"}}, stateErr: &slskd.ConnectionError{Err: errors.New("refused")}}
		c := newCoordinator(client, 10*time.Millisecond)

		result, err := c.Search(ctx, "Pink Floyd", "The Wall")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if result.ResponseCount != 0 {
			t.Errorf("responses = %d, want 0", result.ResponseCount)
		}
	})
}

func TestCoordinator_SearchStrict(t *testing.T) {
	ctx := context.Background()

	t.Run("deadline surfaces as ErrTimeout", func(t *testing.T) {
		client := &fakeClient{states: []domain.SearchResult{{SearchID: "search-1"}}}
		c := newCoordinator(client, 10*time.Millisecond)

		_, err := c.SearchStrict(ctx, "Pink Floyd", "The Wall")
		if !errors.Is(err, search.ErrTimeout) {
			t.Fatalf("err = %v, want ErrTimeout", err)
		}
		if !client.stopped {
			t.Error("search not stopped after strict timeout")
		}
	})

	t.Run("completed search behaves like the plain mode", func(t *testing.T) {
		client := &fakeClient{states: []domain.SearchResult{completedResult(3)}}
		c := newCoordinator(client, time.Second)

		result, err := c.SearchStrict(ctx, "Pink Floyd", "The Wall")
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if result.ResponseCount != 3 {
			t.Errorf("responses = %d, want 3", result.ResponseCount)
		}
	})
}
