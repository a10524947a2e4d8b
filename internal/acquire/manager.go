package acquire

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"soulfetch/internal/domain"
	"soulfetch/internal/repository"
	"soulfetch/internal/search"
	"soulfetch/internal/selector"
	"soulfetch/internal/slskd"
)

// Searcher runs one album search and reports whatever responses accumulated.
type Searcher interface {
	Search(ctx context.Context, artist, album string) (domain.SearchResult, error)
}

// TransferClient queues files for download from a peer.
type TransferClient interface {
	EnqueueTransfers(ctx context.Context, username string, files []domain.FileDescriptor) error
}

// Manager runs acquisition orchestrations: search, select, enqueue, and a
// terminal status write, decoupled from the HTTP call that created the
// request.
type Manager interface {
	Start(ctx context.Context)
	Shutdown()
	Enqueue(taskID, artist, album string)
}

type Config struct {
	MaxConcurrent int
	Logger        *logrus.Logger
}

type manager struct {
	cfg       Config
	requests  repository.RequestRepository
	searcher  Searcher
	transfers TransferClient

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config, requests repository.RequestRepository, searcher Searcher, transfers TransferClient) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:       cfg,
		requests:  requests,
		searcher:  searcher,
		transfers: transfers,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (m *manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("acquisition manager started, max concurrent: %d", m.cfg.MaxConcurrent)
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("acquisition manager stopped")
}

// Enqueue schedules one orchestration run for an already-created request.
// The caller gets no handle back; progress is observable only through the
// request store. Every accepted run executes even across Shutdown, so each
// request reaches a terminal status; cancellation only shortens in-flight
// network waits.
func (m *manager) Enqueue(taskID, artist, album string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sem <- struct{}{}
		defer func() { <-m.sem }()
		m.run(m.ctx, taskID, artist, album)
	}()
}

// run drives a single request through the state machine. Every exit path
// persists a terminal status: nobody is waiting on a return value, so a
// silent drop would strand the request in a non-terminal state forever.
func (m *manager) run(ctx context.Context, taskID, artist, album string) {
	logger := m.cfg.Logger.WithField("task_id", taskID)
	logger.Infof("starting acquisition: %s - %s", artist, album)

	result, err := m.searcher.Search(ctx, artist, album)
	if err != nil {
		m.fail(taskID, err)
		return
	}

	if len(result.Peers) == 0 {
		logger.Warn("no search results")
		m.transition(taskID, domain.RequestStatusNoResults, repository.TransitionFields{})
		return
	}

	candidate, ok := selector.Select(result, artist, album)
	if !ok {
		logger.Warn("no suitable album found")
		m.transition(taskID, domain.RequestStatusNoMatch, repository.TransitionFields{})
		return
	}

	var totalSize int64
	for _, f := range candidate.Files {
		totalSize += f.Size
	}
	fileCount := len(candidate.Files)
	m.transition(taskID, domain.RequestStatusDownloading, repository.TransitionFields{
		PeerUsername: &candidate.Username,
		FileCount:    &fileCount,
		TotalSize:    &totalSize,
	})

	if err := m.transfers.EnqueueTransfers(ctx, candidate.Username, candidate.Files); err != nil {
		var enqueueErr *slskd.EnqueueError
		if errors.As(err, &enqueueErr) {
			logger.Errorf("enqueue rejected: %v", err)
			m.transition(taskID, domain.RequestStatusFailed, repository.TransitionFields{})
			return
		}
		m.fail(taskID, err)
		return
	}

	logger.Infof("enqueued %d files from peer %s", fileCount, candidate.Username)
	m.transition(taskID, domain.RequestStatusEnqueued, repository.TransitionFields{})
}

// fail maps a pipeline error onto its terminal status.
func (m *manager) fail(taskID string, runErr error) {
	logger := m.cfg.Logger.WithField("task_id", taskID)

	status := domain.RequestStatusError
	var connErr *slskd.ConnectionError
	switch {
	case errors.As(runErr, &connErr):
		status = domain.RequestStatusConnectionError
	case errors.Is(runErr, search.ErrTimeout):
		status = domain.RequestStatusTimeout
	}

	logger.Errorf("acquisition failed (%s): %v", status, runErr)
	m.transition(taskID, status, repository.TransitionFields{})
}

func (m *manager) transition(taskID string, status domain.RequestStatus, fields repository.TransitionFields) {
	// Detached context: the terminal write must land even when the manager
	// context was cancelled mid-run.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	found, err := m.requests.Transition(ctx, taskID, status, fields)
	if err != nil {
		m.cfg.Logger.WithField("task_id", taskID).Errorf("persist status %s: %v", status, err)
		return
	}
	if !found {
		m.cfg.Logger.WithField("task_id", taskID).Warnf("status %s for unknown request", status)
	}
}
