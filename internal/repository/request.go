package repository

import (
	"context"
	"errors"

	"soulfetch/internal/domain"
)

var (
	// ErrDuplicateTask is returned when a task id is inserted twice.
	ErrDuplicateTask = errors.New("task id already exists")
	// ErrNotFound is returned when no request matches the given task id.
	ErrNotFound = errors.New("request not found")
)

// Filter narrows history queries. Zero value means no filtering.
type Filter struct {
	Requester     string
	OriginAddress string
}

// TransitionFields are the optional columns written alongside a status
// change. Nil fields are left untouched.
type TransitionFields struct {
	PeerUsername *string
	FileCount    *int
	TotalSize    *int64
}

// RequestRepository exposes persistence operations for acquisition requests.
// It does not validate state-machine legality; the orchestrator owns the
// transition order and is the only writer after creation.
type RequestRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, req *domain.AcquisitionRequest) error
	Transition(ctx context.Context, taskID string, status domain.RequestStatus, fields TransitionFields) (bool, error)
	Complete(ctx context.Context, taskID string, albumDirectory string, completedFiles int) (bool, error)
	GetByTaskID(ctx context.Context, taskID string) (*domain.AcquisitionRequest, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]domain.AcquisitionRequest, error)
	Count(ctx context.Context, filter Filter) (int, error)
}
