package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"soulfetch/internal/domain"
	"soulfetch/internal/headscale"
	"soulfetch/internal/repository"
)

// RequestService coordinates request-level operations backed by the request
// repository. Task ids are minted here; the orchestrator never creates rows.
type RequestService interface {
	CreateRequest(ctx context.Context, artist, album, username, originAddress string) (*domain.AcquisitionRequest, error)
	GetRequest(ctx context.Context, taskID string) (*domain.AcquisitionRequest, error)
	History(ctx context.Context, filter repository.Filter, limit, offset int) ([]domain.AcquisitionRequest, int, error)
}

type requestService struct {
	requests repository.RequestRepository
	resolver headscale.Resolver
}

func NewRequestService(requests repository.RequestRepository, resolver headscale.Resolver) RequestService {
	return &requestService{
		requests: requests,
		resolver: resolver,
	}
}

// CreateRequest inserts a pending request with a fresh task id. When no
// username is supplied it is resolved from the origin address, degrading to
// the raw address when resolution fails.
func (s *requestService) CreateRequest(ctx context.Context, artist, album, username, originAddress string) (*domain.AcquisitionRequest, error) {
	if artist == "" || album == "" {
		return nil, errors.New("artist and album are required")
	}

	if username == "" {
		if resolved, ok := s.resolver.ResolveUsername(ctx, originAddress); ok {
			username = resolved
		} else {
			username = originAddress
		}
	}

	req := &domain.AcquisitionRequest{
		TaskID:        uuid.NewString(),
		Artist:        artist,
		Album:         album,
		Requester:     username,
		OriginAddress: originAddress,
		Status:        domain.RequestStatusPending,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *requestService) GetRequest(ctx context.Context, taskID string) (*domain.AcquisitionRequest, error) {
	return s.requests.GetByTaskID(ctx, taskID)
}

// History returns one page of requests, newest first, plus the total count
// for the same filter.
func (s *requestService) History(ctx context.Context, filter repository.Filter, limit, offset int) ([]domain.AcquisitionRequest, int, error) {
	requests, err := s.requests.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.requests.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}
