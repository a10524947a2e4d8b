package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"soulfetch/internal/domain"
	"soulfetch/internal/repository"
)

const (
	createRequestsTable = `
CREATE TABLE IF NOT EXISTS download_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL UNIQUE,
	artist TEXT NOT NULL,
	album TEXT NOT NULL,
	requester TEXT NOT NULL,
	origin_address TEXT NOT NULL,
	status TEXT NOT NULL,
	peer_username TEXT NOT NULL DEFAULT '',
	file_count INTEGER NOT NULL DEFAULT 0,
	completed_files INTEGER NOT NULL DEFAULT 0,
	total_size INTEGER NOT NULL DEFAULT 0,
	album_directory TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	completed_at DATETIME NULL
);
CREATE INDEX IF NOT EXISTS idx_download_requests_requester ON download_requests(requester);
CREATE INDEX IF NOT EXISTS idx_download_requests_origin ON download_requests(origin_address);
`

	requestColumns = `id, task_id, artist, album, requester, origin_address, status, peer_username, file_count, completed_files, total_size, album_directory, created_at, completed_at`
)

type RequestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) repository.RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRequestsTable); err != nil {
		return fmt.Errorf("create download_requests table: %w", err)
	}
	return nil
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.AcquisitionRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.Status == "" {
		req.Status = domain.RequestStatusPending
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO download_requests (task_id, artist, album, requester, origin_address, status, peer_username, file_count, completed_files, total_size, album_directory, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.TaskID,
		req.Artist,
		req.Album,
		req.Requester,
		req.OriginAddress,
		string(req.Status),
		req.PeerUsername,
		req.FileCount,
		req.CompletedFiles,
		req.TotalSize,
		req.AlbumDirectory,
		req.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateTask
		}
		return fmt.Errorf("insert download request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

func (r *RequestRepository) Transition(ctx context.Context, taskID string, status domain.RequestStatus, fields repository.TransitionFields) (bool, error) {
	set := []string{"status=?"}
	args := []any{string(status)}

	if fields.PeerUsername != nil {
		set = append(set, "peer_username=?")
		args = append(args, *fields.PeerUsername)
	}
	if fields.FileCount != nil {
		set = append(set, "file_count=?")
		args = append(args, *fields.FileCount)
	}
	if fields.TotalSize != nil {
		set = append(set, "total_size=?")
		args = append(args, *fields.TotalSize)
	}
	args = append(args, taskID)

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE download_requests SET %s WHERE task_id=?`, strings.Join(set, ", ")),
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("transition request: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return aff > 0, nil
}

func (r *RequestRepository) Complete(ctx context.Context, taskID string, albumDirectory string, completedFiles int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE download_requests
SET status=?, completed_files=?, album_directory=?, completed_at=?
WHERE task_id=?`,
		string(domain.RequestStatusCompleted),
		completedFiles,
		albumDirectory,
		time.Now().UTC(),
		taskID,
	)
	if err != nil {
		return false, fmt.Errorf("complete request: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return aff > 0, nil
}

func (r *RequestRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.AcquisitionRequest, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM download_requests WHERE task_id=?`, requestColumns),
		taskID,
	)
	return scanRequest(row)
}

func (r *RequestRepository) List(ctx context.Context, filter repository.Filter, limit, offset int) ([]domain.AcquisitionRequest, error) {
	where, args := filterClause(filter)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM download_requests %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, requestColumns, where),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query download requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.AcquisitionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func (r *RequestRepository) Count(ctx context.Context, filter repository.Filter) (int, error) {
	where, args := filterClause(filter)

	var count int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM download_requests %s`, where),
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count download requests: %w", err)
	}
	return count, nil
}

func filterClause(filter repository.Filter) (string, []any) {
	switch {
	case filter.Requester != "":
		return "WHERE requester=?", []any{filter.Requester}
	case filter.OriginAddress != "":
		return "WHERE origin_address=?", []any{filter.OriginAddress}
	default:
		return "", nil
	}
}

func scanRequest(scanner interface {
	Scan(dest ...any) error
}) (*domain.AcquisitionRequest, error) {
	var (
		req         domain.AcquisitionRequest
		status      string
		createdAt   time.Time
		completedAt sql.NullTime
	)

	if err := scanner.Scan(
		&req.ID,
		&req.TaskID,
		&req.Artist,
		&req.Album,
		&req.Requester,
		&req.OriginAddress,
		&status,
		&req.PeerUsername,
		&req.FileCount,
		&req.CompletedFiles,
		&req.TotalSize,
		&req.AlbumDirectory,
		&createdAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan download request: %w", err)
	}

	req.Status = domain.RequestStatus(status)
	req.CreatedAt = createdAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		req.CompletedAt = &t
	}

	return &req, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
