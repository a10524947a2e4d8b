package domain

import "time"

type RequestStatus string

const (
	RequestStatusPending         RequestStatus = "pending"
	RequestStatusDownloading     RequestStatus = "downloading"
	RequestStatusEnqueued        RequestStatus = "enqueued"
	RequestStatusCompleted       RequestStatus = "completed"
	RequestStatusFailed          RequestStatus = "failed"
	RequestStatusNoResults       RequestStatus = "no_results"
	RequestStatusNoMatch         RequestStatus = "no_match"
	RequestStatusConnectionError RequestStatus = "connection_error"
	RequestStatusTimeout         RequestStatus = "timeout"
	RequestStatusError           RequestStatus = "error"
)

// Terminal reports whether the status ends a request's lifecycle. A request
// in a terminal state is never transitioned again; retrying means creating a
// new request with a fresh task id.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusPending, RequestStatusDownloading:
		return false
	}
	return true
}

// AcquisitionRequest is one album acquisition and its audit record. Rows are
// created by the HTTP layer, advanced exclusively by the orchestrator, and
// never deleted here.
type AcquisitionRequest struct {
	ID             int64
	TaskID         string
	Artist         string
	Album          string
	Requester      string
	OriginAddress  string
	Status         RequestStatus
	PeerUsername   string
	FileCount      int
	CompletedFiles int
	TotalSize      int64
	AlbumDirectory string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}
