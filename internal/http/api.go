package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"soulfetch/internal/acquire"
	"soulfetch/internal/domain"
	"soulfetch/internal/repository"
	"soulfetch/internal/search"
	"soulfetch/internal/service"
	"soulfetch/internal/slskd"
	"soulfetch/internal/stats"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500

	previewPeerLimit = 5
	previewFileLimit = 10
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	requests    service.RequestService
	manager     acquire.Manager
	coordinator *search.Coordinator
	stats       *stats.Service
}

func NewHandler(requests service.RequestService, manager acquire.Manager, coordinator *search.Coordinator, statsSvc *stats.Service) *Handler {
	return &Handler{
		requests:    requests,
		manager:     manager,
		coordinator: coordinator,
		stats:       statsSvc,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/download", h.createDownload)
		api.GET("/download/:task_id", h.getDownload)
		api.GET("/downloads/history", h.downloadHistory)
		api.GET("/search/:artist/:album", h.searchPreview)
		api.GET("/stats/searches/no-results", h.noResultSearches)
		api.GET("/stats/downloads", h.downloadStats)
		api.GET("/stats/downloads/albums", h.downloadedAlbums)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type downloadRequest struct {
	Artist   string `json:"artist" binding:"required"`
	Album    string `json:"album" binding:"required"`
	Username string `json:"username"`
	VpnIP    string `json:"vpn_ip" binding:"required"`
}

type downloadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// createDownload records the request and kicks off the background
// orchestration. It returns as soon as the row is durable; callers poll the
// history endpoints for progress.
func (h *Handler) createDownload(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.requests.CreateRequest(c.Request.Context(), req.Artist, req.Album, req.Username, req.VpnIP)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.manager.Enqueue(created.TaskID, created.Artist, created.Album)

	c.JSON(http.StatusAccepted, downloadResponse{
		Success: true,
		Message: fmt.Sprintf("Download started for %s - %s", created.Artist, created.Album),
		TaskID:  created.TaskID,
	})
}

func (h *Handler) getDownload(c *gin.Context) {
	req, err := h.requests.GetRequest(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, requestToResponse(*req))
}

func (h *Handler) downloadHistory(c *gin.Context) {
	limit, err := intQuery(c, "limit", defaultHistoryLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	filter := repository.Filter{
		Requester:     c.Query("username"),
		OriginAddress: c.Query("vpn_ip"),
	}

	requests, total, err := h.requests.History(c.Request.Context(), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]RequestResponse, len(requests))
	for i := range requests {
		resp[i] = requestToResponse(requests[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    total,
		"limit":    limit,
		"offset":   offset,
		"requests": resp,
	})
}

// searchPreview runs a synchronous search and shows what the network offers
// without enqueuing anything. Unlike the background pipeline, a deadline hit
// here is a hard failure the caller must see.
func (h *Handler) searchPreview(c *gin.Context) {
	artist := c.Param("artist")
	album := c.Param("album")

	result, err := h.coordinator.SearchStrict(c.Request.Context(), artist, album)
	if err != nil {
		var connErr *slskd.ConnectionError
		switch {
		case errors.As(err, &connErr):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "slskd service is not available"})
		case errors.Is(err, search.ErrTimeout):
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "search request timed out"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	peers := make([]previewPeer, 0, previewPeerLimit)
	for _, peer := range result.Peers {
		if len(peers) == previewPeerLimit {
			break
		}
		entry := previewPeer{Username: peer.Username, FileCount: len(peer.Files)}
		for i, f := range peer.Files {
			entry.TotalSize += f.Size
			if i < previewFileLimit {
				entry.Files = append(entry.Files, previewFile{
					Filename:  f.Filename,
					Size:      f.Size,
					BitRate:   f.BitRate,
					Extension: f.Extension,
				})
			}
		}
		peers = append(peers, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"artist":         artist,
		"album":          album,
		"search_id":      result.SearchID,
		"response_count": result.ResponseCount,
		"users":          peers,
	})
}

func (h *Handler) noResultSearches(c *gin.Context) {
	result, err := h.stats.NoResults(c.Request.Context())
	if err != nil {
		statsError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) downloadStats(c *gin.Context) {
	result, err := h.stats.Downloads(c.Request.Context())
	if err != nil {
		statsError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) downloadedAlbums(c *gin.Context) {
	result, err := h.stats.Albums(c.Request.Context())
	if err != nil {
		statsError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func statsError(c *gin.Context, err error) {
	var connErr *slskd.ConnectionError
	if errors.As(err, &connErr) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "slskd service is not available"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

type RequestResponse struct {
	TaskID         string               `json:"task_id"`
	Artist         string               `json:"artist"`
	Album          string               `json:"album"`
	Username       string               `json:"username"`
	VpnIP          string               `json:"vpn_ip"`
	Status         domain.RequestStatus `json:"status"`
	PeerUsername   string               `json:"peer_username,omitempty"`
	FileCount      int                  `json:"file_count"`
	CompletedFiles int                  `json:"completed_files"`
	TotalSize      int64                `json:"total_size"`
	AlbumDirectory string               `json:"album_directory,omitempty"`
	CreatedAt      string               `json:"created_at"`
	CompletedAt    *string              `json:"completed_at,omitempty"`
}

type previewPeer struct {
	Username  string        `json:"username"`
	FileCount int           `json:"file_count"`
	TotalSize int64         `json:"total_size"`
	Files     []previewFile `json:"files"`
}

type previewFile struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	BitRate   int    `json:"bit_rate"`
	Extension string `json:"extension"`
}

func requestToResponse(req domain.AcquisitionRequest) RequestResponse {
	resp := RequestResponse{
		TaskID:         req.TaskID,
		Artist:         req.Artist,
		Album:          req.Album,
		Username:       req.Requester,
		VpnIP:          req.OriginAddress,
		Status:         req.Status,
		PeerUsername:   req.PeerUsername,
		FileCount:      req.FileCount,
		CompletedFiles: req.CompletedFiles,
		TotalSize:      req.TotalSize,
		AlbumDirectory: req.AlbumDirectory,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
	}
	if req.CompletedAt != nil {
		v := req.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	return resp
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
