package stats

import (
	"context"
	"strings"

	"soulfetch/internal/slskd"
)

// Client is the slice of the slskd API the stats service reads from.
type Client interface {
	AllSearches(ctx context.Context) ([]slskd.SearchSummary, error)
	AllDownloads(ctx context.Context) ([]slskd.Transfer, error)
}

// SearchWithoutResults is one search that found nothing on the network.
type SearchWithoutResults struct {
	Artist     string `json:"artist"`
	Title      string `json:"title"`
	SearchText string `json:"search_text"`
}

type NoResultsStats struct {
	Count    int                    `json:"count"`
	Searches []SearchWithoutResults `json:"searches"`
}

type AlbumStats struct {
	Tried int `json:"tried"`
}

type TrackStats struct {
	Completed int `json:"completed"`
	Errored   int `json:"errored"`
	Queued    int `json:"queued"`
	Tried     int `json:"tried"`
}

type DownloadStats struct {
	Albums AlbumStats `json:"albums"`
	Tracks TrackStats `json:"tracks"`
}

// DownloadedAlbum summarizes one directory of one transfer batch.
type DownloadedAlbum struct {
	Artist          string `json:"artist"`
	Album           string `json:"album"`
	Username        string `json:"username"`
	TrackCount      int    `json:"track_count"`
	CompletedTracks int    `json:"completed_tracks"`
	TotalSize       int64  `json:"total_size"`
}

type DownloadedAlbums struct {
	Count  int               `json:"count"`
	Albums []DownloadedAlbum `json:"albums"`
}

// Service derives reporting views from the daemon's search and transfer
// history. Nothing here is persisted locally.
type Service struct {
	client Client
}

func NewService(client Client) *Service {
	return &Service{client: client}
}

// NoResults lists all searches that returned zero responses, with the
// "artist - title" query split back into its parts where possible.
func (s *Service) NoResults(ctx context.Context) (NoResultsStats, error) {
	searches, err := s.client.AllSearches(ctx)
	if err != nil {
		return NoResultsStats{}, err
	}

	result := NoResultsStats{Searches: []SearchWithoutResults{}}
	for _, search := range searches {
		if search.ResponseCount != 0 {
			continue
		}
		artist, title := splitSearchText(search.SearchText)
		result.Searches = append(result.Searches, SearchWithoutResults{
			Artist:     artist,
			Title:      title,
			SearchText: search.SearchText,
		})
	}
	result.Count = len(result.Searches)
	return result, nil
}

// Downloads aggregates per-track transfer states across all download
// batches the daemon has seen.
func (s *Service) Downloads(ctx context.Context) (DownloadStats, error) {
	transfers, err := s.client.AllDownloads(ctx)
	if err != nil {
		return DownloadStats{}, err
	}

	result := DownloadStats{Albums: AlbumStats{Tried: len(transfers)}}
	for _, transfer := range transfers {
		for _, dir := range transfer.Directories {
			for _, file := range dir.Files {
				result.Tracks.Tried++
				switch file.State {
				case "Completed, Succeeded":
					result.Tracks.Completed++
				case "Completed, Errored":
					result.Tracks.Errored++
				case "Queued, Remotely":
					result.Tracks.Queued++
				}
			}
		}
	}
	return result, nil
}

// Albums lists every downloaded directory with artist/album names parsed
// from its path.
func (s *Service) Albums(ctx context.Context) (DownloadedAlbums, error) {
	transfers, err := s.client.AllDownloads(ctx)
	if err != nil {
		return DownloadedAlbums{}, err
	}

	result := DownloadedAlbums{Albums: []DownloadedAlbum{}}
	for _, transfer := range transfers {
		for _, dir := range transfer.Directories {
			if len(dir.Files) == 0 {
				continue
			}

			artist, album := parseDirectoryName(dir.Directory)

			entry := DownloadedAlbum{
				Artist:     artist,
				Album:      album,
				Username:   transfer.Username,
				TrackCount: len(dir.Files),
			}
			for _, file := range dir.Files {
				if file.State == "Completed, Succeeded" {
					entry.CompletedTracks++
				}
				entry.TotalSize += file.Size
			}
			result.Albums = append(result.Albums, entry)
		}
	}
	result.Count = len(result.Albums)
	return result, nil
}

func splitSearchText(text string) (artist, title string) {
	if before, after, found := strings.Cut(text, " - "); found {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return strings.TrimSpace(text), ""
}

// parseDirectoryName guesses artist and album from common share layouts:
// "Artist/Album" or "Artist - Album".
func parseDirectoryName(dir string) (artist, album string) {
	switch {
	case strings.Contains(dir, "/"):
		parts := strings.Split(dir, "/")
		if len(parts) >= 2 {
			artist = parts[len(parts)-2]
		}
		album = parts[len(parts)-1]
	case strings.Contains(dir, " - "):
		before, after, _ := strings.Cut(dir, " - ")
		artist, album = before, after
	default:
		album = dir
	}

	if artist == "" {
		artist = "Unknown"
	}
	if album == "" {
		album = "Unknown"
	}
	return artist, album
}
