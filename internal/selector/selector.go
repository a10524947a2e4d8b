package selector

import (
	"path"
	"strings"

	"soulfetch/internal/domain"
)

// Candidate is the chosen peer and the files to request from it.
type Candidate struct {
	Username string
	Files    []domain.FileDescriptor
}

// Select picks the best available copy of an album from search responses.
// Peers are considered in network order; the first one yielding files that
// pass the quality tiers wins. Returns false when no peer qualifies.
//
// Matching is deliberately permissive: artist and album are matched as
// case-insensitive substrings of the directory name, and when nothing
// matches, the peer's biggest directory by summed size stands in. Both
// behaviors are load-bearing for sparsely tagged shares.
func Select(result domain.SearchResult, artist, album string) (Candidate, bool) {
	for _, peer := range result.Peers {
		if len(peer.Files) == 0 {
			continue
		}

		groups, order := groupByDirectory(peer.Files)
		files := matchingGroup(groups, order, artist, album)
		if files == nil {
			files = largestGroup(groups, order)
		}

		filtered := filterByQuality(files)
		if len(filtered) > 0 {
			return Candidate{Username: peer.Username, Files: filtered}, true
		}
	}
	return Candidate{}, false
}

// groupByDirectory clusters files by parent directory, approximating "one
// directory = one release". The order slice preserves first-seen directory
// order so fallback selection stays deterministic.
func groupByDirectory(files []domain.FileDescriptor) (map[string][]domain.FileDescriptor, []string) {
	groups := make(map[string][]domain.FileDescriptor)
	var order []string
	for _, f := range files {
		dir := path.Dir(strings.ReplaceAll(f.Filename, `\`, "/"))
		if _, seen := groups[dir]; !seen {
			order = append(order, dir)
		}
		groups[dir] = append(groups[dir], f)
	}
	return groups, order
}

func matchingGroup(groups map[string][]domain.FileDescriptor, order []string, artist, album string) []domain.FileDescriptor {
	artist = strings.ToLower(artist)
	album = strings.ToLower(album)
	for _, dir := range order {
		name := strings.ToLower(dir)
		if strings.Contains(name, artist) && strings.Contains(name, album) {
			return groups[dir]
		}
	}
	return nil
}

func largestGroup(groups map[string][]domain.FileDescriptor, order []string) []domain.FileDescriptor {
	var (
		best     []domain.FileDescriptor
		bestSize int64 = -1
	)
	for _, dir := range order {
		var total int64
		for _, f := range groups[dir] {
			total += f.Size
		}
		if total > bestSize {
			best = groups[dir]
			bestSize = total
		}
	}
	return best
}

// filterByQuality applies the quality tiers: 320kbps mp3s first, flac second,
// nothing otherwise. Tiers never mix.
func filterByQuality(files []domain.FileDescriptor) []domain.FileDescriptor {
	var mp3320 []domain.FileDescriptor
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Filename), ".mp3") && f.BitRate == 320 {
			mp3320 = append(mp3320, f)
		}
	}
	if len(mp3320) > 0 {
		return mp3320
	}

	var flac []domain.FileDescriptor
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Filename), ".flac") {
			flac = append(flac, f)
		}
	}
	return flac
}
