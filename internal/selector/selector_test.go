package selector_test

import (
	"testing"

	"soulfetch/internal/domain"
	"soulfetch/internal/selector"
)

func mp3(dir, name string, bitRate int, size int64) domain.FileDescriptor {
	return domain.FileDescriptor{Filename: dir + "/" + name + ".mp3", BitRate: bitRate, Size: size, Extension: "mp3"}
}

func flac(dir, name string, size int64) domain.FileDescriptor {
	return domain.FileDescriptor{Filename: dir + "/" + name + ".flac", Size: size, Extension: "flac"}
}

func result(peers ...domain.PeerListing) domain.SearchResult {
	return domain.SearchResult{Peers: peers, ResponseCount: len(peers)}
}

func TestSelect(t *testing.T) {
	t.Run("picks directory matching artist and album", func(t *testing.T) {
		res := result(domain.PeerListing{
			Username: "alice",
			Files: []domain.FileDescriptor{
				mp3("Music/Other Band/Some Album", "01 track", 320, 100),
				mp3("Music/Pink Floyd/The Wall", "01 in the flesh", 320, 50),
				mp3("Music/Pink Floyd/The Wall", "02 the thin ice", 320, 50),
			},
		})

		candidate, ok := selector.Select(res, "Pink Floyd", "The Wall")
		if !ok {
			t.Fatal("expected a candidate")
		}
		if candidate.Username != "alice" {
			t.Errorf("username = %q, want alice", candidate.Username)
		}
		if len(candidate.Files) != 2 {
			t.Fatalf("got %d files, want 2", len(candidate.Files))
		}
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		res := result(domain.PeerListing{
			Username: "alice",
			Files: []domain.FileDescriptor{
				mp3("music/PINK FLOYD/the wall [1979]", "01", 320, 1),
			},
		})

		if _, ok := selector.Select(res, "Pink Floyd", "The Wall"); !ok {
			t.Fatal("expected a candidate")
		}
	})

	t.Run("falls back to largest directory by summed size", func(t *testing.T) {
		res := result(domain.PeerListing{
			Username: "bob",
			Files: []domain.FileDescriptor{
				mp3("shares/small", "01", 320, 10),
				mp3("shares/big", "01", 320, 100),
				mp3("shares/big", "02", 320, 100),
			},
		})

		candidate, ok := selector.Select(res, "Pink Floyd", "The Wall")
		if !ok {
			t.Fatal("expected a candidate")
		}
		if len(candidate.Files) != 2 {
			t.Fatalf("got %d files, want the 2 from the big directory", len(candidate.Files))
		}
		for _, f := range candidate.Files {
			if f.Size != 100 {
				t.Errorf("unexpected file %q in fallback selection", f.Filename)
			}
		}
	})

	t.Run("prefers 320kbps mp3 over flac, never mixes tiers", func(t *testing.T) {
		res := result(domain.PeerListing{
			Username: "carol",
			Files: []domain.FileDescriptor{
				mp3("Pink Floyd/The Wall", "01", 320, 10),
				flac("Pink Floyd/The Wall", "01", 40),
				mp3("Pink Floyd/The Wall", "02", 320, 10),
				flac("Pink Floyd/The Wall", "02", 40),
			},
		})

		candidate, ok := selector.Select(res, "Pink Floyd", "The Wall")
		if !ok {
			t.Fatal("expected a candidate")
		}
		if len(candidate.Files) != 2 {
			t.Fatalf("got %d files, want 2 mp3s", len(candidate.Files))
		}
		for _, f := range candidate.Files {
			if f.BitRate != 320 {
				t.Errorf("non-320 file %q selected", f.Filename)
			}
		}
	})

	t.Run("falls back to flac when no 320 mp3s", func(t *testing.T) {
		res := result(domain.PeerListing{
			Username: "carol",
			Files: []domain.FileDescriptor{
				mp3("Pink Floyd/The Wall", "01", 192, 10),
				flac("Pink Floyd/The Wall", "01", 40),
			},
		})

		candidate, ok := selector.Select(res, "Pink Floyd", "The Wall")
		if !ok {
			t.Fatal("expected a candidate")
		}
		if len(candidate.Files) != 1 || candidate.Files[0].Size != 40 {
			t.Fatalf("expected the flac file, got %+v", candidate.Files)
		}
	})

	t.Run("peer failing quality filter is skipped, next peer wins", func(t *testing.T) {
		res := result(
			domain.PeerListing{
				Username: "lowfi",
				Files:    []domain.FileDescriptor{mp3("Pink Floyd/The Wall", "01", 128, 10)},
			},
			domain.PeerListing{
				Username: "hifi",
				Files:    []domain.FileDescriptor{mp3("Pink Floyd/The Wall", "01", 320, 10)},
			},
		)

		candidate, ok := selector.Select(res, "Pink Floyd", "The Wall")
		if !ok {
			t.Fatal("expected a candidate")
		}
		if candidate.Username != "hifi" {
			t.Errorf("username = %q, want hifi", candidate.Username)
		}
	})

	t.Run("peer with zero files is skipped", func(t *testing.T) {
		res := result(
			domain.PeerListing{Username: "empty"},
			domain.PeerListing{
				Username: "full",
				Files:    []domain.FileDescriptor{mp3("Pink Floyd/The Wall", "01", 320, 10)},
			},
		)

		candidate, ok := selector.Select(res, "Pink Floyd", "The Wall")
		if !ok || candidate.Username != "full" {
			t.Fatalf("candidate = %+v ok = %v, want peer full", candidate, ok)
		}
	})

	t.Run("no usable candidate anywhere returns false", func(t *testing.T) {
		res := result(domain.PeerListing{
			Username: "lowfi",
			Files:    []domain.FileDescriptor{mp3("Pink Floyd/The Wall", "01", 128, 10)},
		})

		if _, ok := selector.Select(res, "Pink Floyd", "The Wall"); ok {
			t.Fatal("expected no candidate")
		}
	})

	t.Run("handles backslash-separated soulseek paths", func(t *testing.T) {
		res := result(domain.PeerListing{
			Username: "windows",
			Files: []domain.FileDescriptor{
				{Filename: `C:\Music\Pink Floyd\The Wall\01.mp3`, BitRate: 320, Size: 10},
				{Filename: `C:\Music\Pink Floyd\The Wall\02.mp3`, BitRate: 320, Size: 10},
			},
		})

		candidate, ok := selector.Select(res, "Pink Floyd", "The Wall")
		if !ok {
			t.Fatal("expected a candidate")
		}
		if len(candidate.Files) != 2 {
			t.Fatalf("got %d files, want 2", len(candidate.Files))
		}
	})
}
