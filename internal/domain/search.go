package domain

// FileDescriptor is one file offered by a remote peer.
type FileDescriptor struct {
	Code      int
	Filename  string
	Size      int64
	BitRate   int
	Extension string
	IsLocked  bool
}

// PeerListing is a single peer's set of offered files for one search.
type PeerListing struct {
	Username string
	Files    []FileDescriptor
}

// SearchResult carries one search round's responses. It is produced fresh
// per search and discarded after candidate selection; nothing here persists.
type SearchResult struct {
	SearchID      string
	Completed     bool
	ResponseCount int
	Peers         []PeerListing
}
