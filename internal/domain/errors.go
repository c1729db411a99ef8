package domain

import "errors"

// Error kinds. Errors returned by the indexing, search and source layers wrap
// one of these so callers can classify them with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrStorage       = errors.New("storage error")
	ErrIndexWrite    = errors.New("index write error")
	ErrQueryParse    = errors.New("query parse error")
	ErrSourceFetch   = errors.New("source fetch error")
)
