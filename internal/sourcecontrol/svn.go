package sourcecontrol

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sha1n/relic-history/internal/domain"
)

// SubversionSource reads history from a subversion repository URL using the svn client.
//
// The source verifies the repository on first use and remembers a successful
// check. Ranges ending at LatestRevision are resolved against the current HEAD.
// Credentials are passed to every command and never cached by svn.
type SubversionSource struct {
	executor CommandExecutor
	url      string
	username string
	password string

	mu        sync.Mutex
	connected bool
	closed    bool
}

// NewSubversionSource creates a source for the repository at url.
func NewSubversionSource(url, username, password string) *SubversionSource {
	return NewSubversionSourceWithExecutor(url, username, password, &DefaultExecutor{})
}

// NewSubversionSourceWithExecutor creates a SubversionSource with a custom executor (for testing).
func NewSubversionSourceWithExecutor(url, username, password string, executor CommandExecutor) *SubversionSource {
	return &SubversionSource{executor: executor, url: url, username: username, password: password}
}

// FetchRange implements RevisionSource.
func (s *SubversionSource) FetchRange(ctx context.Context, begin, end int64) ([]domain.RevisionRecord, error) {
	if err := ValidateRange(begin, end); err != nil {
		return nil, err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, &FetchError{Provider: string(ProviderSubversion), Op: "log", Err: ErrSourceClosed}
	}

	var upper int64
	if end == LatestRevision {
		head, err := s.head(ctx)
		if err != nil {
			return nil, err
		}
		// svn rejects ranges starting past HEAD
		if begin > head {
			return []domain.RevisionRecord{}, nil
		}
		upper = head
	} else {
		if err := s.connect(ctx); err != nil {
			return nil, err
		}
		upper = end
	}

	args := append([]string{"log", "--xml", "--verbose", "-r", fmt.Sprintf("%d:%d", begin, upper)}, s.authArgs()...)
	args = append(args, s.url)

	output, err := s.executor.Run(ctx, "", "svn", args...)
	if err != nil {
		return nil, &FetchError{Provider: string(ProviderSubversion), Op: "log", Err: err}
	}

	records, err := parseSubversionLog(output)
	if err != nil {
		return nil, &FetchError{Provider: string(ProviderSubversion), Op: "parse log", Err: err}
	}
	return records, nil
}

// Close implements RevisionSource.
func (s *SubversionSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SubversionSource) connect(ctx context.Context) error {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if connected {
		return nil
	}
	_, err := s.head(ctx)
	return err
}

// head returns the youngest revision of the repository.
func (s *SubversionSource) head(ctx context.Context) (int64, error) {
	args := append([]string{"info", "--xml", "-r", "HEAD"}, s.authArgs()...)
	args = append(args, s.url)

	output, err := s.executor.Run(ctx, "", "svn", args...)
	if err != nil {
		return 0, &FetchError{Provider: string(ProviderSubversion), Op: "connect " + s.url, Err: err}
	}

	var info svnInfo
	if err := xml.Unmarshal(output, &info); err != nil {
		return 0, &FetchError{Provider: string(ProviderSubversion), Op: "parse info", Err: err}
	}
	if info.Entry == nil {
		return 0, &FetchError{Provider: string(ProviderSubversion), Op: "parse info", Err: fmt.Errorf("no entry for %s", s.url)}
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return info.Entry.Revision, nil
}

func (s *SubversionSource) authArgs() []string {
	args := []string{"--non-interactive", "--no-auth-cache"}
	if s.username != "" {
		args = append(args, "--username", s.username)
	}
	if s.password != "" {
		args = append(args, "--password", s.password)
	}
	return args
}

type svnInfo struct {
	Entry *struct {
		Revision int64 `xml:"revision,attr"`
	} `xml:"entry"`
}

type svnLog struct {
	Entries []svnLogEntry `xml:"logentry"`
}

type svnLogEntry struct {
	Revision int64     `xml:"revision,attr"`
	Author   string    `xml:"author"`
	Date     string    `xml:"date"`
	Message  string    `xml:"msg"`
	Paths    []svnPath `xml:"paths>path"`
}

type svnPath struct {
	Action       string `xml:"action,attr"`
	CopyFromPath string `xml:"copyfrom-path,attr"`
	CopyFromRev  string `xml:"copyfrom-rev,attr"`
	Path         string `xml:",chardata"`
}

func parseSubversionLog(data []byte) ([]domain.RevisionRecord, error) {
	var log svnLog
	if err := xml.Unmarshal(data, &log); err != nil {
		return nil, err
	}

	records := make([]domain.RevisionRecord, 0, len(log.Entries))
	for _, e := range log.Entries {
		rec := domain.RevisionRecord{
			Revision: e.Revision,
			Author:   e.Author,
			Message:  e.Message,
		}

		if e.Date != "" {
			d, err := time.Parse(time.RFC3339Nano, e.Date)
			if err != nil {
				return nil, fmt.Errorf("revision %d: bad date %q: %w", e.Revision, e.Date, err)
			}
			rec.Date = d.UTC()
		}

		for _, p := range e.Paths {
			if p.CopyFromPath == "" {
				rec.ChangedPaths = append(rec.ChangedPaths, domain.NewChangedPath(p.Path, p.Action))
				continue
			}
			copyRev, err := strconv.ParseInt(p.CopyFromRev, 10, 64)
			if err != nil {
				copyRev = domain.NoCopyRevision
			}
			rec.ChangedPaths = append(rec.ChangedPaths, domain.NewCopiedPath(p.Path, p.Action, p.CopyFromPath, copyRev))
		}

		records = append(records, rec)
	}
	return records, nil
}
