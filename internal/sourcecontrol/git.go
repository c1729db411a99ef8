package sourcecontrol

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sha1n/relic-history/internal/domain"
)

const (
	gitRecordSep = "\x1e"
	gitFieldSep  = "\x1f"
)

// gitLogFormat emits one record per commit: hash, author, unix time, raw body,
// followed by the name-status lines git appends.
var gitLogFormat = "--format=" + gitRecordSep + "%H" + gitFieldSep + "%an" + gitFieldSep + "%at" + gitFieldSep + "%B" + gitFieldSep

// GitSource reads the first-parent history of a local git working copy.
//
// Git has no revision numbers, so each commit is numbered by its 1-based
// position along the first-parent chain, oldest first. Renames and copies
// report the previous ordinal as their copy revision.
type GitSource struct {
	executor CommandExecutor
	dir      string
	closed   bool
}

// NewGitSource creates a source for the repository checked out at dir.
func NewGitSource(dir string) *GitSource {
	return NewGitSourceWithExecutor(dir, &DefaultExecutor{})
}

// NewGitSourceWithExecutor creates a GitSource with a custom executor (for testing).
func NewGitSourceWithExecutor(dir string, executor CommandExecutor) *GitSource {
	return &GitSource{executor: executor, dir: dir}
}

// FetchRange implements RevisionSource.
func (g *GitSource) FetchRange(ctx context.Context, begin, end int64) ([]domain.RevisionRecord, error) {
	if err := ValidateRange(begin, end); err != nil {
		return nil, err
	}
	if g.closed {
		return nil, &FetchError{Provider: string(ProviderGit), Op: "log", Err: ErrSourceClosed}
	}

	output, err := g.executor.Run(ctx, g.dir, "git", "log",
		"--first-parent",
		"--reverse",
		"--name-status",
		"-M",
		"-C",
		gitLogFormat,
	)
	if err != nil {
		return nil, &FetchError{Provider: string(ProviderGit), Op: "log", Err: err}
	}

	all, err := parseGitLog(string(output))
	if err != nil {
		return nil, &FetchError{Provider: string(ProviderGit), Op: "parse log", Err: err}
	}

	out := make([]domain.RevisionRecord, 0, len(all))
	for _, r := range all {
		if inRange(r.Revision, begin, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Close implements RevisionSource.
func (g *GitSource) Close() error {
	g.closed = true
	return nil
}

func parseGitLog(output string) ([]domain.RevisionRecord, error) {
	var records []domain.RevisionRecord
	var ordinal int64

	for _, chunk := range strings.Split(output, gitRecordSep) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		parts := strings.SplitN(chunk, gitFieldSep, 5)
		if len(parts) != 5 {
			return nil, fmt.Errorf("malformed commit record %q", truncate(chunk, 40))
		}

		ordinal++
		rec := domain.RevisionRecord{
			Revision: ordinal,
			Author:   parts[1],
			Message:  strings.TrimRight(parts[3], "\n"),
		}

		if parts[2] != "" {
			secs, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("commit %s: bad timestamp %q: %w", parts[0], parts[2], err)
			}
			rec.Date = time.Unix(secs, 0).UTC()
		}

		for _, line := range strings.Split(parts[4], "\n") {
			if line == "" {
				continue
			}
			if cp, ok := parseNameStatus(line, ordinal); ok {
				rec.ChangedPaths = append(rec.ChangedPaths, cp)
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

// parseNameStatus parses one "--name-status" line, e.g. "M\tfile" or "R100\told\tnew".
func parseNameStatus(line string, ordinal int64) (domain.ChangedPath, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 || fields[0] == "" {
		return domain.ChangedPath{}, false
	}

	change := fields[0][:1]
	switch change {
	case "R", "C":
		if len(fields) < 3 {
			return domain.ChangedPath{}, false
		}
		return domain.NewCopiedPath(fields[2], change, fields[1], ordinal-1), true
	default:
		return domain.NewChangedPath(fields[1], change), true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
