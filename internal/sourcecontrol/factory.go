package sourcecontrol

import (
	"fmt"
	"strings"

	"github.com/sha1n/relic-history/internal/domain"
)

// ProviderType names a RevisionSource implementation.
type ProviderType string

// Supported providers.
const (
	ProviderMemory     ProviderType = "memory"
	ProviderGit        ProviderType = "git"
	ProviderSubversion ProviderType = "subversion"
)

// ParseProviderType resolves a provider tag. Matching is case-insensitive and
// "svn" and "mock" are accepted as aliases.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "memory", "mock":
		return ProviderMemory, nil
	case "git":
		return ProviderGit, nil
	case "subversion", "svn":
		return ProviderSubversion, nil
	default:
		return "", fmt.Errorf("%w: unknown repository provider %q", domain.ErrConfiguration, s)
	}
}

// Options configures NewSource.
type Options struct {
	Provider string
	Location string
	Username string
	Password string

	// Executor overrides the command executor of command-line based providers.
	Executor CommandExecutor
}

// NewSource creates the RevisionSource selected by opts.Provider.
//
// A memory source loads its history from Location when set (a JSON array of
// revision records) and starts empty otherwise.
func NewSource(opts Options) (RevisionSource, error) {
	provider, err := ParseProviderType(opts.Provider)
	if err != nil {
		return nil, err
	}

	executor := opts.Executor
	if executor == nil {
		executor = &DefaultExecutor{}
	}

	switch provider {
	case ProviderMemory:
		if opts.Location == "" {
			return NewMemorySource(), nil
		}
		return LoadMemorySource(opts.Location)
	case ProviderGit:
		if opts.Location == "" {
			return nil, fmt.Errorf("%w: git provider requires a repository location", domain.ErrConfiguration)
		}
		return NewGitSourceWithExecutor(opts.Location, executor), nil
	default:
		if opts.Location == "" {
			return nil, fmt.Errorf("%w: subversion provider requires a repository URL", domain.ErrConfiguration)
		}
		return NewSubversionSourceWithExecutor(opts.Location, opts.Username, opts.Password, executor), nil
	}
}
