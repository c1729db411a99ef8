package app

import (
	"github.com/sha1n/relic-history/internal/sourcecontrol"
	"github.com/spf13/pflag"
)

// RegisterFlags registers the serve command flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
	flags.Bool("auth-public-metrics", false, "Serve /metrics without authentication")

	registerRepositoryFlags(flags)
	registerSearchFlags(flags)

	flags.Bool("sync-on-start", false, "Sync the index with the repository on start (default true)")
	flags.Duration("sync-interval", 0, "Interval between background syncs, 0 disables them (default 15m)")
	flags.Duration("sync-lock-timeout", 0, "Maximum time to wait for a sync by another process (default 60s)")
}

// RegisterIndexFlags registers the index command flags on the given FlagSet
func RegisterIndexFlags(flags *pflag.FlagSet) {
	registerRepositoryFlags(flags)
	flags.Duration("sync-lock-timeout", 0, "Maximum time to wait for a sync by another process (default 60s)")
	flags.Int64P("start", "s", 0, "First revision to index (default: resume after the last indexed revision)")
	flags.Int64P("end", "e", sourcecontrol.LatestRevision, "Last revision to index, -1 for the latest")
}

// RegisterSearchFlags registers the search command flags on the given FlagSet
func RegisterSearchFlags(flags *pflag.FlagSet) {
	registerLocationFlags(flags)
	registerSearchFlags(flags)
	flags.StringSliceP("facet", "f", nil, "Category paths to count, e.g. Author or Date/2007 (repeatable)")
	flags.Int("facet-limit", 0, "Maximum labels per facet (default 10)")
	flags.Bool("no-color", false, "Disable colored output")
}

func registerLocationFlags(flags *pflag.FlagSet) {
	flags.StringP("base-dir", "d", "", "Base directory for indexes and sync state (default ~/.relic-history)")
	flags.String("index-dir", "", "Index directory (default <base-dir>/indexes/<repository>.bleve)")
	flags.String("taxonomy-dir", "", "Taxonomy directory (default <base-dir>/indexes/<repository>.taxonomy)")
	flags.StringP("location", "l", "", "Repository location: a git working copy, a subversion URL or a JSON history file")
}

func registerRepositoryFlags(flags *pflag.FlagSet) {
	registerLocationFlags(flags)
	flags.String("open-mode", "", "Index open mode: create, create_or_append or append")
	flags.String("provider", "", "Repository provider: git, subversion or memory (default git)")
	flags.String("source-username", "", "Repository username")
	flags.String("source-password", "", "Repository password")
	flags.Duration("source-timeout", 0, "Timeout for fetching revisions (default 60s)")
}

func registerSearchFlags(flags *pflag.FlagSet) {
	flags.IntP("max-results", "n", 0, "Maximum number of revisions to return (default 100)")
	flags.StringP("sort", "s", "", "Sort field, '-' prefix for descending, or _score (default -RevisionNumber)")
}
