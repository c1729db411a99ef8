package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sha1n/relic-history/internal/config"
	"github.com/sha1n/relic-history/internal/history"
	"github.com/sha1n/relic-history/internal/output"
	"github.com/sha1n/relic-history/internal/search"
	"github.com/sha1n/relic-history/internal/sourcecontrol"
	"github.com/spf13/pflag"
)

// CommandParams contains dependencies for the index and search commands
type CommandParams struct {
	LoadSettings  func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings func(*config.Settings) error
	NewSource     func(*config.Settings) (sourcecontrol.RevisionSource, error)

	// Printer writes command output. When nil, a stdout printer is created.
	Printer *output.Printer
}

// DefaultCommandParams returns production dependencies
func DefaultCommandParams() CommandParams {
	return CommandParams{
		LoadSettings:  config.LoadSettingsWithFlags,
		ValidSettings: config.ValidateSettings,
		NewSource:     newSource,
	}
}

func (p CommandParams) printer(flags *pflag.FlagSet) *output.Printer {
	if p.Printer != nil {
		return p.Printer
	}
	noColor := false
	if flags != nil {
		noColor, _ = flags.GetBool("no-color")
	}
	return output.NewPrinter(!noColor)
}

// RunIndexCommand appends the revisions added since the last run to the index
// and prints the revision count, index size and taxonomy size. With --start or
// --end it indexes that revision range instead.
func RunIndexCommand(ctx context.Context, params CommandParams, flags *pflag.FlagSet) error {
	settings, err := loadValidSettings(params.LoadSettings, params.ValidSettings, flags)
	if err != nil {
		return err
	}
	configureLogging()

	src, err := params.NewSource(settings)
	if err != nil {
		return fmt.Errorf("failed to create revision source: %w", err)
	}

	svc, err := history.NewService(settings, src, nil)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("failed to create history service: %w", err)
	}
	defer func() { _ = svc.Close() }()

	var result history.IndexResult
	if begin, end, ranged := revisionRange(flags); ranged {
		result, err = svc.IndexRange(ctx, begin, end)
	} else {
		result, err = svc.Sync(ctx)
	}
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	params.printer(flags).IndexResult(result)
	return nil
}

// revisionRange returns the --start and --end values when either was set.
func revisionRange(flags *pflag.FlagSet) (begin, end int64, ranged bool) {
	if flags == nil || !(flags.Changed("start") || flags.Changed("end")) {
		return 0, sourcecontrol.LatestRevision, false
	}
	begin, _ = flags.GetInt64("start")
	end, _ = flags.GetInt64("end")
	return begin, end, true
}

// RunSearchCommand runs query against the index and prints hits and facet tables.
func RunSearchCommand(params CommandParams, flags *pflag.FlagSet, query string) error {
	settings, err := loadValidSettings(params.LoadSettings, params.ValidSettings, flags)
	if err != nil {
		return err
	}
	configureLogging()

	var (
		facetPaths []string
		facetLimit int
	)
	if flags != nil {
		facetPaths, _ = flags.GetStringSlice("facet")
		facetLimit, _ = flags.GetInt("facet-limit")
	}
	facets, err := parseFacets(facetPaths, facetLimit)
	if err != nil {
		return err
	}

	indexDir, taxonomyDir := settings.Index.Locations(sourcecontrol.RepositoryID(settings.Source.Location))
	searcher, err := search.NewSearcher(indexDir, taxonomyDir)
	if err != nil {
		return err
	}
	defer func() { _ = searcher.Dispose() }()

	if err := searcher.Open(); err != nil {
		return fmt.Errorf("no index at %s, run the index command first: %w", indexDir, err)
	}

	result, err := history.RunSearch(searcher, history.SearchOptions{
		Query:  query,
		Sort:   settings.Search.Sort,
		Facets: facets,
		Limit:  settings.Search.MaxResults,
	})
	if err != nil {
		return err
	}

	return params.printer(flags).SearchResult(result)
}

// parseFacets reads "path" or "path=max" values into facet requests.
func parseFacets(values []string, defaultMax int) (map[string]int, error) {
	if len(values) == 0 {
		return nil, nil
	}

	facets := make(map[string]int, len(values))
	for _, v := range values {
		path, maxStr, found := strings.Cut(strings.TrimSpace(v), "=")
		if path == "" {
			return nil, fmt.Errorf("invalid facet %q: empty path", v)
		}
		maxResults := defaultMax
		if found {
			n, err := strconv.Atoi(maxStr)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid facet %q: max results must be a positive number", v)
			}
			maxResults = n
		}
		facets[path] = maxResults
	}
	return facets, nil
}
