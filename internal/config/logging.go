package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: index", "value", IndexSettingsLogValue(s.Index))
	logger.InfoContext(ctx, "Config: source", "value", SourceSettingsLogValue(s.Source))
	logger.InfoContext(ctx, "Config: search.max_results", "value", s.Search.MaxResults)
	logger.InfoContext(ctx, "Config: search.sort", "value", s.Search.Sort)
	logger.InfoContext(ctx, "Config: sync.on_start", "value", s.Sync.OnStart)
	if s.Sync.Interval > 0 {
		logger.InfoContext(ctx, "Config: sync.interval", "value", s.Sync.Interval)
	}
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// IndexSettingsLogValue returns a slog.Value for IndexSettings
func IndexSettingsLogValue(s IndexSettings) slog.Value {
	attrs := []slog.Attr{
		slog.String("base_dir", s.BaseDir),
		slog.String("open_mode", s.OpenMode),
	}
	if s.IndexDir != "" {
		attrs = append(attrs, slog.String("index_dir", s.IndexDir))
	}
	if s.TaxonomyDir != "" {
		attrs = append(attrs, slog.String("taxonomy_dir", s.TaxonomyDir))
	}
	return slog.GroupValue(attrs...)
}

// SourceSettingsLogValue returns a slog.Value for SourceSettings with masked password
func SourceSettingsLogValue(s SourceSettings) slog.Value {
	password := ""
	if s.Password != "" {
		password = "****"
	}
	return slog.GroupValue(
		slog.String("provider", s.Provider),
		slog.String("location", s.Location),
		slog.String("username", s.Username),
		slog.String("password", password),
		slog.Duration("timeout", s.Timeout),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("index", IndexSettingsLogValue(s.Index)),
		slog.Any("source", SourceSettingsLogValue(s.Source)),
	)
}
