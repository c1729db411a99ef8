package sourcecontrol

import (
	"errors"
	"testing"

	"github.com/sha1n/relic-history/internal/domain"
)

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderType
		wantErr bool
	}{
		{"memory", ProviderMemory, false},
		{"Mock", ProviderMemory, false},
		{"git", ProviderGit, false},
		{"SVN", ProviderSubversion, false},
		{"subversion", ProviderSubversion, false},
		{"cvs", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProviderType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrConfiguration) {
					t.Errorf("Expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(Options{Provider: "memory"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := src.(*MemorySource); !ok {
		t.Errorf("Expected *MemorySource, got %T", src)
	}

	src, err = NewSource(Options{Provider: "git", Location: "/tmp/repo"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := src.(*GitSource); !ok {
		t.Errorf("Expected *GitSource, got %T", src)
	}

	src, err = NewSource(Options{Provider: "svn", Location: "svn://example.com/repo", Username: "u"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := src.(*SubversionSource); !ok {
		t.Errorf("Expected *SubversionSource, got %T", src)
	}
}

func TestNewSource_MissingLocation(t *testing.T) {
	for _, provider := range []string{"git", "subversion"} {
		_, err := NewSource(Options{Provider: provider})
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", provider, err)
		}
	}
}
