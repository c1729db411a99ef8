package sourcecontrol

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Matches: git@github.com:org/repo.git
	scpPattern = regexp.MustCompile(`^[^@/]+@([^:/]+):(.+?)(?:\.git)?/?$`)

	// Matches any scheme-qualified location: svn://, https://, ssh://, file://
	schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// RepositoryID converts a repository location to a filesystem-safe identifier.
// The ID names index directories and manifest entries. Credentials embedded
// in URLs never reach the ID.
//
// Examples:
//   - git@github.com:org/repo.git -> github.com_org_repo
//   - https://user:pw@svn.example.com/repos/proj/ -> svn.example.com_repos_proj
//   - /srv/git/proj -> srv_git_proj
func RepositoryID(location string) string {
	location = strings.TrimSpace(location)

	if m := scpPattern.FindStringSubmatch(location); m != nil {
		return sanitizeForFilesystem(m[1] + "/" + m[2])
	}

	if schemePattern.MatchString(location) {
		if u, err := url.Parse(location); err == nil {
			return sanitizeForFilesystem(u.Host + u.Path)
		}
	}

	return sanitizeForFilesystem(filepath.ToSlash(filepath.Clean(location)))
}

// sanitizeForFilesystem replaces path separators, colons and @ with underscores.
func sanitizeForFilesystem(s string) string {
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	s = strings.Trim(s, "/")
	s = strings.NewReplacer("/", "_", ":", "_", "@", "_", "\\", "_").Replace(s)
	if s == "" || s == "." {
		return "default"
	}
	return s
}
