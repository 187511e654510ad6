package hcl

import (
	"path"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ModuleSourceKind is the closed set of module-source classifications
// (§4.5).
type ModuleSourceKind string

const (
	SourceLocal    ModuleSourceKind = "local"
	SourceRegistry ModuleSourceKind = "registry"
	SourceGitHub   ModuleSourceKind = "github"
	SourceGit      ModuleSourceKind = "git"
	SourceS3       ModuleSourceKind = "s3"
	SourceGCS      ModuleSourceKind = "gcs"
	SourceUnknown  ModuleSourceKind = "unknown"
)

// ModuleSource is the classified result of parsing a module `source`
// attribute string (§4.5).
type ModuleSource struct {
	Kind ModuleSourceKind
	Raw  string

	// Local
	Path         string
	ResolvedPath string

	// GitHub / Git / Registry
	Host      string
	Owner     string
	Repo      string
	SubPath   string
	Ref       string
	IsValidRef bool
	IsSSH      bool

	// Registry
	Namespace string
	Name      string
	Provider  string

	// S3 / GCS
	Bucket string
	Key    string
}

var (
	reGitHubHTTPS = regexp.MustCompile(`^github\.com/([^/]+)/([^/?]+?)(\.git)?(?://(.+?))?(?:\?ref=(.+))?$`)
	reGitHubSSH   = regexp.MustCompile(`^git@github\.com:([^/]+)/([^/?]+?)(\.git)?(?://(.+?))?(?:\?ref=(.+))?$`)
	reS3          = regexp.MustCompile(`^s3::https://s3(-[a-z0-9-]+)?\.amazonaws\.com/([^/]+)/(.+)$`)
	reGCS         = regexp.MustCompile(`^gcs::https://www\.googleapis\.com/storage/v1/([^/]+)/(.+)$`)
	reRegistry    = regexp.MustCompile(`^(?:([a-zA-Z0-9.-]+\.[a-zA-Z]{2,}(?::[0-9]+)?)/)?([a-zA-Z0-9_-]+)/([a-zA-Z0-9_-]+)/([a-zA-Z0-9_-]+)$`)
)

// ParseModuleSource classifies source relative to callerDir, trying each
// pattern in the §4.5 order and returning the first match.
func ParseModuleSource(source, callerDir string) ModuleSource {
	source = strings.TrimSpace(source)

	if strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../") || strings.HasPrefix(source, "/") {
		resolved := source
		if !strings.HasPrefix(source, "/") {
			resolved = path.Join(callerDir, source)
		}
		return ModuleSource{Kind: SourceLocal, Raw: source, Path: source, ResolvedPath: resolved}
	}

	if m := reGitHubHTTPS.FindStringSubmatch(source); m != nil {
		return buildGitHubSource(source, m, false)
	}

	if m := reGitHubSSH.FindStringSubmatch(source); m != nil {
		return buildGitHubSource(source, m, true)
	}

	if strings.HasPrefix(source, "git::") {
		rest := strings.TrimPrefix(source, "git::")
		ref := extractRef(&rest)
		base, sub := splitGitSubPath(rest)
		return ModuleSource{Kind: SourceGit, Raw: source, Host: base, SubPath: sub, Ref: ref, IsValidRef: isValidRef(ref)}
	}

	if m := reS3.FindStringSubmatch(source); m != nil {
		return ModuleSource{Kind: SourceS3, Raw: source, Bucket: m[2], Key: m[3]}
	}

	if m := reGCS.FindStringSubmatch(source); m != nil {
		return ModuleSource{Kind: SourceGCS, Raw: source, Bucket: m[1], Key: m[2]}
	}

	if m := reRegistry.FindStringSubmatch(source); m != nil {
		host := m[1]
		if host == "" {
			host = "registry.terraform.io"
		}
		return ModuleSource{
			Kind: SourceRegistry, Raw: source,
			Host: host, Namespace: m[2], Name: m[3], Provider: m[4],
		}
	}

	return ModuleSource{Kind: SourceUnknown, Raw: source}
}

func buildGitHubSource(source string, m []string, isSSH bool) ModuleSource {
	owner, repo, sub, ref := m[1], m[2], m[4], m[5]
	return ModuleSource{
		Kind: SourceGitHub, Raw: source,
		Owner: owner, Repo: repo, SubPath: sub, Ref: ref, IsValidRef: isValidRef(ref),
		IsSSH: isSSH,
	}
}

// splitGitSubPath splits a git:: URL at the first "//" not preceded by ":",
// separating the repository base from an in-repo subdirectory.
func splitGitSubPath(s string) (base, sub string) {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '/' && s[i+1] == '/' && (i == 0 || s[i-1] != ':') {
			return s[:i], s[i+2:]
		}
	}
	return s, ""
}

// extractRef strips a trailing `?ref=VALUE` from *s and returns VALUE.
func extractRef(s *string) string {
	idx := strings.Index(*s, "?ref=")
	if idx < 0 {
		return ""
	}
	ref := (*s)[idx+len("?ref="):]
	*s = (*s)[:idx]
	return ref
}

// isValidRef reports whether ref parses as a semantic version, used only as
// an informational flag (the classification itself does not require a valid
// semver ref).
func isValidRef(ref string) bool {
	if ref == "" {
		return false
	}
	_, err := semver.NewVersion(strings.TrimPrefix(ref, "v"))
	return err == nil
}
