// Package classify recognizes which parser a file belongs to, by path and,
// when the path is ambiguous or unavailable, by content (§6.1).
package classify

import (
	"path/filepath"
	"strings"
)

// Kind is the closed set of file kinds this package recognizes.
type Kind string

const (
	KindHCL      Kind = "hcl"
	KindGHA      Kind = "gha"
	KindHelmfile Kind = "helmfile"
	KindUnknown  Kind = "unknown"
)

var helmfileBaseNames = map[string]bool{
	"helmfile":      true,
	"helmfile.yaml": true,
	"helmfile.yml":  true,
}

// Sniff classifies path/content into a Kind. Path-based recognition is
// tried first; when the path gives no verdict, content heuristics decide.
// Either path or content may be empty.
func Sniff(path string, content []byte) Kind {
	if k := sniffPath(path); k != KindUnknown {
		return k
	}
	return sniffContent(content)
}

func sniffPath(path string) Kind {
	if path == "" {
		return KindUnknown
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)

	if ext == ".tf" || strings.HasSuffix(base, ".tf.json") {
		return KindHCL
	}

	if (ext == ".yml" || ext == ".yaml") && isUnderWorkflowsDir(path) {
		return KindGHA
	}

	if helmfileBaseNames[strings.ToLower(base)] {
		return KindHelmfile
	}
	if (ext == ".yaml" || ext == ".yml") && matchesHelmfileGlob(base) {
		return KindHelmfile
	}

	return KindUnknown
}

func isUnderWorkflowsDir(path string) bool {
	normalized := filepath.ToSlash(path)
	return strings.Contains(normalized, "/.github/workflows/") || strings.HasPrefix(normalized, ".github/workflows/")
}

// matchesHelmfileGlob recognizes the `helmfile.*.yaml` family (e.g.
// helmfile.production.yaml) without pulling in a general glob matcher for
// a single fixed shape.
func matchesHelmfileGlob(base string) bool {
	lower := strings.ToLower(base)
	if !strings.HasPrefix(lower, "helmfile.") {
		return false
	}
	ext := filepath.Ext(lower)
	return ext == ".yaml" || ext == ".yml"
}

func sniffContent(content []byte) Kind {
	if len(content) == 0 {
		return KindUnknown
	}
	text := string(content)

	hasReleases := containsTopLevelKey(text, "releases:")
	hasRepositories := containsTopLevelKey(text, "repositories:")
	hasHelmDefaults := containsTopLevelKey(text, "helmDefaults:")
	if hasReleases && (hasRepositories || hasHelmDefaults) {
		return KindHelmfile
	}

	hasOn := containsTopLevelKey(text, "on:")
	hasJobs := containsTopLevelKey(text, "jobs:")
	if hasOn || hasJobs {
		return KindGHA
	}

	if looksLikeHCL(text) {
		return KindHCL
	}

	return KindUnknown
}

// containsTopLevelKey reports whether text contains key at column zero on
// some line, the cheap proxy for "top-level YAML key" used by the
// recognition heuristic (§6.1).
func containsTopLevelKey(text, key string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, key) {
			return true
		}
	}
	return false
}

var hclBlockKeywords = []string{
	"resource \"", "data \"", "module \"", "variable \"", "output \"",
	"provider \"", "locals {", "terraform {",
}

func looksLikeHCL(text string) bool {
	for _, kw := range hclBlockKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
