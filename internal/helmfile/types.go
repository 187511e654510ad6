// Package helmfile parses helmfile.yaml documents into a typed model and
// validates release dependency graphs.
package helmfile

import "strings"

// SetValue is one `set:` entry on a release.
type SetValue struct {
	Name  string
	Value string
}

// Release is a single `releases:` entry (§3.7).
type Release struct {
	Name                string
	Namespace           string
	Chart               string
	Version             string
	Needs               []string
	Values              []string
	Set                 []SetValue
	Condition           string
	Installed           *bool
	Wait                *bool
	Timeout             *int
	Atomic              *bool
	Force               *bool
	RecreatePods        *bool
	CreateNamespace     *bool
	Labels              map[string]string
	MissingFileHandler  string
	Hooks               []map[string]any
	Secrets             []string
	LineNumber          int
}

// Env is one `environments:` entry.
type Env struct {
	Values map[string]any
}

// Repository is one `repositories:` entry.
type Repository struct {
	Name string
	URL  string
}

// Helmfile is the parsed top-level document (§3.7).
type Helmfile struct {
	FilePath      string
	HelmDefaults  map[string]any
	Environments  map[string]Env
	Repositories  []Repository
	Releases      []*Release
	Bases         []string
	HelmBinary    string
}

// HasEnvironmentTemplating reports whether r's values/condition/chart
// fields reference `.Environment.*`, `.Values.*`, or `.StateValues.*`
// Go-template syntax (§4.10).
func (r *Release) HasEnvironmentTemplating() bool {
	fields := append([]string{r.Chart, r.Condition}, r.Values...)
	for _, f := range fields {
		if containsTemplateRef(f) {
			return true
		}
	}
	return false
}

func containsTemplateRef(s string) bool {
	for _, marker := range []string{"{{ .Environment.", "{{.Environment.", "{{ .Values.", "{{.Values.", "{{ .StateValues.", "{{.StateValues."} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
