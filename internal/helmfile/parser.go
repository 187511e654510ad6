package helmfile

import (
	"fmt"

	"github.com/iacgraph/iacgraph/internal/diagnostic"
	"github.com/iacgraph/iacgraph/pkg/options"
	"go.yaml.in/yaml/v4"
)

type rawHelmfile struct {
	HelmDefaults map[string]any            `yaml:"helmDefaults"`
	Environments map[string]rawEnv         `yaml:"environments"`
	Repositories []rawRepository           `yaml:"repositories"`
	Releases     []yaml.Node               `yaml:"releases"`
	Bases        []string                  `yaml:"bases"`
	HelmBinary   string                    `yaml:"helmBinary"`
}

type rawEnv struct {
	Values map[string]any `yaml:"values"`
}

type rawRepository struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type rawRelease struct {
	Name               string            `yaml:"name"`
	Namespace          string            `yaml:"namespace"`
	Chart              string            `yaml:"chart"`
	Version            string            `yaml:"version"`
	Needs              []string          `yaml:"needs"`
	Values             []yaml.Node       `yaml:"values"`
	Set                []rawSetValue     `yaml:"set"`
	Condition          string            `yaml:"condition"`
	Installed          *bool             `yaml:"installed"`
	Wait               *bool             `yaml:"wait"`
	Timeout            *int              `yaml:"timeout"`
	Atomic             *bool             `yaml:"atomic"`
	Force              *bool             `yaml:"force"`
	RecreatePods       *bool             `yaml:"recreatePods"`
	CreateNamespace    *bool             `yaml:"createNamespace"`
	Labels             map[string]string `yaml:"labels"`
	MissingFileHandler string            `yaml:"missingFileHandler"`
	Hooks              []map[string]any  `yaml:"hooks"`
	Secrets            []string          `yaml:"secrets"`
}

type rawSetValue struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Parse parses content into a Helmfile and validates its release dependency
// graph (§4.10).
func Parse(content []byte, filePath string, opts options.Options) diagnostic.Result[*Helmfile] {
	var raw rawHelmfile
	var diags diagnostic.Collector

	if err := yaml.Unmarshal(content, &raw); err != nil {
		sev := diagnostic.SeverityFatal
		if opts.ErrorRecovery {
			sev = diagnostic.SeverityError
		}
		diags.Add(diagnostic.Diagnostic{
			Code: diagnostic.CodeInvalidYAML, Message: fmt.Sprintf("failed to parse helmfile YAML: %v", err),
			Severity: sev, Location: &diagnostic.Location{File: filePath},
		})
		if sev == diagnostic.SeverityFatal {
			return diagnostic.NewResult[*Helmfile](nil, diags.Errors, diags.Warnings)
		}
		return diagnostic.NewResult(&Helmfile{FilePath: filePath}, diags.Errors, diags.Warnings)
	}

	hf := &Helmfile{
		FilePath:     filePath,
		HelmDefaults: raw.HelmDefaults,
		Environments: map[string]Env{},
		Bases:        raw.Bases,
		HelmBinary:   raw.HelmBinary,
	}
	for name, e := range raw.Environments {
		hf.Environments[name] = Env{Values: e.Values}
	}
	for _, r := range raw.Repositories {
		hf.Repositories = append(hf.Repositories, Repository{Name: r.Name, URL: r.URL})
	}

	for _, node := range raw.Releases {
		var rr rawRelease
		if err := node.Decode(&rr); err != nil {
			diags.Add(diagnostic.Diagnostic{
				Code: diagnostic.CodeMissingReleaseName, Message: fmt.Sprintf("invalid release entry: %v", err),
				Severity: diagnostic.SeverityError,
				Location: &diagnostic.Location{File: filePath, LineStart: node.Line, LineEnd: node.Line},
			})
			continue
		}

		if rr.Name == "" {
			diags.Add(diagnostic.Diagnostic{
				Code: diagnostic.CodeMissingReleaseName, Message: "release is missing required field 'name'",
				Severity: diagnostic.SeverityError,
				Location: &diagnostic.Location{File: filePath, LineStart: node.Line, LineEnd: node.Line},
			})
			continue
		}
		if rr.Chart == "" {
			diags.Add(diagnostic.Diagnostic{
				Code: diagnostic.CodeMissingReleaseChart, Message: fmt.Sprintf("release %q is missing required field 'chart'", rr.Name),
				Severity: diagnostic.SeverityError,
				Location: &diagnostic.Location{File: filePath, LineStart: node.Line, LineEnd: node.Line},
			})
			continue
		}

		namespace := rr.Namespace
		if namespace == "" {
			namespace = "default"
		}

		release := &Release{
			Name: rr.Name, Namespace: namespace, Chart: rr.Chart, Version: rr.Version,
			Needs: rr.Needs, Values: decodeValuesEntries(rr.Values), Condition: rr.Condition,
			Installed: rr.Installed, Wait: rr.Wait, Timeout: rr.Timeout, Atomic: rr.Atomic,
			Force: rr.Force, RecreatePods: rr.RecreatePods, CreateNamespace: rr.CreateNamespace,
			Labels: rr.Labels, MissingFileHandler: rr.MissingFileHandler, Hooks: rr.Hooks,
			Secrets: rr.Secrets, LineNumber: node.Line,
		}
		for _, sv := range rr.Set {
			release.Set = append(release.Set, SetValue{Name: sv.Name, Value: sv.Value})
		}
		hf.Releases = append(hf.Releases, release)
	}

	validationDiags := Validate(hf)
	diags.Errors = append(diags.Errors, validationDiags...)

	return diagnostic.NewResult(hf, diags.Errors, diags.Warnings)
}

func decodeValuesEntries(nodes []yaml.Node) []string {
	var out []string
	for _, n := range nodes {
		var s string
		if n.Decode(&s) == nil {
			out = append(out, s)
			continue
		}
		var m map[string]any
		if n.Decode(&m) == nil {
			out = append(out, fmt.Sprintf("%v", m))
		}
	}
	return out
}
