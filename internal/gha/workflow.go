package gha

import (
	"fmt"

	"github.com/iacgraph/iacgraph/internal/diagnostic"
	"github.com/iacgraph/iacgraph/pkg/options"
	"go.yaml.in/yaml/v4"
)

// rawWorkflow mirrors the YAML shape before union normalization. `on`,
// `needs`, `runs-on`, `permissions`, and `concurrency` are kept as raw
// yaml.Node values so their Kind (scalar/sequence/mapping) can route to the
// right typed shape, the way other_examples/psa-act's model.Workflow does
// for `on`/`needs`. `jobs` is also kept as a raw mapping node so job ids
// can be read in declaration order.
type rawWorkflow struct {
	Name        string                  `yaml:"name"`
	RawOn       yaml.Node               `yaml:"on"`
	Env         map[string]string       `yaml:"env"`
	Jobs        yaml.Node               `yaml:"jobs"`
	Defaults    map[string]string       `yaml:"defaults"`
	Permissions yaml.Node               `yaml:"permissions"`
	Concurrency yaml.Node               `yaml:"concurrency"`
}

type rawJob struct {
	Name        string            `yaml:"name"`
	RawRunsOn   yaml.Node         `yaml:"runs-on"`
	RawNeeds    yaml.Node         `yaml:"needs"`
	Outputs     map[string]string `yaml:"outputs"`
	RawSteps    []yaml.Node       `yaml:"steps"`
	Env         map[string]string `yaml:"env"`
	If          string            `yaml:"if"`
	Strategy    *rawStrategy      `yaml:"strategy"`
	Container   yaml.Node         `yaml:"container"`
	Services    map[string]yaml.Node `yaml:"services"`
	Environment yaml.Node         `yaml:"environment"`
	Permissions yaml.Node         `yaml:"permissions"`
	Concurrency yaml.Node         `yaml:"concurrency"`
	Defaults    map[string]string `yaml:"defaults"`
}

type rawStrategy struct {
	FailFast    *bool                  `yaml:"fail-fast"`
	MaxParallel *int                   `yaml:"max-parallel"`
	Matrix      map[string]yaml.Node   `yaml:"matrix"`
}

type rawStep struct {
	ID               string            `yaml:"id"`
	Name             string            `yaml:"name"`
	If               string            `yaml:"if"`
	Uses             string            `yaml:"uses"`
	Run              string            `yaml:"run"`
	Shell            string            `yaml:"shell"`
	WorkingDirectory string            `yaml:"working-directory"`
	Env              map[string]string `yaml:"env"`
	With             map[string]string `yaml:"with"`
	ContinueOnError  bool              `yaml:"continue-on-error"`
	TimeoutMinutes   *int              `yaml:"timeout-minutes"`
}

// ParseWorkflow parses content into a typed Workflow, per §4.7.
func ParseWorkflow(content []byte, filePath string, opts options.Options) diagnostic.Result[*Workflow] {
	var raw rawWorkflow
	var diags diagnostic.Collector

	if err := yaml.Unmarshal(content, &raw); err != nil {
		d := diagnostic.Diagnostic{
			Code:     diagnostic.CodeInvalidYAML,
			Message:  fmt.Sprintf("failed to parse workflow YAML: %v", err),
			Severity: diagnostic.SeverityFatal,
			Location: &diagnostic.Location{File: filePath},
		}
		if opts.ErrorRecovery {
			d.Severity = diagnostic.SeverityError
			diags.Add(d)
			return diagnostic.NewResult(&Workflow{FilePath: filePath}, diags.Errors, diags.Warnings)
		}
		diags.Add(d)
		return diagnostic.NewResult[*Workflow](nil, diags.Errors, diags.Warnings)
	}

	wf := &Workflow{
		Name:     raw.Name,
		FilePath: filePath,
		Env:      stringMap(raw.Env),
		Jobs:     map[string]*Job{},
		Defaults: stringMap(raw.Defaults),
	}
	wf.Triggers = parseTriggers(raw.RawOn)
	wf.Permissions = parsePermissions(raw.Permissions)
	wf.Concurrency = parseConcurrency(raw.Concurrency)

	var jobIDs []string
	var jobNodes []yaml.Node
	if raw.Jobs.Kind == yaml.MappingNode {
		jobIDs, jobNodes = mappingEntries(raw.Jobs)
	}

	for i, id := range jobIDs {
		node := jobNodes[i]
		var rj rawJob
		if err := node.Decode(&rj); err != nil {
			diags.Add(diagnostic.Diagnostic{
				Code:     diagnostic.CodeInvalidJob,
				Message:  fmt.Sprintf("job %q: %v", id, err),
				Severity: diagnostic.SeverityError,
				Location: &diagnostic.Location{File: filePath, LineStart: node.Line, LineEnd: node.Line},
			})
			continue
		}
		job, jobDiags := buildJob(id, rj, filePath, opts)
		diags.Errors = append(diags.Errors, jobDiags.Errors...)
		diags.Warnings = append(diags.Warnings, jobDiags.Warnings...)
		wf.Jobs[id] = job
		wf.JobOrder = append(wf.JobOrder, id)
	}

	if opts.DetectTerraform || opts.DetectHelm || opts.DetectKubernetes || opts.DetectCloudProviders {
		DetectToolSteps(wf, opts)
	}

	return diagnostic.NewResult(wf, diags.Errors, diags.Warnings)
}

func buildJob(id string, rj rawJob, filePath string, opts options.Options) (*Job, diagnostic.Collector) {
	var diags diagnostic.Collector

	job := &Job{
		ID:          id,
		Name:        rj.Name,
		RunsOn:      stringOrSequence(rj.RawRunsOn),
		Needs:       stringOrSequence(rj.RawNeeds),
		Outputs:     stringMap(rj.Outputs),
		Env:         stringMap(rj.Env),
		If:          rj.If,
		Services:    map[string]string{},
		Permissions: parsePermissions(rj.Permissions),
		Concurrency: parseConcurrency(rj.Concurrency),
		Defaults:    stringMap(rj.Defaults),
	}

	if !rj.Container.IsZero() {
		var s string
		if rj.Container.Decode(&s) == nil {
			job.Container = s
		} else {
			var m map[string]string
			if rj.Container.Decode(&m) == nil {
				job.Container = m["image"]
			}
		}
	}

	if !rj.Environment.IsZero() {
		var s string
		if rj.Environment.Decode(&s) == nil {
			job.Environment = s
		} else {
			var m map[string]string
			if rj.Environment.Decode(&m) == nil {
				job.Environment = m["name"]
			}
		}
	}

	for name, node := range rj.Services {
		var s string
		if node.Decode(&s) == nil {
			job.Services[name] = s
			continue
		}
		var m map[string]string
		if node.Decode(&m) == nil {
			job.Services[name] = m["image"]
		}
	}

	if rj.Strategy != nil {
		job.Strategy = buildStrategy(rj.Strategy)
	}

	for _, stepNode := range rj.RawSteps {
		var rs rawStep
		if err := stepNode.Decode(&rs); err != nil {
			diags.Add(diagnostic.Diagnostic{
				Code:     diagnostic.CodeInvalidStep,
				Message:  fmt.Sprintf("job %q: %v", id, err),
				Severity: diagnostic.SeverityError,
				Location: &diagnostic.Location{File: filePath, LineStart: stepNode.Line, LineEnd: stepNode.Line},
			})
			continue
		}
		step := buildStep(rs, filePath, stepNode.Line)
		job.Steps = append(job.Steps, step)
	}

	return job, diags
}

func buildStrategy(rs *rawStrategy) *Strategy {
	s := &Strategy{Matrix: map[string][]string{}}
	if rs.FailFast != nil {
		s.FailFast = *rs.FailFast
		s.HasFailFast = true
	}
	if rs.MaxParallel != nil {
		s.MaxParallel = *rs.MaxParallel
		s.HasMaxParallel = true
	}
	for key, node := range rs.Matrix {
		if key == "include" {
			s.Include = decodeMatrixObjects(node)
			continue
		}
		if key == "exclude" {
			s.Exclude = decodeMatrixObjects(node)
			continue
		}
		s.Matrix[key] = decodeStringSequence(node)
	}
	return s
}

func decodeMatrixObjects(node yaml.Node) []map[string]string {
	var raw []map[string]any
	if node.Decode(&raw) != nil {
		return nil
	}
	out := make([]map[string]string, 0, len(raw))
	for _, m := range raw {
		conv := map[string]string{}
		for k, v := range m {
			conv[k] = fmt.Sprintf("%v", v)
		}
		out = append(out, conv)
	}
	return out
}

func decodeStringSequence(node yaml.Node) []string {
	var raw []any
	if node.Decode(&raw) != nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}

func buildStep(rs rawStep, filePath string, line int) Step {
	step := Step{
		ID:               rs.ID,
		Name:             rs.Name,
		If:               rs.If,
		Env:              stringMap(rs.Env),
		ContinueOnError:  rs.ContinueOnError,
		WorkingDirectory: rs.WorkingDirectory,
		Location:         diagnostic.Location{File: filePath, LineStart: line, LineEnd: line},
		Run:              rs.Run,
		Shell:            rs.Shell,
		Uses:             rs.Uses,
		With:             stringMap(rs.With),
	}
	if rs.TimeoutMinutes != nil {
		step.TimeoutMinutes = *rs.TimeoutMinutes
		step.HasTimeout = true
	}
	if rs.Uses != "" {
		step.Kind = StepUses
	} else {
		step.Kind = StepRun
	}
	return step
}

func stringMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// stringOrSequence decodes a yaml.Node that may be a scalar or a sequence of
// scalars into a []string, per §4.7's `runs-on` / `needs` normalization.
func stringOrSequence(node yaml.Node) []string {
	if node.IsZero() {
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if node.Decode(&s) == nil && s != "" {
			return []string{s}
		}
	case yaml.SequenceNode:
		var seq []string
		if node.Decode(&seq) == nil {
			return seq
		}
	}
	return nil
}

// parseTriggers normalizes `on:` from bare string, string sequence, or
// mapping form into a typed, ordered Trigger sequence (§4.7).
func parseTriggers(node yaml.Node) []Trigger {
	if node.IsZero() {
		return nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if node.Decode(&name) == nil {
			return []Trigger{buildTrigger(name, yaml.Node{})}
		}
	case yaml.SequenceNode:
		var names []string
		if node.Decode(&names) == nil {
			out := make([]Trigger, 0, len(names))
			for _, n := range names {
				out = append(out, buildTrigger(n, yaml.Node{}))
			}
			return out
		}
	case yaml.MappingNode:
		keys, values := mappingEntries(node)
		out := make([]Trigger, 0, len(keys))
		for i, k := range keys {
			out = append(out, buildTrigger(k, values[i]))
		}
		return out
	}
	return nil
}

// mappingEntries returns a MappingNode's keys and value nodes in document
// order (ordering guarantee, §5).
func mappingEntries(node yaml.Node) ([]string, []yaml.Node) {
	var keys []string
	var values []yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
		values = append(values, *node.Content[i+1])
	}
	return keys, values
}

var triggerTypeByName = map[string]TriggerType{
	"push":                TriggerPush,
	"pull_request":        TriggerPullRequest,
	"pull_request_target": TriggerPullRequest,
	"workflow_dispatch":   TriggerWorkflowDispatch,
	"schedule":            TriggerSchedule,
	"workflow_call":       TriggerWorkflowCall,
	"workflow_run":        TriggerWorkflowRun,
	"repository_dispatch": TriggerRepositoryDispatch,
	"release":             TriggerRelease,
	"issues":              TriggerIssues,
	"issue_comment":       TriggerIssueComment,
}

func buildTrigger(name string, body yaml.Node) Trigger {
	t := Trigger{Name: name}
	kind, ok := triggerTypeByName[name]
	if !ok {
		t.Type = TriggerGeneric
		return t
	}
	t.Type = kind

	if body.IsZero() {
		return t
	}

	if kind == TriggerSchedule && body.Kind == yaml.SequenceNode {
		var scheduleEntries []map[string]string
		if body.Decode(&scheduleEntries) == nil {
			for _, e := range scheduleEntries {
				t.Cron = append(t.Cron, e["cron"])
			}
		}
		return t
	}

	if body.Kind != yaml.MappingNode {
		return t
	}

	var m struct {
		Branches       []string                    `yaml:"branches"`
		BranchesIgnore []string                    `yaml:"branches-ignore"`
		Tags           []string                    `yaml:"tags"`
		TagsIgnore     []string                    `yaml:"tags-ignore"`
		Paths          []string                    `yaml:"paths"`
		PathsIgnore    []string                    `yaml:"paths-ignore"`
		Types          []string                    `yaml:"types"`
		Inputs         map[string]rawWorkflowInput `yaml:"inputs"`
		Workflows      []string                    `yaml:"workflows"`
	}
	_ = body.Decode(&m)

	t.Branches = m.Branches
	t.BranchesIgnore = m.BranchesIgnore
	t.Tags = m.Tags
	t.TagsIgnore = m.TagsIgnore
	t.Paths = m.Paths
	t.PathsIgnore = m.PathsIgnore
	t.Types = m.Types
	t.Workflows = m.Workflows
	if kind == TriggerRepositoryDispatch {
		t.EventTypes = m.Types
	}

	if len(m.Inputs) > 0 {
		t.Inputs = map[string]WorkflowInput{}
		for k, v := range m.Inputs {
			t.Inputs[k] = WorkflowInput{
				Description: v.Description,
				Required:    v.Required,
				Default:     v.Default,
				Type:        v.Type,
			}
		}
	}

	return t
}

type rawWorkflowInput struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
	Type        string `yaml:"type"`
}

var permissionKeyAliases = map[string]string{
	"actions": "actions", "checks": "checks", "contents": "contents",
	"deployments": "deployments", "idToken": "id-token", "id-token": "id-token",
	"issues": "issues", "discussions": "discussions", "packages": "packages",
	"pages": "pages", "pullRequests": "pull-requests", "pull-requests": "pull-requests",
	"repositoryProjects": "repository-projects", "repository-projects": "repository-projects",
	"securityEvents": "security-events", "security-events": "security-events",
	"statuses": "statuses",
}

// parsePermissions accepts both a bare `read-all`/`write-all`/`none` scalar
// and a per-scope mapping with kebab-case or camelCase keys, retaining only
// "read"/"write"/"none" values (§4.7).
func parsePermissions(node yaml.Node) map[string]Permission {
	if node.IsZero() {
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if node.Decode(&s) == nil {
			switch s {
			case "read-all":
				return map[string]Permission{"all": PermissionRead}
			case "write-all":
				return map[string]Permission{"all": PermissionWrite}
			case "none":
				return map[string]Permission{"all": PermissionNone}
			}
		}
	case yaml.MappingNode:
		var raw map[string]string
		if node.Decode(&raw) != nil {
			return nil
		}
		out := map[string]Permission{}
		for k, v := range raw {
			name, ok := permissionKeyAliases[k]
			if !ok {
				name = k
			}
			switch v {
			case "read":
				out[name] = PermissionRead
			case "write":
				out[name] = PermissionWrite
			case "none":
				out[name] = PermissionNone
			}
		}
		return out
	}
	return nil
}

// parseConcurrency normalizes a bare string (group, cancelInProgress=false)
// or a mapping supporting `cancel-in-progress` (§4.7).
func parseConcurrency(node yaml.Node) *Concurrency {
	if node.IsZero() {
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if node.Decode(&s) == nil {
			return &Concurrency{Group: s}
		}
	case yaml.MappingNode:
		var m struct {
			Group            string `yaml:"group"`
			CancelInProgress bool   `yaml:"cancel-in-progress"`
		}
		if node.Decode(&m) == nil {
			return &Concurrency{Group: m.Group, CancelInProgress: m.CancelInProgress}
		}
	}
	return nil
}
