// Package gha implements the GitHub Actions workflow expression parser,
// workflow parser, tool detector, and output-flow detector.
package gha

import "github.com/iacgraph/iacgraph/internal/diagnostic"

// TriggerType is the closed set of recognized `on:` trigger kinds (§3.4).
// Triggers outside this set still parse, routed to TriggerGeneric.
type TriggerType string

const (
	TriggerPush               TriggerType = "push"
	TriggerPullRequest        TriggerType = "pull_request"
	TriggerWorkflowDispatch   TriggerType = "workflow_dispatch"
	TriggerSchedule           TriggerType = "schedule"
	TriggerWorkflowCall       TriggerType = "workflow_call"
	TriggerWorkflowRun        TriggerType = "workflow_run"
	TriggerRepositoryDispatch TriggerType = "repository_dispatch"
	TriggerRelease            TriggerType = "release"
	TriggerIssues             TriggerType = "issues"
	TriggerIssueComment       TriggerType = "issue_comment"
	TriggerGeneric            TriggerType = "generic"
)

// Trigger is a tagged union over the recognized workflow triggers (§3.4).
type Trigger struct {
	Type TriggerType
	Name string // the raw `on:` key, even for recognized types

	// push / pull_request
	Branches       []string
	BranchesIgnore []string
	Tags           []string
	TagsIgnore     []string
	Paths          []string
	PathsIgnore    []string
	Types          []string // pull_request / issues / issue_comment / release "types"

	// schedule
	Cron []string

	// workflow_call / workflow_dispatch
	Inputs map[string]WorkflowInput

	// workflow_run
	Workflows []string

	// repository_dispatch
	EventTypes []string
}

// WorkflowInput describes one `inputs:` entry under workflow_dispatch or
// workflow_call.
type WorkflowInput struct {
	Description string
	Required    bool
	Default     string
	Type        string
}

// Permission is one of the three retained permission values (§4.7).
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionNone  Permission = "none"
)

// Concurrency models the `concurrency:` key, normalized from either a bare
// string or a mapping (§4.7).
type Concurrency struct {
	Group            string
	CancelInProgress bool
}

// Strategy models a job's `strategy:` key (§4.7): matrix dimensions are
// separated from the reserved `include`/`exclude` keys.
type Strategy struct {
	Matrix       map[string][]string
	Include      []map[string]string
	Exclude      []map[string]string
	FailFast     bool
	HasFailFast  bool
	MaxParallel  int
	HasMaxParallel bool
}

// StepKind discriminates the Step tagged union (§3.4).
type StepKind int

const (
	StepRun StepKind = iota
	StepUses
)

// Step is a single job step, tagged Run or Uses (§3.4).
type Step struct {
	Kind             StepKind
	ID               string
	Name             string
	If               string
	Env              map[string]string
	ContinueOnError  bool
	TimeoutMinutes   int
	HasTimeout       bool
	WorkingDirectory string
	Location         diagnostic.Location

	// Run
	Run   string
	Shell string

	// Uses
	Uses string
	With map[string]string
}

// Job is a single `jobs:` entry (§3.4).
type Job struct {
	ID          string
	Name        string
	RunsOn      []string
	Needs       []string
	Outputs     map[string]string
	Steps       []Step
	Env         map[string]string
	If          string
	Strategy    *Strategy
	Container   string
	Services    map[string]string
	Environment string
	Permissions map[string]Permission
	Concurrency *Concurrency
	Defaults    map[string]string
}

// Workflow is the top-level parsed GHA workflow document (§3.4).
type Workflow struct {
	Name        string
	FilePath    string
	Triggers    []Trigger
	Env         map[string]string
	Jobs        map[string]*Job
	JobOrder    []string
	Defaults    map[string]string
	Permissions map[string]Permission
	Concurrency *Concurrency
}
