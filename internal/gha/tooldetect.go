package gha

import (
	"regexp"
	"strings"

	"github.com/iacgraph/iacgraph/pkg/options"
)

// ToolFamily is the closed set of tool families the detector recognizes.
type ToolFamily string

const (
	ToolTerraform  ToolFamily = "terraform"
	ToolHelm       ToolFamily = "helm"
	ToolKubernetes ToolFamily = "kubernetes"
	ToolAWS        ToolFamily = "aws"
	ToolGCP        ToolFamily = "gcp"
	ToolAzure      ToolFamily = "azure"
	ToolDocker     ToolFamily = "docker"
)

// TerraformCommand is the closed set of Terraform subcommands (§3.6).
type TerraformCommand string

const (
	TFInit        TerraformCommand = "init"
	TFValidate    TerraformCommand = "validate"
	TFPlan        TerraformCommand = "plan"
	TFApply       TerraformCommand = "apply"
	TFDestroy     TerraformCommand = "destroy"
	TFFmt         TerraformCommand = "fmt"
	TFOutput      TerraformCommand = "output"
	TFImport      TerraformCommand = "import"
	TFState       TerraformCommand = "state"
	TFWorkspace   TerraformCommand = "workspace"
	TFRefresh     TerraformCommand = "refresh"
	TFTaint       TerraformCommand = "taint"
	TFUntaint     TerraformCommand = "untaint"
	TFForceUnlock TerraformCommand = "force-unlock"
	TFUnknown     TerraformCommand = "unknown"
)

// HelmCommand is the closed set of Helm subcommands (§3.6).
type HelmCommand string

const (
	HelmInstall    HelmCommand = "install"
	HelmUpgrade    HelmCommand = "upgrade"
	HelmUninstall  HelmCommand = "uninstall"
	HelmRollback   HelmCommand = "rollback"
	HelmTemplate   HelmCommand = "template"
	HelmLint       HelmCommand = "lint"
	HelmPackage    HelmCommand = "package"
	HelmPush       HelmCommand = "push"
	HelmPull       HelmCommand = "pull"
	HelmRepo       HelmCommand = "repo"
	HelmDependency HelmCommand = "dependency"
	HelmTest       HelmCommand = "test"
	HelmUnknown    HelmCommand = "unknown"
)

// BackendInfo describes a detected Terraform backend configuration block.
type BackendInfo struct {
	Type   string
	Config map[string]string
}

// TerraformStepInfo is the detected Terraform usage of one step (§3.6).
type TerraformStepInfo struct {
	StepIndex        int
	StepID           string
	JobID            string
	Command          TerraformCommand
	WorkingDirectory string
	Workspace        string
	UsesCloud        bool
	VarFiles         []string
	Variables        map[string]string
	Arguments        []string
	EnvVars          map[string]string
	Backend          *BackendInfo
	ActionRef        string
	Confidence       int
}

// HelmStepInfo is the detected Helm usage of one step (§3.6).
type HelmStepInfo struct {
	StepIndex        int
	StepID           string
	JobID            string
	Command          HelmCommand
	WorkingDirectory string
	Chart            string
	ReleaseName      string
	Namespace        string
	ValuesFiles      []string
	SetValues        map[string]string
	DryRun           bool
	Atomic           bool
	Wait             bool
	ActionRef        string
	Confidence       int
}

// DetectionResult holds every tool detection found across a workflow.
type DetectionResult struct {
	Terraform []TerraformStepInfo
	Helm      []HelmStepInfo
}

// uses-step allow-lists (§4.8, decision 1). Matched case-insensitively
// against the `uses:` prefix before any `@ref` suffix.
var terraformActionPrefixes = []string{
	"hashicorp/setup-terraform",
}

var helmActionPrefixes = []string{
	"azure/setup-helm",
	"helm/kind-action",
}

var kubernetesActionPrefixes = []string{
	"azure/setup-kubectl",
	"azure/k8s-bake",
	"azure/k8s-deploy",
}

var awsActionPrefixes = []string{"aws-actions/"}
var gcpActionPrefixes = []string{"google-github-actions/"}
var azureActionPrefixes = []string{"azure/login"}
var dockerActionPrefixes = []string{"docker/build-push-action", "docker/login-action"}

var (
	reTerraformRun = regexp.MustCompile(`(?m)\b(?:terraform|terragrunt|tf)\s+(init|validate|plan|apply|destroy|fmt|output|import|state|workspace|refresh|taint|untaint|force-unlock)\b`)
	reHelmRun      = regexp.MustCompile(`(?m)\bhelm(?:file)?\s+(install|upgrade|uninstall|delete|rollback|template|lint|package|push|pull|repo|dependency|test)\b`)
	reChdir        = regexp.MustCompile(`-chdir=(\S+)`)
	reCdCommand    = regexp.MustCompile(`(?:^|[;&|]\s*)cd\s+(\S+)`)
	reWorkspace    = regexp.MustCompile(`terraform\s+workspace\s+(?:select|new)\s+(\S+)`)
	reTFWorkspaceEnv = regexp.MustCompile(`TF_WORKSPACE=(\S+)`)
	reVarFile      = regexp.MustCompile(`-var-file[= ](\S+)`)
	reVarKV        = regexp.MustCompile(`-var\s+(\S+?)=(\S+)`)
	reBackendCfg   = regexp.MustCompile(`-backend-config[= ](\S+)`)
	reTFCloud      = regexp.MustCompile(`TF_CLOUD_|TFE_|app\.terraform\.io|terraform login`)
	reHelmInstall  = regexp.MustCompile(`helm\s+(?:install|upgrade)\s+(\S+)\s+(\S+)`)
	reHelmNamespace = regexp.MustCompile(`(?:-n|--namespace)\s+(\S+)`)
	reHelmValues   = regexp.MustCompile(`(?:-f|--values)\s+(\S+)`)
	reHelmSet      = regexp.MustCompile(`--set(?:-string)?\s+(\S+?)=(\S+)`)
	reNonExecutive = regexp.MustCompile(`\b(echo|grep|which)\b`)
)

var tfActionCommandBySubstr = []struct {
	substr  string
	command TerraformCommand
}{
	{"setup-terraform", TFInit},
}

var helmActionCommandBySubstr = []struct {
	substr  string
	command HelmCommand
}{
	{"setup-helm", HelmUpgrade},
}

// DetectToolSteps scans every step of every job and populates a
// DetectionResult, honoring opts' per-family toggles.
func DetectToolSteps(wf *Workflow, opts options.Options) DetectionResult {
	var result DetectionResult

	for _, jobID := range wf.JobOrder {
		job := wf.Jobs[jobID]
		for idx, step := range job.Steps {
			family, _ := classifyStepFamily(step, opts)
			switch family {
			case ToolTerraform:
				if opts.DetectTerraform {
					result.Terraform = append(result.Terraform, detectTerraformStep(step, idx, jobID))
				}
			case ToolHelm:
				if opts.DetectHelm {
					result.Helm = append(result.Helm, detectHelmStep(step, idx, jobID))
				}
			}
		}
	}
	return result
}

// classifyStepFamily applies decision order 1 (uses-step allow-list) then 2
// (run-step regex match); a step matches at most one tool family (§4.8).
func classifyStepFamily(step Step, opts options.Options) (ToolFamily, bool) {
	if step.Kind == StepUses {
		usesLower := strings.ToLower(step.Uses)
		switch {
		case matchesAnyPrefix(usesLower, terraformActionPrefixes):
			return ToolTerraform, true
		case matchesAnyPrefix(usesLower, helmActionPrefixes):
			return ToolHelm, true
		case opts.DetectKubernetes && matchesAnyPrefix(usesLower, kubernetesActionPrefixes):
			return ToolKubernetes, true
		case opts.DetectCloudProviders && matchesAnyPrefix(usesLower, awsActionPrefixes):
			return ToolAWS, true
		case opts.DetectCloudProviders && matchesAnyPrefix(usesLower, gcpActionPrefixes):
			return ToolGCP, true
		case opts.DetectCloudProviders && matchesAnyPrefix(usesLower, azureActionPrefixes):
			return ToolAzure, true
		case matchesAnyPrefix(usesLower, dockerActionPrefixes):
			return ToolDocker, true
		}
		return "", false
	}

	if reTerraformRun.MatchString(step.Run) {
		return ToolTerraform, true
	}
	if reHelmRun.MatchString(step.Run) {
		return ToolHelm, true
	}
	return "", false
}

func matchesAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func stripActionRef(uses string) string {
	if idx := strings.Index(uses, "@"); idx >= 0 {
		return uses[:idx]
	}
	return uses
}

func detectTerraformStep(step Step, idx int, jobID string) TerraformStepInfo {
	info := TerraformStepInfo{
		StepIndex: idx, StepID: step.ID, JobID: jobID,
		Variables: map[string]string{}, EnvVars: stringMap(step.Env),
	}

	if step.Kind == StepUses {
		info.ActionRef = step.Uses
		info.Command = commandFromActionName(stripActionRef(step.Uses), tfActionCommandBySubstr, TFUnknown)
		info.WorkingDirectory = step.With["path"]
		if step.With["workspace"] != "" {
			info.Workspace = step.With["workspace"]
		}
		info.Confidence = 95
		return info
	}

	text := step.Run
	if m := reTerraformRun.FindStringSubmatch(text); m != nil {
		info.Command = TerraformCommand(m[1])
	} else {
		info.Command = TFUnknown
	}

	if m := reChdir.FindStringSubmatch(text); m != nil {
		info.WorkingDirectory = m[1]
	} else if m := reCdCommand.FindStringSubmatch(text); m != nil {
		info.WorkingDirectory = m[1]
	}

	if m := reWorkspace.FindStringSubmatch(text); m != nil {
		info.Workspace = m[1]
	} else if m := reTFWorkspaceEnv.FindStringSubmatch(text); m != nil {
		info.Workspace = m[1]
	}

	for _, m := range reVarFile.FindAllStringSubmatch(text, -1) {
		info.VarFiles = append(info.VarFiles, m[1])
	}
	for _, m := range reVarKV.FindAllStringSubmatch(text, -1) {
		info.Variables[m[1]] = m[2]
	}
	if m := reBackendCfg.FindStringSubmatch(text); m != nil {
		info.Backend = &BackendInfo{Config: map[string]string{"config": m[1]}}
	}
	info.UsesCloud = reTFCloud.MatchString(text)

	confidence := 85
	if strings.Contains(text, "terraform ") || strings.Contains(text, "helm ") {
		confidence += 5
	}
	if strings.Contains(text, "-auto-approve") || strings.Contains(text, "-namespace") {
		confidence += 3
	}
	if reNonExecutive.MatchString(text) {
		confidence -= 10
	}
	info.Confidence = clamp(confidence, 50, 100)

	return info
}

func detectHelmStep(step Step, idx int, jobID string) HelmStepInfo {
	info := HelmStepInfo{
		StepIndex: idx, StepID: step.ID, JobID: jobID,
		SetValues: map[string]string{},
	}

	if step.Kind == StepUses {
		info.ActionRef = step.Uses
		info.Command = commandFromActionName(stripActionRef(step.Uses), helmActionCommandBySubstr, HelmUnknown)
		info.Chart = step.With["chart"]
		info.ReleaseName = step.With["release-name"]
		info.Namespace = step.With["namespace"]
		if v := step.With["values"]; v != "" {
			info.ValuesFiles = append(info.ValuesFiles, v)
		}
		info.Confidence = 95
		return info
	}

	text := step.Run
	if m := reHelmRun.FindStringSubmatch(text); m != nil {
		cmd := m[1]
		if cmd == "delete" {
			cmd = "uninstall"
		}
		info.Command = HelmCommand(cmd)
	} else {
		info.Command = HelmUnknown
	}

	if m := reChdir.FindStringSubmatch(text); m != nil {
		info.WorkingDirectory = m[1]
	} else if m := reCdCommand.FindStringSubmatch(text); m != nil {
		info.WorkingDirectory = m[1]
	}

	if m := reHelmInstall.FindStringSubmatch(text); m != nil {
		info.ReleaseName = m[1]
		info.Chart = m[2]
	}
	if m := reHelmNamespace.FindStringSubmatch(text); m != nil {
		info.Namespace = m[1]
	}
	for _, m := range reHelmValues.FindAllStringSubmatch(text, -1) {
		info.ValuesFiles = append(info.ValuesFiles, m[1])
	}
	for _, m := range reHelmSet.FindAllStringSubmatch(text, -1) {
		info.SetValues[m[1]] = m[2]
	}
	info.DryRun = strings.Contains(text, "--dry-run")
	info.Atomic = strings.Contains(text, "--atomic")
	info.Wait = strings.Contains(text, "--wait")

	confidence := 85
	if strings.Contains(text, "terraform ") || strings.Contains(text, "helm ") {
		confidence += 5
	}
	if strings.Contains(text, "-auto-approve") || strings.Contains(text, "-namespace") {
		confidence += 3
	}
	if reNonExecutive.MatchString(text) {
		confidence -= 10
	}
	info.Confidence = clamp(confidence, 50, 100)

	return info
}

func commandFromActionName[T ~string](action string, table []struct {
	substr  string
	command T
}, fallback T) T {
	lower := strings.ToLower(action)
	for _, e := range table {
		if strings.Contains(lower, e.substr) {
			return e.command
		}
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
