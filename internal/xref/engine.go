package xref

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/iacgraph/iacgraph/internal/gha"
	"github.com/iacgraph/iacgraph/pkg/options"
)

var (
	reTFOutputCmd  = regexp.MustCompile(`terraform\s+output\s+(?:-raw\s+|-json\s+)?([A-Za-z0-9_-]+)`)
	reTFOutputJSON = regexp.MustCompile(`terraform\s+output\s+-json\s*>\s*(\S+)`)
	reSetExpr      = regexp.MustCompile(`--set(?:-string)?\s+([A-Za-z0-9_.\-]+)=\$\{\{\s*needs\.([A-Za-z0-9_-]+)\.outputs\.([A-Za-z0-9_-]+)\s*\}\}`)
	reEnvAppend    = regexp.MustCompile(`echo\s+"([A-Za-z0-9_]+)=\$\(terraform output[^)]*\)"\s*>>\s*\$GITHUB_ENV`)
	reEnvInHelm    = regexp.MustCompile(`\$\{\{\s*env\.([A-Za-z0-9_]+)\s*\}\}|\$([A-Za-z0-9_]+)\b`)
	reSetFileFlag  = regexp.MustCompile(`--set-file\s+([A-Za-z0-9_.\-]+)=(\S+)`)
	reValuesFlag   = regexp.MustCompile(`(?:-f|--values)\s+(\S+)`)
	reUploadArtifact   = regexp.MustCompile(`(?i)actions/upload-artifact`)
	reDownloadArtifact = regexp.MustCompile(`(?i)actions/download-artifact`)
	reMatrixRef    = regexp.MustCompile(`matrix\.[A-Za-z0-9_.\-]+`)
)

// Engine runs the pattern-specific detectors and emits scored flows
// (§4.11). Each detector accumulates evidence independently; the engine
// deduplicates by (sourceJob, targetJob, outputName) and keeps the
// maximum-scoring variant, then bounds the result by opts.MaxFlows after
// filtering by opts.MinConfidence.
type Engine struct {
	opts options.Options
}

// NewEngine builds an Engine configured by opts.
func NewEngine(opts options.Options) *Engine {
	return &Engine{opts: opts}
}

type flowKey struct {
	sourceJob  string
	targetJob  string
	outputName string
}

// Run correlates wf's detected Terraform and Helm steps into cross-domain
// flows.
func (e *Engine) Run(wf *gha.Workflow, detected gha.DetectionResult) []Flow {
	tfJobs := groupTerraformByJob(detected.Terraform)
	helmJobs := groupHelmByJob(detected.Helm)

	best := map[flowKey]Flow{}

	e.detectDirectOutput(wf, tfJobs, helmJobs, best)
	e.detectOutputToEnv(wf, tfJobs, helmJobs, best)
	e.detectOutputToFile(wf, tfJobs, helmJobs, best)
	e.detectOutputToSecret(wf, tfJobs, helmJobs, best)
	e.detectJobChain(wf, tfJobs, helmJobs, best)
	e.detectArtifactTransfer(wf, tfJobs, helmJobs, best)
	e.detectMatrixPropagation(wf, tfJobs, helmJobs, best)
	if e.opts.IncludeInferred {
		e.detectInferred(wf, tfJobs, helmJobs, best)
	}

	flows := make([]Flow, 0, len(best))
	for _, f := range best {
		if f.Confidence >= e.opts.MinConfidence {
			flows = append(flows, f)
		}
	}
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].Confidence != flows[j].Confidence {
			return flows[i].Confidence > flows[j].Confidence
		}
		return flows[i].ID < flows[j].ID
	})

	maxFlows := e.opts.MaxFlows
	if maxFlows > 0 && len(flows) > maxFlows {
		flows = flows[:maxFlows]
	}
	return flows
}

func groupTerraformByJob(steps []gha.TerraformStepInfo) map[string][]gha.TerraformStepInfo {
	out := map[string][]gha.TerraformStepInfo{}
	for _, s := range steps {
		out[s.JobID] = append(out[s.JobID], s)
	}
	return out
}

func groupHelmByJob(steps []gha.HelmStepInfo) map[string][]gha.HelmStepInfo {
	out := map[string][]gha.HelmStepInfo{}
	for _, s := range steps {
		out[s.JobID] = append(out[s.JobID], s)
	}
	return out
}

// score combines a pattern's base with weighted evidence per §4.11's
// formula: clamp(base + evidenceScore + explicitBonus - weaknessPenalty, 0, 100)
// where evidenceScore = sum(w_i * 10) capped at 20, explicitBonus = +5 if
// any evidence is explicit_reference, weaknessPenalty = 10 if every
// evidence has weight < 0.5.
func score(base int, evidence []Evidence) int {
	var evidenceScore float64
	hasExplicit := false
	allWeak := true
	for _, ev := range evidence {
		w := evidenceWeights[ev.Type]
		evidenceScore += w * 10
		if ev.Type == EvidenceExplicitReference {
			hasExplicit = true
		}
		if w >= 0.5 {
			allWeak = false
		}
	}
	if evidenceScore > 20 {
		evidenceScore = 20
	}
	total := float64(base) + evidenceScore
	if hasExplicit {
		total += 5
	}
	if allWeak && len(evidence) > 0 {
		total -= 10
	}
	return clampScore(int(total), 0, 100)
}

func clampScore(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func addBest(best map[flowKey]Flow, key flowKey, f Flow) {
	existing, ok := best[key]
	if !ok || f.Confidence > existing.Confidence {
		best[key] = f
	}
}

func flowID(pattern Pattern, sourceJob, targetJob, output string) string {
	return fmt.Sprintf("%s:%s:%s:%s", pattern, sourceJob, targetJob, output)
}

// detectDirectOutput implements the direct_output pattern (base 90):
// a `terraform output NAME` run step plus a downstream `--set
// PATH=${{ needs.TF_JOB.outputs.NAME }}` Helm site.
func (e *Engine) detectDirectOutput(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo, helmJobs map[string][]gha.HelmStepInfo, best map[flowKey]Flow) {
	tfOutputNames := collectTFOutputNames(wf, tfJobs)

	for targetJobID, steps := range helmJobs {
		job := wf.Jobs[targetJobID]
		for _, hStep := range steps {
			run := job.Steps[hStep.StepIndex].Run
			for _, m := range reSetExpr.FindAllStringSubmatch(run, -1) {
				setPath, sourceJobID, outputName := m[1], m[2], m[3]
				if !tfOutputNames[sourceJobID][outputName] {
					continue
				}
				if !containsString(job.Needs, sourceJobID) {
					continue
				}
				evidence := []Evidence{
					{Type: EvidenceExplicitReference, Detail: "needs." + sourceJobID + ".outputs." + outputName},
					{Type: EvidenceJobDependency, Detail: sourceJobID},
				}
				f := Flow{
					ID:     flowID(PatternDirectOutput, sourceJobID, targetJobID, outputName),
					Source: TfOutputInfo{JobID: sourceJobID, OutputName: outputName},
					Target: HelmValueSource{JobID: targetJobID, StepIndex: hStep.StepIndex, Site: "--set", Path: setPath},
					Pattern: PatternDirectOutput, Evidence: evidence,
				}
				f.Confidence = score(90, evidence)
				f.ConfidenceLevel = ConfidenceLevelFor(f.Confidence)
				addBest(best, flowKey{sourceJobID, targetJobID, outputName}, f)
			}
		}
	}
}

// collectTFOutputNames maps jobID -> set of output names exposed via
// `terraform output NAME` in any of that job's run steps.
func collectTFOutputNames(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	for jobID, steps := range tfJobs {
		job := wf.Jobs[jobID]
		names := map[string]bool{}
		for _, s := range steps {
			run := job.Steps[s.StepIndex].Run
			for _, m := range reTFOutputCmd.FindAllStringSubmatch(run, -1) {
				names[m[1]] = true
			}
		}
		out[jobID] = names
	}
	return out
}

// detectOutputToEnv implements output_to_env (base 80): a TF output
// appended to $GITHUB_ENV in the same job, consumed by a Helm step's env
// or `--set` as `${{ env.KEY }}` or `$KEY`.
func (e *Engine) detectOutputToEnv(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo, helmJobs map[string][]gha.HelmStepInfo, best map[flowKey]Flow) {
	for tfJobID, steps := range tfJobs {
		job := wf.Jobs[tfJobID]
		var envKeys []string
		for _, s := range steps {
			run := job.Steps[s.StepIndex].Run
			for _, m := range reEnvAppend.FindAllStringSubmatch(run, -1) {
				envKeys = append(envKeys, m[1])
			}
		}
		if len(envKeys) == 0 {
			continue
		}

		for targetJobID, hSteps := range helmJobs {
			if !containsString(wf.Jobs[targetJobID].Needs, tfJobID) {
				continue
			}
			for _, hStep := range hSteps {
				run := wf.Jobs[targetJobID].Steps[hStep.StepIndex].Run
				for _, key := range envKeys {
					if !strings.Contains(run, "env."+key) && !strings.Contains(run, "$"+key) {
						continue
					}
					evidence := []Evidence{{Type: EvidenceEnvVariable, Detail: key}}
					f := Flow{
						ID:      flowID(PatternOutputToEnv, tfJobID, targetJobID, key),
						Source:  TfOutputInfo{JobID: tfJobID, OutputName: key},
						Target:  HelmValueSource{JobID: targetJobID, StepIndex: hStep.StepIndex, Site: "env", Path: key},
						Pattern: PatternOutputToEnv, Evidence: evidence,
					}
					f.Confidence = score(80, evidence)
					f.ConfidenceLevel = ConfidenceLevelFor(f.Confidence)
					addBest(best, flowKey{tfJobID, targetJobID, key}, f)
				}
			}
		}
	}
}

// detectOutputToFile implements output_to_file (base 75): `terraform
// output -json > PATH` followed by a Helm invocation with `-f PATH` or
// `--set-file KEY=PATH`.
func (e *Engine) detectOutputToFile(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo, helmJobs map[string][]gha.HelmStepInfo, best map[flowKey]Flow) {
	for tfJobID, steps := range tfJobs {
		job := wf.Jobs[tfJobID]
		var paths []string
		for _, s := range steps {
			run := job.Steps[s.StepIndex].Run
			for _, m := range reTFOutputJSON.FindAllStringSubmatch(run, -1) {
				paths = append(paths, m[1])
			}
		}
		if len(paths) == 0 {
			continue
		}

		for targetJobID, hSteps := range helmJobs {
			if !containsString(wf.Jobs[targetJobID].Needs, tfJobID) {
				continue
			}
			for _, hStep := range hSteps {
				run := wf.Jobs[targetJobID].Steps[hStep.StepIndex].Run
				for _, path := range paths {
					matched := strings.Contains(run, path) &&
						(reValuesFlag.MatchString(run) || reSetFileFlag.MatchString(run))
					if !matched {
						continue
					}
					evidence := []Evidence{{Type: EvidenceFilePathMatch, Detail: path}}
					f := Flow{
						ID:      flowID(PatternOutputToFile, tfJobID, targetJobID, path),
						Source:  TfOutputInfo{JobID: tfJobID, OutputName: path},
						Target:  HelmValueSource{JobID: targetJobID, StepIndex: hStep.StepIndex, Site: "file", Path: path},
						Pattern: PatternOutputToFile, Evidence: evidence,
					}
					f.Confidence = score(75, evidence)
					f.ConfidenceLevel = ConfidenceLevelFor(f.Confidence)
					addBest(best, flowKey{tfJobID, targetJobID, path}, f)
				}
			}
		}
	}
}

// detectOutputToSecret implements output_to_secret (base 85): a TF output
// piped into a Kubernetes secret creation, consumed by a Helm values file
// or `--set-file`.
func (e *Engine) detectOutputToSecret(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo, helmJobs map[string][]gha.HelmStepInfo, best map[flowKey]Flow) {
	reSecretCreate := regexp.MustCompile(`kubectl\s+create\s+secret\s+\S+\s+(\S+)`)

	for tfJobID, steps := range tfJobs {
		job := wf.Jobs[tfJobID]
		var secretNames []string
		for _, s := range steps {
			run := job.Steps[s.StepIndex].Run
			if !reTFOutputCmd.MatchString(run) {
				continue
			}
			for _, m := range reSecretCreate.FindAllStringSubmatch(run, -1) {
				secretNames = append(secretNames, m[1])
			}
		}
		if len(secretNames) == 0 {
			continue
		}

		for targetJobID, hSteps := range helmJobs {
			if !containsString(wf.Jobs[targetJobID].Needs, tfJobID) {
				continue
			}
			for _, hStep := range hSteps {
				run := wf.Jobs[targetJobID].Steps[hStep.StepIndex].Run
				if !reValuesFlag.MatchString(run) && !reSetFileFlag.MatchString(run) {
					continue
				}
				for _, secret := range secretNames {
					if !strings.Contains(run, secret) {
						continue
					}
					evidence := []Evidence{{Type: EvidenceSemanticMatch, Detail: secret}}
					f := Flow{
						ID:      flowID(PatternOutputToSecret, tfJobID, targetJobID, secret),
						Source:  TfOutputInfo{JobID: tfJobID, OutputName: secret},
						Target:  HelmValueSource{JobID: targetJobID, StepIndex: hStep.StepIndex, Site: "secret", Path: secret},
						Pattern: PatternOutputToSecret, Evidence: evidence,
					}
					f.Confidence = score(85, evidence)
					f.ConfidenceLevel = ConfidenceLevelFor(f.Confidence)
					addBest(best, flowKey{tfJobID, targetJobID, secret}, f)
				}
			}
		}
	}
}

// detectJobChain implements job_chain (base 70): a TF-containing job in a
// Helm job's `needs` closure with no explicit expression evidence, but
// named outputs matching strings used in the Helm job's set-values or
// values file names.
func (e *Engine) detectJobChain(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo, helmJobs map[string][]gha.HelmStepInfo, best map[flowKey]Flow) {
	tfOutputNames := collectTFOutputNames(wf, tfJobs)

	for targetJobID, hSteps := range helmJobs {
		job := wf.Jobs[targetJobID]
		upstream := map[string]bool{}
		pending := append([]string(nil), job.Needs...)
		for len(pending) > 0 {
			id := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			if upstream[id] {
				continue
			}
			upstream[id] = true
			if dep := wf.Jobs[id]; dep != nil {
				pending = append(pending, dep.Needs...)
			}
		}
		for tfJobID := range tfJobs {
			if !upstream[tfJobID] {
				continue
			}
			for outputName := range tfOutputNames[tfJobID] {
				for _, hStep := range hSteps {
					run := job.Steps[hStep.StepIndex].Run
					if !strings.Contains(run, outputName) {
						continue
					}
					evidence := []Evidence{
						{Type: EvidenceJobDependency, Detail: tfJobID},
						{Type: EvidenceNamingConvention, Detail: outputName},
					}
					f := Flow{
						ID:      flowID(PatternJobChain, tfJobID, targetJobID, outputName),
						Source:  TfOutputInfo{JobID: tfJobID, OutputName: outputName},
						Target:  HelmValueSource{JobID: targetJobID, StepIndex: hStep.StepIndex, Site: "job_chain", Path: outputName},
						Pattern: PatternJobChain, Evidence: evidence,
					}
					f.Confidence = score(70, evidence)
					f.ConfidenceLevel = ConfidenceLevelFor(f.Confidence)
					addBest(best, flowKey{tfJobID, targetJobID, outputName}, f)
				}
			}
		}
	}
}

// detectArtifactTransfer implements artifact_transfer (base 65):
// upload-artifact in a TF job and download-artifact in a Helm job with
// matching names.
func (e *Engine) detectArtifactTransfer(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo, helmJobs map[string][]gha.HelmStepInfo, best map[flowKey]Flow) {
	for tfJobID := range tfJobs {
		job := wf.Jobs[tfJobID]
		var uploadNames []string
		for _, step := range job.Steps {
			if step.Kind == gha.StepUses && reUploadArtifact.MatchString(step.Uses) {
				if name := step.With["name"]; name != "" {
					uploadNames = append(uploadNames, name)
				}
			}
		}
		if len(uploadNames) == 0 {
			continue
		}

		for targetJobID := range helmJobs {
			if !containsString(wf.Jobs[targetJobID].Needs, tfJobID) {
				continue
			}
			for _, step := range wf.Jobs[targetJobID].Steps {
				if step.Kind != gha.StepUses || !reDownloadArtifact.MatchString(step.Uses) {
					continue
				}
				downloadName := step.With["name"]
				for _, up := range uploadNames {
					if up != downloadName {
						continue
					}
					evidence := []Evidence{{Type: EvidenceArtifactPath, Detail: up}}
					f := Flow{
						ID:      flowID(PatternArtifactTransfer, tfJobID, targetJobID, up),
						Source:  TfOutputInfo{JobID: tfJobID, OutputName: up},
						Target:  HelmValueSource{JobID: targetJobID, Site: "artifact", Path: up},
						Pattern: PatternArtifactTransfer, Evidence: evidence,
					}
					f.Confidence = score(65, evidence)
					f.ConfidenceLevel = ConfidenceLevelFor(f.Confidence)
					addBest(best, flowKey{tfJobID, targetJobID, up}, f)
				}
			}
		}
	}
}

// detectMatrixPropagation implements matrix_propagation (base 60): either
// job uses a matrix strategy and reference paths include `matrix.*`.
func (e *Engine) detectMatrixPropagation(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo, helmJobs map[string][]gha.HelmStepInfo, best map[flowKey]Flow) {
	for tfJobID := range tfJobs {
		tfJob := wf.Jobs[tfJobID]
		for targetJobID, hSteps := range helmJobs {
			targetJob := wf.Jobs[targetJobID]
			if !containsString(targetJob.Needs, tfJobID) {
				continue
			}
			if tfJob.Strategy == nil && targetJob.Strategy == nil {
				continue
			}
			for _, hStep := range hSteps {
				run := targetJob.Steps[hStep.StepIndex].Run
				matches := reMatrixRef.FindAllString(run, -1)
				for _, m := range matches {
					evidence := []Evidence{{Type: EvidenceExplicitReference, Detail: m}}
					f := Flow{
						ID:      flowID(PatternMatrixPropagation, tfJobID, targetJobID, m),
						Source:  TfOutputInfo{JobID: tfJobID, OutputName: m},
						Target:  HelmValueSource{JobID: targetJobID, StepIndex: hStep.StepIndex, Site: "matrix", Path: m},
						Pattern: PatternMatrixPropagation, Evidence: evidence,
					}
					f.Confidence = score(60, evidence)
					f.ConfidenceLevel = ConfidenceLevelFor(f.Confidence)
					addBest(best, flowKey{tfJobID, targetJobID, m}, f)
				}
			}
		}
	}
}

// inferredNamingMap holds a small table of known TF-output-name to
// Helm-value-path heuristics (e.g. `image_tag` -> `image.tag`).
var inferredNamingMap = map[string]string{
	"image_tag":      "image.tag",
	"image_repo":     "image.repository",
	"cluster_name":   "cluster.name",
	"ingress_host":   "ingress.host",
	"db_host":        "database.host",
	"db_endpoint":    "database.host",
	"bucket_name":    "storage.bucket",
	"vpc_id":         "network.vpcId",
}

// detectInferred implements inferred (base 40): heuristic naming match with
// no other evidence, gated by opts.IncludeInferred.
func (e *Engine) detectInferred(wf *gha.Workflow, tfJobs map[string][]gha.TerraformStepInfo, helmJobs map[string][]gha.HelmStepInfo, best map[flowKey]Flow) {
	tfOutputNames := collectTFOutputNames(wf, tfJobs)

	for tfJobID, names := range tfOutputNames {
		for targetJobID, hSteps := range helmJobs {
			if !containsString(wf.Jobs[targetJobID].Needs, tfJobID) {
				continue
			}
			for outputName := range names {
				helmPath, ok := inferredNamingMap[outputName]
				if !ok {
					continue
				}
				for _, hStep := range hSteps {
					run := wf.Jobs[targetJobID].Steps[hStep.StepIndex].Run
					if !strings.Contains(run, helmPath) {
						continue
					}
					key := flowKey{tfJobID, targetJobID, outputName}
					if _, exists := best[key]; exists {
						continue
					}
					evidence := []Evidence{{Type: EvidenceNamingConvention, Detail: outputName + "->" + helmPath}}
					f := Flow{
						ID:      flowID(PatternInferred, tfJobID, targetJobID, outputName),
						Source:  TfOutputInfo{JobID: tfJobID, OutputName: outputName},
						Target:  HelmValueSource{JobID: targetJobID, StepIndex: hStep.StepIndex, Site: "--set", Path: helmPath},
						Pattern: PatternInferred, Evidence: evidence,
					}
					f.Confidence = score(40, evidence)
					f.ConfidenceLevel = ConfidenceLevelFor(f.Confidence)
					addBest(best, key, f)
				}
			}
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
