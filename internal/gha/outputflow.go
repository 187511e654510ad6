package gha

import "strings"

// OutputFlowPattern is the closed set of intra-workflow flow patterns
// detected by the output-flow detector (§4.9).
type OutputFlowPattern string

const (
	FlowJobOutput        OutputFlowPattern = "job_output"
	FlowStepOutput        OutputFlowPattern = "step_output"
	FlowEnvPropagation    OutputFlowPattern = "env_propagation"
	FlowTerraformToHelm   OutputFlowPattern = "terraform_to_helm"
)

// OutputFlow is one detected data-propagation edge inside a single
// workflow (§4.9).
type OutputFlow struct {
	ID          string
	Pattern     OutputFlowPattern
	SourceJobID string
	TargetJobID string
	OutputName  string
	Confidence  float64
}

const minOutputFlowConfidence = 0.5

// DetectOutputFlows scans a parsed workflow's job steps, env, and outputs
// for the four intra-workflow flow patterns, deduplicating by id and
// keeping the highest-confidence variant per duplicate (§4.9).
func DetectOutputFlows(wf *Workflow, detected DetectionResult) []OutputFlow {
	byID := map[string]OutputFlow{}

	helmJobs := map[string]bool{}
	for _, h := range detected.Helm {
		helmJobs[h.JobID] = true
	}
	terraformJobs := map[string]bool{}
	for _, t := range detected.Terraform {
		terraformJobs[t.JobID] = true
	}

	for _, jobID := range wf.JobOrder {
		job := wf.Jobs[jobID]

		buffer := stepSearchBuffer(job)
		for _, ref := range extractNeedsOutputs(buffer) {
			flow := OutputFlow{
				ID: "job_output:" + ref.job + ":" + jobID + ":" + ref.output,
				Pattern: FlowJobOutput, SourceJobID: ref.job, TargetJobID: jobID,
				OutputName: ref.output, Confidence: 0.95,
			}
			addFlow(byID, flow)

			if helmJobs[jobID] && terraformJobs[ref.job] && containsString(job.Needs, ref.job) {
				addFlow(byID, OutputFlow{
					ID:          "terraform_to_helm:" + ref.job + ":" + jobID + ":" + ref.output,
					Pattern:     FlowTerraformToHelm,
					SourceJobID: ref.job, TargetJobID: jobID, OutputName: ref.output,
					Confidence: 0.85,
				})
			}
		}

		for _, ref := range extractStepsOutputs(buffer) {
			addFlow(byID, OutputFlow{
				ID: "step_output:" + jobID + ":" + ref.output, Pattern: FlowStepOutput,
				SourceJobID: jobID, TargetJobID: jobID, OutputName: ref.output, Confidence: 0.95,
			})
		}

		envBuffer := envSearchBuffer(job)
		for _, ref := range extractNeedsOutputs(envBuffer) {
			addFlow(byID, OutputFlow{
				ID: "env_propagation:" + ref.job + ":" + jobID + ":" + ref.output, Pattern: FlowEnvPropagation,
				SourceJobID: ref.job, TargetJobID: jobID, OutputName: ref.output, Confidence: 0.9,
			})
		}
		for _, ref := range extractStepsOutputs(envBuffer) {
			addFlow(byID, OutputFlow{
				ID: "step_output:" + jobID + ":" + ref.output, Pattern: FlowStepOutput,
				SourceJobID: jobID, TargetJobID: jobID, OutputName: ref.output, Confidence: 0.95,
			})
		}
	}

	var out []OutputFlow
	for _, f := range byID {
		if f.Confidence >= minOutputFlowConfidence {
			out = append(out, f)
		}
	}
	return out
}

func addFlow(byID map[string]OutputFlow, f OutputFlow) {
	existing, ok := byID[f.ID]
	if !ok || f.Confidence > existing.Confidence {
		byID[f.ID] = f
	}
}

// stepSearchBuffer concatenates every step's run/uses/with/env/if text into
// one searchable buffer, per §4.9's scan-site rule.
func stepSearchBuffer(job *Job) string {
	var sb strings.Builder
	for _, step := range job.Steps {
		sb.WriteString(step.Run)
		sb.WriteString("\n")
		sb.WriteString(step.Uses)
		sb.WriteString("\n")
		for _, v := range step.With {
			sb.WriteString(v)
			sb.WriteString("\n")
		}
		for _, v := range step.Env {
			sb.WriteString(v)
			sb.WriteString("\n")
		}
		sb.WriteString(step.If)
		sb.WriteString("\n")
	}
	return sb.String()
}

// envSearchBuffer scans job-level env and outputs values separately, so
// step-output-to-job-output edges are discoverable (§4.9).
func envSearchBuffer(job *Job) string {
	var sb strings.Builder
	for _, v := range job.Env {
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	for _, v := range job.Outputs {
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	return sb.String()
}

type outputRef struct {
	job    string
	output string
}

// extractNeedsOutputs finds every `needs.X.outputs.Y` expression reference
// in buffer.
func extractNeedsOutputs(buffer string) []outputRef {
	var refs []outputRef
	for _, expr := range ExtractExpressions([]byte(buffer)) {
		for _, ref := range expr.ContextReferences {
			if ref.Context != "needs" || len(ref.Path) < 3 {
				continue
			}
			if ref.Path[1] != "outputs" {
				continue
			}
			refs = append(refs, outputRef{job: ref.Path[0], output: ref.Path[2]})
		}
	}
	return refs
}

// extractStepsOutputs finds every `steps.X.outputs.Y` expression reference
// in buffer.
func extractStepsOutputs(buffer string) []outputRef {
	var refs []outputRef
	for _, expr := range ExtractExpressions([]byte(buffer)) {
		for _, ref := range expr.ContextReferences {
			if ref.Context != "steps" || len(ref.Path) < 3 {
				continue
			}
			if ref.Path[1] != "outputs" {
				continue
			}
			refs = append(refs, outputRef{job: ref.Path[0], output: ref.Path[2]})
		}
	}
	return refs
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
