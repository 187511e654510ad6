package gha

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildFlowWorkflow() *Workflow {
	return &Workflow{
		JobOrder: []string{"build", "deploy"},
		Jobs: map[string]*Job{
			"build": {
				ID: "build",
				Steps: []Step{
					{ID: "tag", Run: `echo "value=v1" >> $GITHUB_OUTPUT`},
				},
				Outputs: map[string]string{"image_tag": "${{ steps.tag.outputs.value }}"},
			},
			"deploy": {
				ID:    "deploy",
				Needs: []string{"build"},
				Steps: []Step{
					{Run: "helm upgrade myapp ./chart --set image.tag=${{ needs.build.outputs.image_tag }}"},
				},
			},
		},
	}
}

func TestDetectOutputFlows_JobOutputPattern(t *testing.T) {
	wf := buildFlowWorkflow()
	flows := DetectOutputFlows(wf, DetectionResult{})

	var found bool
	for _, f := range flows {
		if f.Pattern == FlowJobOutput && f.SourceJobID == "build" && f.TargetJobID == "deploy" && f.OutputName == "image_tag" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDetectOutputFlows_StepOutputPattern(t *testing.T) {
	wf := buildFlowWorkflow()
	flows := DetectOutputFlows(wf, DetectionResult{})

	var found bool
	for _, f := range flows {
		if f.Pattern == FlowStepOutput && f.SourceJobID == "build" && f.OutputName == "value" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDetectOutputFlows_TerraformToHelmPatternRequiresBothDetections(t *testing.T) {
	wf := buildFlowWorkflow()
	detected := DetectionResult{
		Terraform: []TerraformStepInfo{{JobID: "build"}},
		Helm:      []HelmStepInfo{{JobID: "deploy"}},
	}
	flows := DetectOutputFlows(wf, detected)

	var found bool
	for _, f := range flows {
		if f.Pattern == FlowTerraformToHelm && f.SourceJobID == "build" && f.TargetJobID == "deploy" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDetectOutputFlows_TerraformToHelmAbsentWithoutBothDetections(t *testing.T) {
	wf := buildFlowWorkflow()
	flows := DetectOutputFlows(wf, DetectionResult{})

	for _, f := range flows {
		require.NotEqual(t, FlowTerraformToHelm, f.Pattern)
	}
}

func TestDetectOutputFlows_EnvPropagationPattern(t *testing.T) {
	wf := &Workflow{
		JobOrder: []string{"build", "deploy"},
		Jobs: map[string]*Job{
			"build": {ID: "build", Outputs: map[string]string{"tag": "v1"}},
			"deploy": {
				ID:    "deploy",
				Needs: []string{"build"},
				Env:   map[string]string{"IMAGE_TAG": "${{ needs.build.outputs.tag }}"},
			},
		},
	}
	flows := DetectOutputFlows(wf, DetectionResult{})

	var found bool
	for _, f := range flows {
		if f.Pattern == FlowEnvPropagation && f.SourceJobID == "build" && f.OutputName == "tag" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDetectOutputFlows_DedupKeepsHighestConfidence(t *testing.T) {
	byID := map[string]OutputFlow{}
	addFlow(byID, OutputFlow{ID: "job_output:build:deploy:tag", Confidence: 0.5})
	addFlow(byID, OutputFlow{ID: "job_output:build:deploy:tag", Confidence: 0.95})
	addFlow(byID, OutputFlow{ID: "job_output:build:deploy:tag", Confidence: 0.7})
	require.Len(t, byID, 1)
	require.Equal(t, 0.95, byID["job_output:build:deploy:tag"].Confidence)
}

func TestDetectOutputFlows_NoJobsReturnsEmpty(t *testing.T) {
	wf := &Workflow{}
	flows := DetectOutputFlows(wf, DetectionResult{})
	require.Empty(t, flows)
}
