package xref

import (
	"testing"

	"github.com/iacgraph/iacgraph/internal/gha"
	"github.com/iacgraph/iacgraph/pkg/options"
	"github.com/stretchr/testify/require"
)

func buildWorkflow(jobs map[string]*gha.Job, order []string) *gha.Workflow {
	return &gha.Workflow{Jobs: jobs, JobOrder: order}
}

func TestEngine_DirectOutputPattern(t *testing.T) {
	wf := buildWorkflow(map[string]*gha.Job{
		"infra": {ID: "infra", Steps: []gha.Step{{Run: "terraform output db_host"}}},
		"deploy": {
			ID: "deploy", Needs: []string{"infra"},
			Steps: []gha.Step{{Run: "helm upgrade app ./chart --set db.host=${{ needs.infra.outputs.db_host }}"}},
		},
	}, []string{"infra", "deploy"})

	detected := gha.DetectionResult{
		Terraform: []gha.TerraformStepInfo{{JobID: "infra", StepIndex: 0}},
		Helm:      []gha.HelmStepInfo{{JobID: "deploy", StepIndex: 0}},
	}

	flows := NewEngine(options.Default()).Run(wf, detected)
	require.Len(t, flows, 1)
	require.Equal(t, PatternDirectOutput, flows[0].Pattern)
	require.Equal(t, "infra", flows[0].Source.JobID)
	require.Equal(t, "deploy", flows[0].Target.JobID)
	require.Equal(t, "db_host", flows[0].Source.OutputName)
	require.Equal(t, LevelHigh, flows[0].ConfidenceLevel)
}

func TestEngine_OutputToEnvPattern(t *testing.T) {
	wf := buildWorkflow(map[string]*gha.Job{
		"infra": {ID: "infra", Steps: []gha.Step{{Run: `echo "DB_HOST=$(terraform output db_host)" >> $GITHUB_ENV`}}},
		"deploy": {
			ID: "deploy", Needs: []string{"infra"},
			Steps: []gha.Step{{Run: "helm upgrade app ./chart --set db.host=${{ env.DB_HOST }}"}},
		},
	}, []string{"infra", "deploy"})

	detected := gha.DetectionResult{
		Terraform: []gha.TerraformStepInfo{{JobID: "infra", StepIndex: 0}},
		Helm:      []gha.HelmStepInfo{{JobID: "deploy", StepIndex: 0}},
	}

	flows := NewEngine(options.Default()).Run(wf, detected)
	var found bool
	for _, f := range flows {
		if f.Pattern == PatternOutputToEnv && f.Source.OutputName == "DB_HOST" {
			found = true
		}
	}
	require.True(t, found)
}

func TestEngine_JobChainPattern(t *testing.T) {
	wf := buildWorkflow(map[string]*gha.Job{
		"infra": {ID: "infra", Steps: []gha.Step{{Run: "terraform output region"}}},
		"deploy": {
			ID: "deploy", Needs: []string{"infra"},
			Steps: []gha.Step{{Run: "helm upgrade app ./chart --set aws.region=us-east-1 # configured for region"}},
		},
	}, []string{"infra", "deploy"})

	detected := gha.DetectionResult{
		Terraform: []gha.TerraformStepInfo{{JobID: "infra", StepIndex: 0}},
		Helm:      []gha.HelmStepInfo{{JobID: "deploy", StepIndex: 0}},
	}

	flows := NewEngine(options.Default()).Run(wf, detected)
	var found bool
	for _, f := range flows {
		if f.Pattern == PatternJobChain && f.Source.OutputName == "region" {
			found = true
		}
	}
	require.True(t, found)
}

func TestEngine_ArtifactTransferPattern(t *testing.T) {
	wf := buildWorkflow(map[string]*gha.Job{
		"infra": {
			ID: "infra",
			Steps: []gha.Step{
				{Kind: gha.StepUses, Uses: "actions/upload-artifact@v4", With: map[string]string{"name": "plan-output"}},
			},
		},
		"deploy": {
			ID: "deploy", Needs: []string{"infra"},
			Steps: []gha.Step{
				{Kind: gha.StepUses, Uses: "actions/download-artifact@v4", With: map[string]string{"name": "plan-output"}},
			},
		},
	}, []string{"infra", "deploy"})

	detected := gha.DetectionResult{
		Terraform: []gha.TerraformStepInfo{{JobID: "infra", StepIndex: 0}},
		Helm:      []gha.HelmStepInfo{{JobID: "deploy", StepIndex: 0}},
	}

	flows := NewEngine(options.Default()).Run(wf, detected)
	var found bool
	for _, f := range flows {
		if f.Pattern == PatternArtifactTransfer && f.Source.OutputName == "plan-output" {
			found = true
		}
	}
	require.True(t, found)
}

func TestEngine_MinConfidenceFiltersLowScoringFlows(t *testing.T) {
	wf := buildWorkflow(map[string]*gha.Job{
		"infra": {ID: "infra", Steps: []gha.Step{{Run: "terraform output region"}}},
		"deploy": {
			ID: "deploy", Needs: []string{"infra"},
			Steps: []gha.Step{{Run: "helm upgrade app ./chart --set aws.region=us-east-1 # region"}},
		},
	}, []string{"infra", "deploy"})

	detected := gha.DetectionResult{
		Terraform: []gha.TerraformStepInfo{{JobID: "infra", StepIndex: 0}},
		Helm:      []gha.HelmStepInfo{{JobID: "deploy", StepIndex: 0}},
	}

	opts := options.Default()
	opts.MinConfidence = 101
	flows := NewEngine(opts).Run(wf, detected)
	require.Empty(t, flows)
}

func TestEngine_MaxFlowsTruncatesResults(t *testing.T) {
	wf := buildWorkflow(map[string]*gha.Job{
		"infra": {ID: "infra", Steps: []gha.Step{{Run: "terraform output a"}, {Run: "terraform output b"}}},
		"deploy": {
			ID: "deploy", Needs: []string{"infra"},
			Steps: []gha.Step{{Run: "helm upgrade app ./chart --set a=${{ needs.infra.outputs.a }} --set b=${{ needs.infra.outputs.b }}"}},
		},
	}, []string{"infra", "deploy"})

	detected := gha.DetectionResult{
		Terraform: []gha.TerraformStepInfo{{JobID: "infra", StepIndex: 0}, {JobID: "infra", StepIndex: 1}},
		Helm:      []gha.HelmStepInfo{{JobID: "deploy", StepIndex: 0}},
	}

	opts := options.Default()
	opts.MaxFlows = 1
	flows := NewEngine(opts).Run(wf, detected)
	require.Len(t, flows, 1)
}

func TestEngine_InferredPatternGatedByOption(t *testing.T) {
	wf := buildWorkflow(map[string]*gha.Job{
		"infra": {ID: "infra", Steps: []gha.Step{{Run: "terraform output image_tag"}}},
		"deploy": {
			ID: "deploy", Needs: []string{"infra"},
			Steps: []gha.Step{{Run: "helm upgrade app ./chart --set image.tag=v1"}},
		},
	}, []string{"infra", "deploy"})

	detected := gha.DetectionResult{
		Terraform: []gha.TerraformStepInfo{{JobID: "infra", StepIndex: 0}},
		Helm:      []gha.HelmStepInfo{{JobID: "deploy", StepIndex: 0}},
	}

	withoutInferred := NewEngine(options.Default()).Run(wf, detected)
	for _, f := range withoutInferred {
		require.NotEqual(t, PatternInferred, f.Pattern)
	}

	opts := options.Default()
	opts.IncludeInferred = true
	withInferred := NewEngine(opts).Run(wf, detected)
	var found bool
	for _, f := range withInferred {
		if f.Pattern == PatternInferred {
			found = true
		}
	}
	require.True(t, found)
}

func TestScore_ExplicitBonusAndWeaknessPenalty(t *testing.T) {
	explicit := score(70, []Evidence{{Type: EvidenceExplicitReference}})
	require.Equal(t, 70+10+5, explicit)

	weakOnly := score(70, []Evidence{{Type: EvidenceStepProximity}})
	require.Equal(t, 70+4-10, weakOnly)

	none := score(70, nil)
	require.Equal(t, 70, none)
}

func TestScore_ClampsToHundred(t *testing.T) {
	require.Equal(t, 100, score(95, []Evidence{{Type: EvidenceExplicitReference}, {Type: EvidenceJobDependency}}))
}

func TestConfidenceLevelFor_Thresholds(t *testing.T) {
	require.Equal(t, LevelHigh, ConfidenceLevelFor(80))
	require.Equal(t, LevelMedium, ConfidenceLevelFor(50))
	require.Equal(t, LevelLow, ConfidenceLevelFor(49))
}
