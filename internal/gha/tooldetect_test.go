package gha

import (
	"testing"

	"github.com/iacgraph/iacgraph/pkg/options"
	"github.com/stretchr/testify/require"
)

func TestDetectToolSteps_UsesStepAllowList(t *testing.T) {
	wf := &Workflow{
		JobOrder: []string{"build"},
		Jobs: map[string]*Job{
			"build": {
				ID: "build",
				Steps: []Step{
					{Kind: StepUses, Uses: "hashicorp/setup-terraform@v3", With: map[string]string{}},
					{Kind: StepUses, Uses: "azure/setup-helm@v4", With: map[string]string{}},
					{Kind: StepUses, Uses: "actions/checkout@v4"},
				},
			},
		},
	}
	result := DetectToolSteps(wf, options.Default())
	require.Len(t, result.Terraform, 1)
	require.Len(t, result.Helm, 1)
	require.Equal(t, TFInit, result.Terraform[0].Command)
	require.Equal(t, HelmUpgrade, result.Helm[0].Command)
	require.Equal(t, 95, result.Terraform[0].Confidence)
}

func TestDetectToolSteps_RunStepRegexClassification(t *testing.T) {
	wf := &Workflow{
		JobOrder: []string{"deploy"},
		Jobs: map[string]*Job{
			"deploy": {
				ID: "deploy",
				Steps: []Step{
					{Kind: StepRun, Run: "cd infra && terraform plan -var-file=prod.tfvars -out=plan.out"},
					{Kind: StepRun, Run: "helm upgrade myapp ./chart -n prod --set image.tag=v2 --wait"},
				},
			},
		},
	}
	result := DetectToolSteps(wf, options.Default())
	require.Len(t, result.Terraform, 1)
	require.Len(t, result.Helm, 1)

	tf := result.Terraform[0]
	require.Equal(t, TFPlan, tf.Command)
	require.Equal(t, "infra", tf.WorkingDirectory)
	require.Equal(t, "prod.tfvars", tf.VarFiles[0])

	h := result.Helm[0]
	require.Equal(t, HelmUpgrade, h.Command)
	require.Equal(t, "myapp", h.ReleaseName)
	require.Equal(t, "./chart", h.Chart)
	require.Equal(t, "prod", h.Namespace)
	require.Equal(t, "v2", h.SetValues["image.tag"])
	require.True(t, h.Wait)
}

func TestDetectToolSteps_RespectsDisabledToggles(t *testing.T) {
	wf := &Workflow{
		JobOrder: []string{"build"},
		Jobs: map[string]*Job{
			"build": {
				ID: "build",
				Steps: []Step{
					{Kind: StepRun, Run: "terraform apply -auto-approve"},
				},
			},
		},
	}
	opts := options.Default()
	opts.DetectTerraform = false
	result := DetectToolSteps(wf, opts)
	require.Empty(t, result.Terraform)
}

func TestDetectToolSteps_NonExecutiveMentionLowersConfidence(t *testing.T) {
	wf := &Workflow{
		JobOrder: []string{"build"},
		Jobs: map[string]*Job{
			"build": {
				ID: "build",
				Steps: []Step{
					{Kind: StepRun, Run: "echo running terraform plan"},
				},
			},
		},
	}
	result := DetectToolSteps(wf, options.Default())
	require.Len(t, result.Terraform, 1)
	require.LessOrEqual(t, result.Terraform[0].Confidence, 80)
}

func TestDetectToolSteps_BackendConfigDetected(t *testing.T) {
	wf := &Workflow{
		JobOrder: []string{"build"},
		Jobs: map[string]*Job{
			"build": {
				ID: "build",
				Steps: []Step{
					{Kind: StepRun, Run: "terraform init -backend-config=backend.hcl"},
				},
			},
		},
	}
	result := DetectToolSteps(wf, options.Default())
	require.Len(t, result.Terraform, 1)
	require.NotNil(t, result.Terraform[0].Backend)
	require.Equal(t, "backend.hcl", result.Terraform[0].Backend.Config["config"])
}

func TestDetectToolSteps_NonMatchingStepIsIgnored(t *testing.T) {
	wf := &Workflow{
		JobOrder: []string{"build"},
		Jobs: map[string]*Job{
			"build": {
				ID: "build",
				Steps: []Step{
					{Kind: StepRun, Run: "go test ./..."},
				},
			},
		},
	}
	result := DetectToolSteps(wf, options.Default())
	require.Empty(t, result.Terraform)
	require.Empty(t, result.Helm)
}
