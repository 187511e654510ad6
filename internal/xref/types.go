// Package xref implements the Terraform-to-Helm cross-reference engine:
// pattern-specific detectors that fuse evidence across the GHA tool
// detector, output-flow detector, and job dependency graph into
// confidence-scored flows.
package xref

// Pattern is the closed set of cross-reference flow patterns (§3.8).
type Pattern string

const (
	PatternDirectOutput      Pattern = "direct_output"
	PatternOutputToEnv       Pattern = "output_to_env"
	PatternOutputToFile      Pattern = "output_to_file"
	PatternOutputToSecret    Pattern = "output_to_secret"
	PatternJobChain          Pattern = "job_chain"
	PatternArtifactTransfer  Pattern = "artifact_transfer"
	PatternMatrixPropagation Pattern = "matrix_propagation"
	PatternInferred          Pattern = "inferred"
)

// EvidenceType is the closed set of evidence kinds contributing to a flow's
// score (§4.11).
type EvidenceType string

const (
	EvidenceExplicitReference EvidenceType = "explicit_reference"
	EvidenceExpressionMatch   EvidenceType = "expression_match"
	EvidenceEnvVariable       EvidenceType = "env_variable"
	EvidenceArtifactPath      EvidenceType = "artifact_path"
	EvidenceJobDependency     EvidenceType = "job_dependency"
	EvidenceNamingConvention  EvidenceType = "naming_convention"
	EvidenceStepProximity     EvidenceType = "step_proximity"
	EvidenceSemanticMatch     EvidenceType = "semantic_match"
	EvidenceFilePathMatch     EvidenceType = "file_path_match"
)

// evidenceWeights are the fixed per-type weights used in score combination
// (§4.11).
var evidenceWeights = map[EvidenceType]float64{
	EvidenceExplicitReference: 1.0,
	EvidenceExpressionMatch:   0.9,
	EvidenceEnvVariable:       0.8,
	EvidenceArtifactPath:      0.7,
	EvidenceJobDependency:     0.8,
	EvidenceNamingConvention:  0.5,
	EvidenceStepProximity:     0.4,
	EvidenceSemanticMatch:     0.6,
	EvidenceFilePathMatch:     0.6,
}

// Evidence is one observation contributing to a Flow's confidence.
type Evidence struct {
	Type   EvidenceType
	Detail string
}

// ConfidenceLevel is derived from a Flow's numeric score (§3.8).
type ConfidenceLevel string

const (
	LevelHigh   ConfidenceLevel = "high"
	LevelMedium ConfidenceLevel = "medium"
	LevelLow    ConfidenceLevel = "low"
)

// ConfidenceLevelFor derives a ConfidenceLevel from score using the §3.8
// thresholds: high >= 80, medium >= 50, low otherwise.
func ConfidenceLevelFor(score int) ConfidenceLevel {
	switch {
	case score >= 80:
		return LevelHigh
	case score >= 50:
		return LevelMedium
	default:
		return LevelLow
	}
}

// TfOutputInfo identifies a Terraform output exposed by a job (the source
// side of a Flow).
type TfOutputInfo struct {
	JobID      string
	StepIndex  int
	OutputName string
}

// HelmValueSource identifies where a Helm step consumes a value (the target
// side of a Flow).
type HelmValueSource struct {
	JobID     string
	StepIndex int
	Site      string // one of "--set", "env", "file", "secret", "job_chain", "artifact", "matrix"
	Path      string // the dotted value path, env var name, or file path
}

// Flow is a scored cross-reference edge (§3.8).
type Flow struct {
	ID              string
	Source          TfOutputInfo
	Target          HelmValueSource
	Pattern         Pattern
	Confidence      int
	ConfidenceLevel ConfidenceLevel
	Evidence        []Evidence
	WorkflowContext string
}
