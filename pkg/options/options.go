// Package options defines the single configuration record recognized by
// every parser and the cross-reference engine (§6.3 of the specification).
package options

import (
	"encoding/json"
	"fmt"
	"os"

	validatorpkg "github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"go.yaml.in/yaml/v4"
)

// Options is the configuration record passed to every parse and to the
// cross-reference engine. It is serializable to/from YAML and can be
// described by a JSON Schema (Schema) and validated (Validate).
type Options struct {
	// ErrorRecovery continues parsing after recoverable errors.
	ErrorRecovery bool `yaml:"error_recovery" json:"error_recovery" jsonschema:"description=Continue parsing after recoverable errors,default=true"`

	// MaxTerraformFileSize rejects HCL inputs beyond this many bytes.
	MaxTerraformFileSize int64 `yaml:"max_terraform_file_size,omitempty" json:"max_terraform_file_size,omitempty" jsonschema:"description=Maximum accepted Terraform source size in bytes,minimum=1,default=10485760" validate:"omitempty,min=1"`

	// MaxGHAFileSize rejects GHA workflow inputs beyond this many bytes.
	MaxGHAFileSize int64 `yaml:"max_gha_file_size,omitempty" json:"max_gha_file_size,omitempty" jsonschema:"description=Maximum accepted GitHub Actions workflow size in bytes,minimum=1,default=5242880" validate:"omitempty,min=1"`

	// TimeoutMillis aborts a parse after this many milliseconds.
	TimeoutMillis int64 `yaml:"timeout_millis,omitempty" json:"timeout_millis,omitempty" jsonschema:"description=Milliseconds before aborting a parse,minimum=1,default=30000" validate:"omitempty,min=1"`

	// IncludeRaw retains original source text on AST nodes.
	IncludeRaw bool `yaml:"include_raw" json:"include_raw" jsonschema:"description=Retain original source text on AST nodes,default=true"`

	// ParseNestedBlocks expands nested HCL blocks.
	ParseNestedBlocks bool `yaml:"parse_nested_blocks" json:"parse_nested_blocks" jsonschema:"description=Expand nested HCL blocks,default=true"`

	// StrictYAML rejects duplicate mapping keys and non-strict quoting.
	StrictYAML bool `yaml:"strict_yaml" json:"strict_yaml" jsonschema:"description=Reject duplicate mapping keys and non-strict quoting,default=false"`

	// DetectTerraform enables Terraform tool detection in GHA steps.
	DetectTerraform bool `yaml:"detect_terraform" json:"detect_terraform" jsonschema:"description=Enable Terraform tool detection in GHA steps,default=true"`

	// DetectHelm enables Helm tool detection in GHA steps.
	DetectHelm bool `yaml:"detect_helm" json:"detect_helm" jsonschema:"description=Enable Helm tool detection in GHA steps,default=true"`

	// DetectKubernetes enables kubectl/kustomize tool detection in GHA steps.
	DetectKubernetes bool `yaml:"detect_kubernetes" json:"detect_kubernetes" jsonschema:"description=Enable Kubernetes tool detection in GHA steps,default=true"`

	// DetectCloudProviders enables AWS/GCP/Azure tool detection in GHA steps.
	DetectCloudProviders bool `yaml:"detect_cloud_providers" json:"detect_cloud_providers" jsonschema:"description=Enable cloud-provider tool detection in GHA steps,default=true"`

	// ParseExpressions extracts ${{ }} expressions from workflow YAML.
	ParseExpressions bool `yaml:"parse_expressions" json:"parse_expressions" jsonschema:"description=Extract \\${{ }} expressions from workflow YAML,default=true"`

	// MinConfidence drops tool detections and flows scoring below this value.
	MinConfidence int `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty" jsonschema:"description=Drop tool detections and flows below this confidence score,minimum=0,maximum=100,default=0" validate:"min=0,max=100"`

	// IncludeInferred includes low-confidence inferred TF-Helm flows.
	IncludeInferred bool `yaml:"include_inferred" json:"include_inferred" jsonschema:"description=Include low-confidence inferred TF-Helm flows,default=false"`

	// MaxFlows caps the number of flows emitted per workflow.
	MaxFlows int `yaml:"max_flows,omitempty" json:"max_flows,omitempty" jsonschema:"description=Cap on flows emitted per workflow,minimum=1,default=100" validate:"omitempty,min=1"`

	// ExpressionCacheSize bounds the HCL expression-parser LRU cache (§4.3).
	ExpressionCacheSize int `yaml:"expression_cache_size,omitempty" json:"expression_cache_size,omitempty" jsonschema:"description=Capacity of the HCL expression-parser LRU cache,minimum=1,default=10000" validate:"omitempty,min=1"`
}

// Default returns the specification's documented defaults.
func Default() Options {
	return Options{
		ErrorRecovery:        true,
		MaxTerraformFileSize: 10 * 1024 * 1024,
		MaxGHAFileSize:       5 * 1024 * 1024,
		TimeoutMillis:        30000,
		IncludeRaw:           true,
		ParseNestedBlocks:    true,
		StrictYAML:           false,
		DetectTerraform:      true,
		DetectHelm:           true,
		DetectKubernetes:     true,
		DetectCloudProviders: true,
		ParseExpressions:     true,
		MinConfidence:        0,
		IncludeInferred:      false,
		MaxFlows:             100,
		ExpressionCacheSize:  10000,
	}
}

// Load reads Options from a YAML file, applying Default() first so any
// field the file omits keeps its documented default.
func Load(path string) (Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read options file: %w", err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse options file: %w", err)
	}

	return opts, nil
}

var validate = validatorpkg.New()

// Validate runs struct-tag validation over o, returning an aggregate error
// describing every violated constraint, or nil.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// Schema returns the JSON Schema describing Options, generated via
// invopop/jsonschema, for editor tooling or external config validation.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := r.Reflect(&Options{})
	schema.Title = "iacgraph parser options"
	schema.Description = "Configuration recognized by the HCL, GHA, and Helmfile parsers and the cross-reference engine"
	return schema
}

// SchemaJSON renders Schema() as indented JSON text.
func SchemaJSON() (string, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
