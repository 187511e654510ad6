package hcl

import "github.com/iacgraph/iacgraph/internal/diagnostic"

// ExpressionKind discriminates the HclExpression tagged union (§3.2).
type ExpressionKind int

const (
	ExprLiteral ExpressionKind = iota
	ExprReference
	ExprFunction
	ExprTemplate
	ExprFor
	ExprConditional
	ExprIndex
	ExprSplat
	ExprObject
	ExprArray
)

func (k ExpressionKind) String() string {
	switch k {
	case ExprLiteral:
		return "literal"
	case ExprReference:
		return "reference"
	case ExprFunction:
		return "function"
	case ExprTemplate:
		return "template"
	case ExprFor:
		return "for"
	case ExprConditional:
		return "conditional"
	case ExprIndex:
		return "index"
	case ExprSplat:
		return "splat"
	case ExprObject:
		return "object"
	case ExprArray:
		return "array"
	default:
		return "unknown"
	}
}

// LiteralValueKind distinguishes the possible scalar kinds a Literal holds.
type LiteralValueKind int

const (
	LiteralNull LiteralValueKind = iota
	LiteralBool
	LiteralNumber
	LiteralString
)

// TemplatePart is a single segment of a Template: either literal string text
// or a nested HclExpression for an interpolation.
type TemplatePart struct {
	IsExpr bool
	Text   string
	Expr   *HclExpression
}

// HclExpression is the discriminated expression AST produced by the
// expression parser (§3.2, §4.3). Exactly the fields relevant to Kind are
// populated; Raw always holds the trimmed source text the node was parsed
// from.
type HclExpression struct {
	Kind ExpressionKind
	Raw  string

	// Literal
	LiteralKind LiteralValueKind
	BoolValue   bool
	NumberValue float64
	StringValue string

	// Reference
	Parts []string

	// Function
	Name string
	Args []*HclExpression

	// Template
	TemplateParts []TemplatePart

	// For
	KeyVar     string
	HasKeyVar  bool
	ValueVar   string
	Collection *HclExpression
	KeyExpr    *HclExpression
	HasKeyExpr bool
	ValueExpr  *HclExpression
	Condition  *HclExpression
	HasCond    bool
	IsObject   bool

	// Conditional
	CondExpr   *HclExpression
	TrueResult *HclExpression
	FalseResult *HclExpression

	// Index
	IndexCollection *HclExpression
	IndexKey        *HclExpression

	// Splat
	SplatSource *HclExpression
	SplatEach   *HclExpression
	HasSplatEach bool

	// Object
	ObjectKeys  []string
	ObjectAttrs map[string]*HclExpression

	// Array
	Elements []*HclExpression
}

// BlockType is the closed set of ten Terraform configuration-block kinds
// (§3.2).
type BlockType string

const (
	BlockResource  BlockType = "resource"
	BlockData      BlockType = "data"
	BlockModule    BlockType = "module"
	BlockVariable  BlockType = "variable"
	BlockOutput    BlockType = "output"
	BlockProvider  BlockType = "provider"
	BlockLocals    BlockType = "locals"
	BlockTerraform BlockType = "terraform"
	BlockMoved     BlockType = "moved"
	BlockImport    BlockType = "import"
)

// ExpectedLabelCount returns the number of labels a block of type t must
// carry, per §3.2's validation table. ok is false for an unrecognized type.
func ExpectedLabelCount(t BlockType) (count int, ok bool) {
	switch t {
	case BlockResource, BlockData:
		return 2, true
	case BlockModule, BlockVariable, BlockOutput, BlockProvider:
		return 1, true
	case BlockLocals, BlockTerraform, BlockMoved, BlockImport:
		return 0, true
	default:
		return 0, false
	}
}

// TerraformBlock is a parsed HCL configuration block (§3.2).
type TerraformBlock struct {
	BlockType    BlockType
	Labels       []string
	Attributes   map[string]*HclExpression
	AttributeOrder []string
	NestedBlocks []*TerraformBlock
	Location     diagnostic.Location
}
