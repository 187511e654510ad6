package hcl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExpression_Literals(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want *HclExpression
	}{
		{"null", "null", &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralNull}},
		{"true", "true", &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralBool, BoolValue: true}},
		{"false", "false", &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralBool, BoolValue: false}},
		{"integer", "42", &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralNumber, NumberValue: 42}},
		{"negative float", "-3.5", &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralNumber, NumberValue: -3.5}},
		{"string", `"hello"`, &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralString, StringValue: "hello"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseExpression(tc.raw)
			require.Equal(t, tc.want.Kind, got.Kind)
			require.Equal(t, tc.want.LiteralKind, got.LiteralKind)
			require.Equal(t, tc.want.BoolValue, got.BoolValue)
			require.Equal(t, tc.want.NumberValue, got.NumberValue)
			require.Equal(t, tc.want.StringValue, got.StringValue)
		})
	}
}

func TestParseExpression_Reference(t *testing.T) {
	expr := ParseExpression("aws_instance.web.id")
	require.Equal(t, ExprReference, expr.Kind)
	require.Equal(t, []string{"aws_instance", "web", "id"}, expr.Parts)
}

func TestParseExpression_FunctionCall(t *testing.T) {
	expr := ParseExpression(`merge(local.defaults, var.overrides)`)
	require.Equal(t, ExprFunction, expr.Kind)
	require.Equal(t, "merge", expr.Name)
	require.Len(t, expr.Args, 2)
	require.Equal(t, ExprReference, expr.Args[0].Kind)
	require.Equal(t, []string{"local", "defaults"}, expr.Args[0].Parts)
}

func TestParseExpression_Conditional(t *testing.T) {
	expr := ParseExpression(`var.enabled ? "yes" : "no"`)
	require.Equal(t, ExprConditional, expr.Kind)
	require.Equal(t, ExprReference, expr.CondExpr.Kind)
	require.Equal(t, "yes", expr.TrueResult.StringValue)
	require.Equal(t, "no", expr.FalseResult.StringValue)
}

func TestParseExpression_Index(t *testing.T) {
	expr := ParseExpression(`var.items[0]`)
	require.Equal(t, ExprIndex, expr.Kind)
	require.Equal(t, ExprReference, expr.IndexCollection.Kind)
	require.Equal(t, float64(0), expr.IndexKey.NumberValue)
}

func TestParseExpression_Splat(t *testing.T) {
	expr := ParseExpression(`aws_instance.web[*].id`)
	require.Equal(t, ExprSplat, expr.Kind)
	require.True(t, expr.HasSplatEach)
	require.Equal(t, []string{"id"}, expr.SplatEach.Parts)
}

func TestParseExpression_ArrayAndObject(t *testing.T) {
	arr := ParseExpression(`[1, 2, "three"]`)
	require.Equal(t, ExprArray, arr.Kind)
	require.Len(t, arr.Elements, 3)

	obj := ParseExpression(`{ name = "x", count = 2 }`)
	require.Equal(t, ExprObject, obj.Kind)
	require.Equal(t, []string{"name", "count"}, obj.ObjectKeys)
	require.Equal(t, "x", obj.ObjectAttrs["name"].StringValue)
}

func TestParseExpression_ForExpression(t *testing.T) {
	expr := ParseExpression(`[for k, v in var.map : "${k}=${v}" if v != ""]`)
	require.Equal(t, ExprFor, expr.Kind)
	require.True(t, expr.HasKeyVar)
	require.Equal(t, "k", expr.KeyVar)
	require.Equal(t, "v", expr.ValueVar)
	require.False(t, expr.IsObject)
	require.True(t, expr.HasCond)
}

func TestParseExpression_ForObjectExpression(t *testing.T) {
	expr := ParseExpression(`{for k, v in var.map : k => v}`)
	require.Equal(t, ExprFor, expr.Kind)
	require.True(t, expr.IsObject)
	require.True(t, expr.HasKeyExpr)
}

func TestParseExpression_Template(t *testing.T) {
	expr := ParseExpression(`"prefix-${var.name}-suffix"`)
	require.Equal(t, ExprTemplate, expr.Kind)
	require.Len(t, expr.TemplateParts, 3)
	require.False(t, expr.TemplateParts[0].IsExpr)
	require.True(t, expr.TemplateParts[1].IsExpr)
	require.Equal(t, []string{"var", "name"}, expr.TemplateParts[1].Expr.Parts)
}

func TestParseExpression_TemplateLeadingInterpolationEmitsEmptyTextSegment(t *testing.T) {
	expr := ParseExpression(`"${aws_instance.web.id}-${var.env}"`)
	require.Equal(t, ExprTemplate, expr.Kind)
	require.Len(t, expr.TemplateParts, 4)
	require.False(t, expr.TemplateParts[0].IsExpr)
	require.Equal(t, "", expr.TemplateParts[0].Text)
	require.True(t, expr.TemplateParts[1].IsExpr)
	require.Equal(t, []string{"aws_instance", "web", "id"}, expr.TemplateParts[1].Expr.Parts)
	require.False(t, expr.TemplateParts[2].IsExpr)
	require.Equal(t, "-", expr.TemplateParts[2].Text)
	require.True(t, expr.TemplateParts[3].IsExpr)
	require.Equal(t, []string{"var", "env"}, expr.TemplateParts[3].Expr.Parts)
}

func TestParseExpression_NeverFails(t *testing.T) {
	inputs := []string{
		"", "   ", "[", "{", "??", "a..b", "func(", "var.",
		`unterminated "string`, "()",
	}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			_ = ParseExpression(in)
		})
	}
}

func TestExpressionCache_TransparentWithAndWithoutCache(t *testing.T) {
	raw := `merge(local.a, var.b)`

	cached := NewExpressionCache(16)
	uncached := NewExpressionCache(0)

	require.Equal(t, uncached.Parse(raw), cached.Parse(raw))
	require.Equal(t, cached.Parse(raw), cached.Parse(raw))
}

func TestExpressionCache_ConcurrentAccessSingleResult(t *testing.T) {
	cache := NewExpressionCache(8)
	raw := `aws_instance.web.id`

	var wg sync.WaitGroup
	results := make([]*HclExpression, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Parse(raw)
		}(i)
	}
	wg.Wait()

	first := results[0]
	for _, r := range results {
		require.Same(t, first, r)
	}
}
