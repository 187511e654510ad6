package gha

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractExpressions_Literal(t *testing.T) {
	exprs := ExtractExpressions([]byte(`run: echo ${{ 'hello' }}`))
	require.Len(t, exprs, 1)
	require.Equal(t, ExprLiteral, exprs[0].Type)
}

func TestExtractExpressions_Context(t *testing.T) {
	exprs := ExtractExpressions([]byte(`value: ${{ needs.build.outputs.image_tag }}`))
	require.Len(t, exprs, 1)
	require.Equal(t, ExprContext, exprs[0].Type)
	require.Len(t, exprs[0].ContextReferences, 1)

	ref := exprs[0].ContextReferences[0]
	require.Equal(t, "needs", ref.Context)
	require.Equal(t, []string{"build", "outputs", "image_tag"}, ref.Path)
}

func TestExtractExpressions_Comparison(t *testing.T) {
	exprs := ExtractExpressions([]byte(`if: ${{ github.ref == 'refs/heads/main' }}`))
	require.Len(t, exprs, 1)
	require.Equal(t, ExprComparison, exprs[0].Type)
}

func TestExtractExpressions_Logical(t *testing.T) {
	exprs := ExtractExpressions([]byte(`if: ${{ success() && github.event_name == 'push' }}`))
	require.Len(t, exprs, 1)
	require.Contains(t, []ExpressionType{ExprLogical, ExprComparison}, exprs[0].Type)
}

func TestExtractExpressions_Ternary(t *testing.T) {
	exprs := ExtractExpressions([]byte(`value: ${{ github.event_name == 'push' && 'prod' || 'dev' }}`))
	require.Len(t, exprs, 1)
	require.Equal(t, ExprTernary, exprs[0].Type)
}

func TestExtractExpressions_TernaryWithFunctionCondition(t *testing.T) {
	exprs := ExtractExpressions([]byte(`value: ${{ contains(github.ref, 'main') && 'hot' || 'cold' }}`))
	require.Len(t, exprs, 1)
	require.Equal(t, ExprTernary, exprs[0].Type)
}

func TestExtractExpressions_FunctionCall(t *testing.T) {
	exprs := ExtractExpressions([]byte(`if: ${{ contains(github.ref, 'refs/tags/') }}`))
	require.Len(t, exprs, 1)
	require.Equal(t, ExprFunction, exprs[0].Type)
	require.Len(t, exprs[0].Functions, 1)
	require.Equal(t, "contains", exprs[0].Functions[0].Name)
	require.Equal(t, []string{"github.ref", "'refs/tags/'"}, exprs[0].Functions[0].Args)
}

func TestExtractExpressions_NestedFunctionArgsSplitCorrectly(t *testing.T) {
	exprs := ExtractExpressions([]byte(`value: ${{ format('{0}-{1}', github.sha, needs.build.outputs.tag) }}`))
	require.Len(t, exprs, 1)
	require.Len(t, exprs[0].Functions, 1)
	require.Len(t, exprs[0].Functions[0].Args, 3)
}

func TestExtractExpressions_MultipleSitesInOneLine(t *testing.T) {
	exprs := ExtractExpressions([]byte(`run: deploy ${{ needs.build.outputs.tag }} to ${{ vars.ENVIRONMENT }}`))
	require.Len(t, exprs, 2)
}

func TestExtractExpressions_UnknownContextNameIgnored(t *testing.T) {
	exprs := ExtractExpressions([]byte(`value: ${{ bogus.thing }}`))
	require.Len(t, exprs, 1)
	require.Empty(t, exprs[0].ContextReferences)
}

func TestExtractExpressions_NoSitesReturnsEmpty(t *testing.T) {
	require.Empty(t, ExtractExpressions([]byte("run: echo hello")))
}

func TestExtractExpressions_BracketPathSegments(t *testing.T) {
	exprs := ExtractExpressions([]byte(`value: ${{ steps['build-step'].outputs.result }}`))
	require.Len(t, exprs, 1)
	require.Len(t, exprs[0].ContextReferences, 1)
	require.Equal(t, []string{"build-step", "outputs", "result"}, exprs[0].ContextReferences[0].Path)
}
