package hcl

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestToCtyValue_Literals(t *testing.T) {
	require.Equal(t, cty.BoolVal(true), ToCtyValue(ParseExpression("true")))
	require.Equal(t, cty.StringVal("hello"), ToCtyValue(ParseExpression(`"hello"`)))
	require.True(t, ToCtyValue(ParseExpression("42")).RawEquals(cty.NumberFloatVal(42)))
}

func TestToCtyValue_Array(t *testing.T) {
	val := ToCtyValue(ParseExpression(`[1, 2, 3]`))
	require.True(t, val.Type().IsTupleType())
}

func TestToCtyValue_Object(t *testing.T) {
	val := ToCtyValue(ParseExpression(`{ name = "x", count = 2 }`))
	require.True(t, val.Type().IsObjectType())
	require.True(t, val.GetAttr("name").RawEquals(cty.StringVal("x")))
}

func TestToCtyValue_DynamicForReferenceOrFunction(t *testing.T) {
	require.Equal(t, cty.DynamicVal, ToCtyValue(ParseExpression("var.x")))
	require.Equal(t, cty.DynamicVal, ToCtyValue(ParseExpression("merge(local.a, local.b)")))
}

func TestToCtyValue_NilExpression(t *testing.T) {
	require.Equal(t, cty.NilVal, ToCtyValue(nil))
}

func TestIsStaticallyKnown_LiteralsAndNestedStructures(t *testing.T) {
	require.True(t, IsStaticallyKnown(ParseExpression("42")))
	require.True(t, IsStaticallyKnown(ParseExpression(`[1, 2, "three"]`)))
	require.True(t, IsStaticallyKnown(ParseExpression(`{ a = 1, b = [2, 3] }`)))
}

func TestIsStaticallyKnown_FalseWhenAnyLeafIsDynamic(t *testing.T) {
	require.False(t, IsStaticallyKnown(ParseExpression("var.x")))
	require.False(t, IsStaticallyKnown(ParseExpression(`[1, var.x]`)))
	require.False(t, IsStaticallyKnown(ParseExpression(`{ a = 1, b = local.y }`)))
}

func TestIsStaticallyKnown_NilExpression(t *testing.T) {
	require.False(t, IsStaticallyKnown(nil))
}
