package hcl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalkReferences_VarLocalModule(t *testing.T) {
	cases := []struct {
		raw       string
		wantKind  ReferenceKind
		wantParts []string
		wantAttr  string
	}{
		{"var.region", RefVar, []string{"var", "region"}, "region"},
		{"local.name", RefLocal, []string{"local", "name"}, "name"},
		{"module.vpc.id", RefModule, []string{"module", "vpc", "id"}, "vpc.id"},
		{"each.value", RefEach, []string{"each", "value"}, "value"},
		{"count.index", RefCount, []string{"count", "index"}, "index"},
		{"self.id", RefSelf, []string{"self", "id"}, "id"},
		{"path.module", RefPath, []string{"path", "module"}, "module"},
		{"data.aws_ami.latest.id", RefData, []string{"data", "aws_ami", "latest", "id"}, "latest.id"},
		{"aws_instance.web.id", RefResource, []string{"aws_instance", "web", "id"}, "id"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			expr := ParseExpression(tc.raw)
			refs := WalkReferences(expr)
			require.Len(t, refs, 1)
			require.Equal(t, tc.wantKind, refs[0].Kind)
			require.Equal(t, tc.wantParts, refs[0].Parts)
			require.Equal(t, tc.wantAttr, refs[0].Attribute)
		})
	}
}

func TestWalkReferences_ModuleNameIsSecondPart(t *testing.T) {
	expr := ParseExpression("module.vpc.subnet_ids")
	refs := WalkReferences(expr)
	require.Len(t, refs, 1)
	require.Equal(t, RefModule, refs[0].Kind)
	require.Equal(t, "vpc", refs[0].Parts[1])
}

func TestWalkReferences_DataTypeAndNameAreSecondAndThirdParts(t *testing.T) {
	expr := ParseExpression("data.aws_ami.latest.id")
	refs := WalkReferences(expr)
	require.Len(t, refs, 1)
	require.Equal(t, RefData, refs[0].Kind)
	require.Equal(t, "aws_ami", refs[0].Parts[1])
	require.Equal(t, "latest", refs[0].Parts[2])
}

func TestWalkReferences_BareResourceHasNoHeadKeyword(t *testing.T) {
	expr := ParseExpression("aws_instance.web.private_ip")
	refs := WalkReferences(expr)
	require.Len(t, refs, 1)
	require.Equal(t, RefResource, refs[0].Kind)
	require.Equal(t, "aws_instance", refs[0].Parts[0])
	require.Equal(t, "web", refs[0].Parts[1])
}

func TestWalkReferences_FunctionArgsWalked(t *testing.T) {
	expr := ParseExpression("merge(local.defaults, var.overrides)")
	refs := WalkReferences(expr)
	require.Len(t, refs, 2)
	require.Equal(t, RefLocal, refs[0].Kind)
	require.Equal(t, RefVar, refs[1].Kind)
}

func TestWalkReferences_TemplateExprPartsWalked(t *testing.T) {
	expr := ParseExpression(`"prefix-${var.name}-suffix"`)
	refs := WalkReferences(expr)
	require.Len(t, refs, 1)
	require.Equal(t, RefVar, refs[0].Kind)
}

func TestWalkReferences_ConditionalAllBranchesWalked(t *testing.T) {
	expr := ParseExpression(`var.enabled ? local.a : local.b`)
	refs := WalkReferences(expr)
	require.Len(t, refs, 3)
	require.Equal(t, RefVar, refs[0].Kind)
	require.Equal(t, RefLocal, refs[1].Kind)
	require.Equal(t, RefLocal, refs[2].Kind)
}

func TestWalkReferences_IndexCollectionAndKeyWalked(t *testing.T) {
	expr := ParseExpression(`var.items[count.index]`)
	refs := WalkReferences(expr)
	require.Len(t, refs, 2)
	require.Equal(t, RefVar, refs[0].Kind)
	require.Equal(t, RefCount, refs[1].Kind)
}

func TestWalkReferences_SplatSourceAndEachWalked(t *testing.T) {
	expr := ParseExpression(`aws_instance.web[*].id`)
	refs := WalkReferences(expr)
	require.Len(t, refs, 2)
	require.Equal(t, RefResource, refs[0].Kind)
	require.Equal(t, RefResource, refs[1].Kind)
}

func TestWalkReferences_ObjectAndArrayElementsWalked(t *testing.T) {
	obj := ParseExpression(`{ a = var.x, b = local.y }`)
	refs := WalkReferences(obj)
	require.Len(t, refs, 2)

	arr := ParseExpression(`[var.x, local.y, each.value]`)
	refs = WalkReferences(arr)
	require.Len(t, refs, 3)
}

func TestWalkReferences_ForExpressionWalksCollectionValueAndCondition(t *testing.T) {
	expr := ParseExpression(`[for k, v in var.map : local.prefix if v != ""]`)
	refs := WalkReferences(expr)

	var kinds []ReferenceKind
	for _, r := range refs {
		kinds = append(kinds, r.Kind)
	}
	require.Contains(t, kinds, RefVar)
	require.Contains(t, kinds, RefLocal)
}

func TestWalkReferences_NilExpressionReturnsEmpty(t *testing.T) {
	require.Empty(t, WalkReferences(nil))
}
