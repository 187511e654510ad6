package hcl

import "strings"

// ReferenceKind is the closed set of reference classifications (§3.3).
type ReferenceKind string

const (
	RefResource ReferenceKind = "resource"
	RefData     ReferenceKind = "data"
	RefModule   ReferenceKind = "module"
	RefVar      ReferenceKind = "var"
	RefLocal    ReferenceKind = "local"
	RefEach     ReferenceKind = "each"
	RefCount    ReferenceKind = "count"
	RefSelf     ReferenceKind = "self"
	RefPath     ReferenceKind = "path"
)

// ParsedReference is a canonical, kind-classified reference extracted from
// an HclExpression by the Reference Walker (§3.3, §4.4).
type ParsedReference struct {
	Kind      ReferenceKind
	Parts     []string
	Attribute string
	Raw       string
}

// WalkReferences walks expr and every nested expression, emitting a
// ParsedReference for each Reference leaf reached, in traversal order.
func WalkReferences(expr *HclExpression) []ParsedReference {
	var out []ParsedReference
	walk(expr, &out)
	return out
}

func walk(expr *HclExpression, out *[]ParsedReference) {
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ExprReference:
		*out = append(*out, classifyReference(expr))
	case ExprFunction:
		for _, a := range expr.Args {
			walk(a, out)
		}
	case ExprTemplate:
		for _, part := range expr.TemplateParts {
			if part.IsExpr {
				walk(part.Expr, out)
			}
		}
	case ExprFor:
		walk(expr.Collection, out)
		if expr.HasKeyExpr {
			walk(expr.KeyExpr, out)
		}
		walk(expr.ValueExpr, out)
		if expr.HasCond {
			walk(expr.Condition, out)
		}
	case ExprConditional:
		walk(expr.CondExpr, out)
		walk(expr.TrueResult, out)
		walk(expr.FalseResult, out)
	case ExprIndex:
		walk(expr.IndexCollection, out)
		walk(expr.IndexKey, out)
	case ExprSplat:
		walk(expr.SplatSource, out)
		if expr.HasSplatEach {
			walk(expr.SplatEach, out)
		}
	case ExprObject:
		for _, key := range expr.ObjectKeys {
			walk(expr.ObjectAttrs[key], out)
		}
	case ExprArray:
		for _, e := range expr.Elements {
			walk(e, out)
		}
	}
}

// classifyReference routes a Reference leaf by its first path segment
// per the §4.4 routing table.
func classifyReference(expr *HclExpression) ParsedReference {
	parts := expr.Parts
	if len(parts) == 0 {
		return ParsedReference{Kind: RefResource, Parts: parts, Raw: expr.Raw}
	}

	head := parts[0]
	switch head {
	case "var":
		return ParsedReference{Kind: RefVar, Parts: parts, Attribute: joinFrom(parts, 1), Raw: expr.Raw}
	case "local":
		return ParsedReference{Kind: RefLocal, Parts: parts, Attribute: joinFrom(parts, 1), Raw: expr.Raw}
	case "module":
		return ParsedReference{Kind: RefModule, Parts: parts, Attribute: joinFrom(parts, 1), Raw: expr.Raw}
	case "data":
		return ParsedReference{Kind: RefData, Parts: parts, Attribute: joinFrom(parts, 2), Raw: expr.Raw}
	case "each":
		return ParsedReference{Kind: RefEach, Parts: parts, Attribute: joinFrom(parts, 1), Raw: expr.Raw}
	case "count":
		return ParsedReference{Kind: RefCount, Parts: parts, Attribute: joinFrom(parts, 1), Raw: expr.Raw}
	case "self":
		return ParsedReference{Kind: RefSelf, Parts: parts, Attribute: joinFrom(parts, 1), Raw: expr.Raw}
	case "path":
		return ParsedReference{Kind: RefPath, Parts: parts, Attribute: joinFrom(parts, 1), Raw: expr.Raw}
	default:
		return ParsedReference{Kind: RefResource, Parts: parts, Attribute: joinFrom(parts, 2), Raw: expr.Raw}
	}
}

func joinFrom(parts []string, startIdx int) string {
	if startIdx >= len(parts) {
		return ""
	}
	return strings.Join(parts[startIdx:], ".")
}
