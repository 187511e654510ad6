package hcl

import "github.com/zclconf/go-cty/cty"

// ToCtyValue converts a statically known expression into a cty.Value,
// mirroring the value representation Terraform's own evaluator uses. Only
// literal, array, and object expressions built entirely from literals are
// statically known; anything that depends on a reference, function call, or
// other runtime-resolved construct yields cty.DynamicVal.
func ToCtyValue(expr *HclExpression) cty.Value {
	if expr == nil {
		return cty.NilVal
	}

	switch expr.Kind {
	case ExprLiteral:
		switch expr.LiteralKind {
		case LiteralNull:
			return cty.NullVal(cty.DynamicPseudoType)
		case LiteralBool:
			return cty.BoolVal(expr.BoolValue)
		case LiteralNumber:
			return cty.NumberFloatVal(expr.NumberValue)
		case LiteralString:
			return cty.StringVal(expr.StringValue)
		default:
			return cty.DynamicVal
		}
	case ExprArray:
		if len(expr.Elements) == 0 {
			return cty.ListValEmpty(cty.DynamicPseudoType)
		}
		vals := make([]cty.Value, 0, len(expr.Elements))
		for _, el := range expr.Elements {
			vals = append(vals, ToCtyValue(el))
		}
		return cty.TupleVal(vals)
	case ExprObject:
		if len(expr.ObjectKeys) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(expr.ObjectKeys))
		for _, k := range expr.ObjectKeys {
			attrs[k] = ToCtyValue(expr.ObjectAttrs[k])
		}
		return cty.ObjectVal(attrs)
	default:
		return cty.DynamicVal
	}
}

// IsStaticallyKnown reports whether expr's value can be fully resolved
// without an evaluation context, i.e. ToCtyValue would not return
// cty.DynamicVal anywhere in its tree.
func IsStaticallyKnown(expr *HclExpression) bool {
	if expr == nil {
		return false
	}
	switch expr.Kind {
	case ExprLiteral:
		return true
	case ExprArray:
		for _, el := range expr.Elements {
			if !IsStaticallyKnown(el) {
				return false
			}
		}
		return true
	case ExprObject:
		for _, v := range expr.ObjectAttrs {
			if !IsStaticallyKnown(v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
