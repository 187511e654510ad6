// Package hcl implements the HCL2 lexer, block parser, expression parser,
// reference walker, and module-source classifier.
package hcl

import (
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

var (
	reNullBoolNumber = regexp.MustCompile(`^(?:null|true|false|-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?)$`)
	reHeredoc        = regexp.MustCompile(`(?s)^<<(-?)([A-Za-z_][A-Za-z0-9_]*)\n(.*)\n(\s*)` + `([A-Za-z_][A-Za-z0-9_]*)\s*$`)
	reContextRef     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_*\-]*(\.[A-Za-z0-9_*\-]+|\[[^\]]*\])*$`)
	reIdentName      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// ExpressionCache is a bounded, concurrency-safe cache of parsed expressions
// keyed by trimmed source text (§4.3, §5). A read-or-compute call either
// returns a cached AST or parses once and publishes the result; concurrent
// misses for the same key are collapsed by singleflight so only one
// publication is observable.
type ExpressionCache struct {
	lru   *lru.Cache[string, *HclExpression]
	group singleflight.Group
}

// NewExpressionCache builds a cache with the given bounded capacity. A
// non-positive size disables caching: every call re-parses, and callers must
// still observe identical ASTs (the cache is a transparent optimization).
func NewExpressionCache(size int) *ExpressionCache {
	if size <= 0 {
		return &ExpressionCache{}
	}
	c, _ := lru.New[string, *HclExpression](size)
	return &ExpressionCache{lru: c}
}

// Parse returns the cached expression for raw, parsing and publishing it on
// a cache miss. It is safe for concurrent use.
func (c *ExpressionCache) Parse(raw string) *HclExpression {
	key := strings.TrimSpace(raw)

	if c.lru != nil {
		if v, ok := c.lru.Get(key); ok {
			return v
		}
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if c.lru != nil {
			if v, ok := c.lru.Get(key); ok {
				return v, nil
			}
		}
		parsed := parseExpression(key)
		if c.lru != nil {
			c.lru.Add(key, parsed)
		}
		return parsed, nil
	})

	return v.(*HclExpression)
}

// ParseExpression parses raw without any cache, for callers that manage
// their own caching or want a cache-free reference implementation.
func ParseExpression(raw string) *HclExpression {
	return parseExpression(strings.TrimSpace(raw))
}

// parseExpression runs the fixed 13-step classification chain of §4.3. It
// never fails: every branch that cannot confidently classify s falls through
// to the next, terminating in a raw-text Literal.
func parseExpression(s string) *HclExpression {
	if s == "" {
		return &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralString, StringValue: "", Raw: s}
	}

	if reNullBoolNumber.MatchString(s) {
		switch {
		case s == "null":
			return &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralNull, Raw: s}
		case s == "true" || s == "false":
			return &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralBool, BoolValue: s == "true", Raw: s}
		default:
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralNumber, NumberValue: n, Raw: s}
			}
		}
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		body := s[1 : len(s)-1]
		if strings.Contains(body, "${") {
			if tmpl, ok := parseTemplate(s); ok {
				return tmpl
			}
		}
		return &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralString, StringValue: unescapeString(body), Raw: s}
	}

	if m := reHeredoc.FindStringSubmatch(s); m != nil {
		body := m[3]
		return &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralString, StringValue: body, Raw: s}
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && !strings.HasPrefix(strings.TrimSpace(s[1:len(s)-1]), "for") {
		if arr, ok := parseArray(s); ok {
			return arr
		}
	}

	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && !strings.HasPrefix(strings.TrimSpace(s[1:len(s)-1]), "for") {
		if obj, ok := parseObject(s); ok {
			return obj
		}
	}

	if forExpr, ok := parseFor(s); ok {
		return forExpr
	}

	if cond, ok := parseConditional(s); ok {
		return cond
	}

	if splat, ok := parseSplat(s); ok {
		return splat
	}

	if !strings.HasPrefix(s, "[") {
		if idx, ok := parseIndex(s); ok {
			return idx
		}
	}

	if fn, ok := parseFunction(s); ok {
		return fn
	}

	if strings.Contains(s, "${") {
		if tmpl, ok := parseTemplate(`"` + s + `"`); ok {
			tmpl.Raw = s
			return tmpl
		}
	}

	if ref, ok := parseReference(s); ok {
		return ref
	}

	return &HclExpression{Kind: ExprLiteral, LiteralKind: LiteralString, StringValue: s, Raw: s}
}

func unescapeString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			case 'r':
				sb.WriteByte('\r')
				i++
				continue
			case 't':
				sb.WriteByte('\t')
				i++
				continue
			case '"':
				sb.WriteByte('"')
				i++
				continue
			case '\\':
				sb.WriteByte('\\')
				i++
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// splitTopLevel splits s on sep, ignoring occurrences inside (), [], {}, or
// double-quoted strings.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inString = !inString
		case inString:
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseArray(s string) (*HclExpression, bool) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return &HclExpression{Kind: ExprArray, Raw: s}, true
	}
	var elems []*HclExpression
	for _, p := range splitTopLevel(inner, ',') {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		elems = append(elems, parseExpression(p))
	}
	return &HclExpression{Kind: ExprArray, Elements: elems, Raw: s}, true
}

func parseObject(s string) (*HclExpression, bool) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	attrs := map[string]*HclExpression{}
	var order []string
	if inner == "" {
		return &HclExpression{Kind: ExprObject, ObjectAttrs: attrs, ObjectKeys: order, Raw: s}, true
	}
	entries := splitTopLevel(inner, ',')
	if len(entries) == 1 {
		entries = splitNewlineEntries(inner)
	}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		var key, val string
		if idx := strings.Index(e, "="); idx >= 0 && (idx+1 >= len(e) || e[idx+1] != '=') {
			key, val = e[:idx], e[idx+1:]
		} else if idx := strings.Index(e, ":"); idx >= 0 {
			key, val = e[:idx], e[idx+1:]
		} else {
			continue
		}
		key = strings.Trim(strings.TrimSpace(key), `"`)
		if key == "" {
			continue
		}
		if _, exists := attrs[key]; !exists {
			order = append(order, key)
		}
		attrs[key] = parseExpression(strings.TrimSpace(val))
	}
	return &HclExpression{Kind: ExprObject, ObjectAttrs: attrs, ObjectKeys: order, Raw: s}, true
}

func splitNewlineEntries(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// parseFor handles `[for k, v in coll : expr if cond]` and the object form
// `{for k, v in coll : key => val...}`.
func parseFor(s string) (*HclExpression, bool) {
	isObj := strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
	isArr := strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
	if !isObj && !isArr {
		return nil, false
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if !strings.HasPrefix(inner, "for ") && inner != "for" {
		return nil, false
	}
	inner = strings.TrimPrefix(inner, "for")
	inIdx := findTopLevelKeyword(inner, " in ")
	if inIdx < 0 {
		return nil, false
	}
	varsPart := strings.TrimSpace(inner[:inIdx])
	rest := inner[inIdx+len(" in "):]

	colonIdx := findTopLevelByte(rest, ':')
	if colonIdx < 0 {
		return nil, false
	}
	collectionText := strings.TrimSpace(rest[:colonIdx])
	tail := strings.TrimSpace(rest[colonIdx+1:])

	var cond string
	if ifIdx := findTopLevelKeyword(tail, " if "); ifIdx >= 0 {
		cond = strings.TrimSpace(tail[ifIdx+len(" if "):])
		tail = strings.TrimSpace(tail[:ifIdx])
	}

	var keyVar, valueVar string
	hasKeyVar := false
	if commaIdx := findTopLevelByte(varsPart, ','); commaIdx >= 0 {
		keyVar = strings.TrimSpace(varsPart[:commaIdx])
		valueVar = strings.TrimSpace(varsPart[commaIdx+1:])
		hasKeyVar = true
	} else {
		valueVar = varsPart
	}

	result := &HclExpression{
		Kind:       ExprFor,
		KeyVar:     keyVar,
		HasKeyVar:  hasKeyVar,
		ValueVar:   valueVar,
		Collection: parseExpression(collectionText),
		IsObject:   isObj,
		Raw:        s,
	}
	if cond != "" {
		result.Condition = parseExpression(cond)
		result.HasCond = true
	}

	if isObj {
		arrowIdx := findTopLevelKeyword(tail, "=>")
		if arrowIdx < 0 {
			return nil, false
		}
		result.KeyExpr = parseExpression(strings.TrimSpace(tail[:arrowIdx]))
		result.HasKeyExpr = true
		valuePart := strings.TrimSpace(tail[arrowIdx+2:])
		valuePart = strings.TrimSuffix(valuePart, "...")
		result.ValueExpr = parseExpression(strings.TrimSpace(valuePart))
	} else {
		result.ValueExpr = parseExpression(tail)
	}
	return result, true
}

func findTopLevelByte(s string, b byte) int {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inString = !inString
		case inString:
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == b && depth == 0:
			return i
		}
	}
	return -1
}

func findTopLevelKeyword(s, kw string) int {
	depth := 0
	inString := false
	for i := 0; i+len(kw) <= len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inString = !inString
		case inString:
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		}
		if depth == 0 && !inString && s[i:i+len(kw)] == kw {
			return i
		}
	}
	return -1
}

// parseConditional handles `cond ? a : b` at depth 0.
func parseConditional(s string) (*HclExpression, bool) {
	qIdx := -1
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inString = !inString
		case inString:
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == '?' && depth == 0 && qIdx < 0:
			if i+1 < len(s) && s[i+1] == '?' {
				continue
			}
			qIdx = i
		}
	}
	if qIdx < 0 {
		return nil, false
	}
	condText := strings.TrimSpace(s[:qIdx])
	rest := s[qIdx+1:]
	colonIdx := findTopLevelByte(rest, ':')
	if colonIdx < 0 {
		return nil, false
	}
	trueText := strings.TrimSpace(rest[:colonIdx])
	falseText := strings.TrimSpace(rest[colonIdx+1:])
	if condText == "" || trueText == "" || falseText == "" {
		return nil, false
	}
	return &HclExpression{
		Kind:        ExprConditional,
		CondExpr:    parseExpression(condText),
		TrueResult:  parseExpression(trueText),
		FalseResult: parseExpression(falseText),
		Raw:         s,
	}, true
}

// parseSplat handles `expr[*].attr?` (legacy splat form).
func parseSplat(s string) (*HclExpression, bool) {
	idx := strings.Index(s, "[*]")
	if idx < 0 {
		return nil, false
	}
	sourceText := s[:idx]
	if sourceText == "" {
		return nil, false
	}
	rest := s[idx+3:]
	result := &HclExpression{
		Kind:        ExprSplat,
		SplatSource: parseExpression(sourceText),
		Raw:         s,
	}
	rest = strings.TrimPrefix(rest, ".")
	if rest != "" {
		result.SplatEach = parseExpression(rest)
		result.HasSplatEach = true
	}
	return result, true
}

// parseIndex handles `expr[key]` where expr is non-empty and key is not `*`.
func parseIndex(s string) (*HclExpression, bool) {
	if !strings.HasSuffix(s, "]") {
		return nil, false
	}
	depth := 0
	openIdx := -1
	inString := false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inString = !inString
		case inString:
			continue
		case c == ']':
			depth++
		case c == '[':
			depth--
			if depth == 0 {
				openIdx = i
			}
		}
		if openIdx >= 0 {
			break
		}
	}
	if openIdx <= 0 {
		return nil, false
	}
	collectionText := s[:openIdx]
	keyText := s[openIdx+1 : len(s)-1]
	if keyText == "*" || keyText == "" {
		return nil, false
	}
	return &HclExpression{
		Kind:            ExprIndex,
		IndexCollection: parseExpression(collectionText),
		IndexKey:        parseExpression(keyText),
		Raw:             s,
	}, true
}

// parseFunction handles `NAME(args)` where NAME is a valid identifier and
// the whole string is consumed by the call (trailing text disqualifies it).
func parseFunction(s string) (*HclExpression, bool) {
	parenIdx := strings.Index(s, "(")
	if parenIdx <= 0 || !strings.HasSuffix(s, ")") {
		return nil, false
	}
	name := s[:parenIdx]
	if !reIdentName.MatchString(name) {
		return nil, false
	}
	argsText := s[parenIdx+1 : len(s)-1]
	var args []*HclExpression
	if strings.TrimSpace(argsText) != "" {
		for _, a := range splitTopLevel(argsText, ',') {
			a = strings.TrimSpace(a)
			if a == "" || a == "..." {
				continue
			}
			a = strings.TrimSuffix(a, "...")
			args = append(args, parseExpression(strings.TrimSpace(a)))
		}
	}
	return &HclExpression{Kind: ExprFunction, Name: name, Args: args, Raw: s}, true
}

// parseTemplate handles a quoted string whose body contains `${ ... }`
// interpolations, splitting it into literal and expression parts.
func parseTemplate(quoted string) (*HclExpression, bool) {
	if len(quoted) < 2 {
		return nil, false
	}
	body := quoted[1 : len(quoted)-1]
	if !strings.Contains(body, "${") {
		return nil, false
	}

	var parts []TemplatePart
	i := 0
	for i < len(body) {
		idx := strings.Index(body[i:], "${")
		if idx < 0 {
			if rest := body[i:]; rest != "" {
				parts = append(parts, TemplatePart{Text: unescapeString(rest)})
			}
			break
		}
		if idx > 0 || i == 0 {
			parts = append(parts, TemplatePart{Text: unescapeString(body[i : i+idx])})
		}
		start := i + idx + 2
		depth := 1
		j := start
		for j < len(body) && depth > 0 {
			switch body[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth == 0 {
				break
			}
			j++
		}
		inner := body[start:j]
		expr := parseExpression(strings.TrimSpace(inner))
		parts = append(parts, TemplatePart{IsExpr: true, Expr: expr})
		if j < len(body) {
			i = j + 1
		} else {
			i = j
		}
	}

	return &HclExpression{Kind: ExprTemplate, TemplateParts: parts, Raw: quoted}, true
}

// parseReference handles `IDENT(.IDENT)*`, permitting `-`, quoted segments,
// and bracketed index/splat segments in tail positions.
func parseReference(s string) (*HclExpression, bool) {
	if !reContextRef.MatchString(s) {
		return nil, false
	}
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '.':
			parts = append(parts, cur.String())
			cur.Reset()
		case '[':
			j := strings.Index(s[i:], "]")
			if j < 0 {
				cur.WriteByte(c)
				continue
			}
			parts = append(parts, cur.String()+s[i:i+j+1])
			cur.Reset()
			i += j
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	if len(parts) == 0 {
		return nil, false
	}
	return &HclExpression{Kind: ExprReference, Parts: parts, Raw: s}, true
}
