package gha

import (
	"regexp"
	"strings"

	"github.com/iacgraph/iacgraph/internal/diagnostic"
)

// ExpressionType is the closed set of `${{ }}` body classifications (§3.5).
type ExpressionType string

const (
	ExprLiteral    ExpressionType = "literal"
	ExprContext    ExpressionType = "context"
	ExprFunction   ExpressionType = "function"
	ExprComparison ExpressionType = "comparison"
	ExprLogical    ExpressionType = "logical"
	ExprTernary    ExpressionType = "ternary"
	ExprMixed      ExpressionType = "mixed"
)

// knownContexts is the closed set of GHA expression contexts recognized in
// context references (§3.5, §4.6).
var knownContexts = map[string]bool{
	"github": true, "env": true, "vars": true, "job": true, "jobs": true,
	"steps": true, "runner": true, "secrets": true, "strategy": true,
	"matrix": true, "needs": true, "inputs": true,
}

// ContextRef is a single extracted context access (§3.5).
type ContextRef struct {
	Context     string
	Path        []string
	FullPath    string
	StartOffset int
	EndOffset   int
}

// FunctionCall is a single extracted builtin function invocation (§4.6).
type FunctionCall struct {
	Name        string
	Args        []string
	StartOffset int
	EndOffset   int
}

// Expression is a single parsed `${{ … }}` occurrence (§3.5).
type Expression struct {
	Raw               string
	Body              string
	Type              ExpressionType
	Location          diagnostic.Location
	ContextReferences []ContextRef
	Functions         []FunctionCall
}

var (
	reExprSite     = regexp.MustCompile(`\$\{\{(.*?)\}\}`)
	reLiteral      = regexp.MustCompile(`^\s*(?:true|false|null|-?\d+(?:\.\d+)?|'[^']*')\s*$`)
	reComparison   = regexp.MustCompile(`==|!=|<=|>=|<|>`)
	reLogical      = regexp.MustCompile(`&&|\|\|`)
	reFuncCallHead = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*\(`)
	reIdentParen   = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\s*\(`)
	reContextAccess = regexp.MustCompile(`(?i)\b(github|env|vars|job|jobs|steps|runner|secrets|strategy|matrix|needs|inputs)((?:\.[A-Za-z0-9_*-]+|\['[^']*'\]|\[[0-9]+\])+)`)
	// reTernary recognizes GHA's `cond && 'literal' || fallback` idiom. GHA
	// has no `?:` operator; this `&&`/`||` shape is the ternary in practice.
	reTernary = regexp.MustCompile(`&&\s*'[^']*'\s*\|\|`)
)

// ExtractExpressions scans content for every `${{ … }}` site and classifies
// each one. It never fails; malformed nesting yields a best-effort body.
func ExtractExpressions(content []byte) []Expression {
	s := string(content)
	var out []Expression

	matches := reExprSite.FindAllStringSubmatchIndex(s, -1)
	for _, m := range matches {
		raw := s[m[0]:m[1]]
		body := s[m[2]:m[3]]

		bodyStart := m[2]
		lineStart, colStart := lineCol(s, bodyStart)
		lineEnd, colEnd := lineCol(s, m[3])

		expr := Expression{
			Raw:  raw,
			Body: strings.TrimSpace(body),
			Location: diagnostic.Location{
				LineStart: lineStart, ColumnStart: colStart,
				LineEnd: lineEnd, ColumnEnd: colEnd,
			},
		}
		expr.Type = classifyBody(expr.Body)
		expr.ContextReferences = extractContextRefs(body, bodyStart)
		expr.Functions = extractFunctionCalls(body, bodyStart)
		out = append(out, expr)
	}
	return out
}

func lineCol(s string, offset int) (line, col int) {
	line = 1
	lastNewline := -1
	for i := 0; i < offset && i < len(s); i++ {
		if s[i] == '\n' {
			line++
			lastNewline = i
		}
	}
	col = offset - lastNewline
	return line, col
}

// classifyBody runs the §4.6 precedence chain: literal, logical (with
// ternary as a logical sub-case), comparison, function, context, mixed.
func classifyBody(body string) ExpressionType {
	if reLiteral.MatchString(body) {
		return ExprLiteral
	}
	if reLogical.MatchString(stripStrings(body)) {
		if reTernary.MatchString(body) {
			return ExprTernary
		}
		return ExprLogical
	}
	if reComparison.MatchString(stripStrings(body)) {
		return ExprComparison
	}
	if reFuncCallHead.MatchString(body) || reIdentParen.MatchString(body) {
		return ExprFunction
	}
	if reContextAccess.MatchString(body) && reContextAccess.FindString(body) == strings.TrimSpace(body) {
		return ExprContext
	}
	if reContextAccess.MatchString(body) {
		return ExprMixed
	}
	return ExprMixed
}

// stripStrings blanks out single-quoted string contents so operators inside
// strings are not mistaken for logical/comparison operators.
func stripStrings(s string) string {
	var sb strings.Builder
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			inString = !inString
			sb.WriteByte(' ')
			continue
		}
		if inString {
			sb.WriteByte(' ')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// extractContextRefs scans body for `(CONTEXT)(\.path|[...])+` occurrences,
// splitting the path on dots while respecting bracket segments.
func extractContextRefs(body string, bodyOffset int) []ContextRef {
	var out []ContextRef
	locs := reContextAccess.FindAllStringSubmatchIndex(body, -1)
	for _, loc := range locs {
		full := body[loc[0]:loc[1]]
		ctxName := strings.ToLower(body[loc[2]:loc[3]])
		if !knownContexts[ctxName] {
			continue
		}
		tail := body[loc[4]:loc[5]]
		path := splitContextPath(tail)
		out = append(out, ContextRef{
			Context:     ctxName,
			Path:        path,
			FullPath:    full,
			StartOffset: bodyOffset + loc[0],
			EndOffset:   bodyOffset + loc[1],
		})
	}
	return out
}

// splitContextPath splits a context's trailing `.a.b['c'][0]` path into
// segments, dropping dots inside brackets and stripping bracket quotes.
func splitContextPath(tail string) []string {
	var parts []string
	var cur strings.Builder
	i := 0
	for i < len(tail) {
		c := tail[i]
		switch c {
		case '.':
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			i++
		case '[':
			j := strings.IndexByte(tail[i:], ']')
			if j < 0 {
				cur.WriteByte(c)
				i++
				continue
			}
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			seg := strings.Trim(tail[i+1:i+j], `'"`)
			parts = append(parts, seg)
			i += j + 1
		default:
			cur.WriteByte(c)
			i++
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// extractFunctionCalls finds every `IDENT(` site and locates its matching
// close paren with string-aware depth counting, then splits arguments on
// top-level commas.
func extractFunctionCalls(body string, bodyOffset int) []FunctionCall {
	var out []FunctionCall
	for i := 0; i < len(body); i++ {
		if !isIdentStartByte(body[i]) {
			continue
		}
		j := i
		for j < len(body) && isIdentContByte(body[j]) {
			j++
		}
		name := body[i:j]
		k := j
		for k < len(body) && (body[k] == ' ' || body[k] == '\t') {
			k++
		}
		if k >= len(body) || body[k] != '(' {
			i = j - 1
			continue
		}
		close := matchParen(body, k)
		if close < 0 {
			i = j - 1
			continue
		}
		argsText := body[k+1 : close]
		args := splitArgsTopLevel(argsText)
		out = append(out, FunctionCall{
			Name: name, Args: args,
			StartOffset: bodyOffset + i, EndOffset: bodyOffset + close + 1,
		})
		i = close
	}
	return out
}

func isIdentStartByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentContByte(b byte) bool {
	return isIdentStartByte(b) || (b >= '0' && b <= '9')
}

// matchParen returns the index of the `)` matching the `(` at openIdx,
// honoring nested parens/brackets and single-quoted strings.
func matchParen(s string, openIdx int) int {
	depth := 0
	inString := false
	for i := openIdx; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inString = !inString
		case inString:
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitArgsTopLevel(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var args []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inString = !inString
		case inString:
			continue
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args
}
