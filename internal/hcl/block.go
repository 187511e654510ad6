package hcl

import (
	"strings"

	"github.com/iacgraph/iacgraph/internal/diagnostic"
)

var knownBlockTypes = map[string]BlockType{
	"resource":  BlockResource,
	"data":      BlockData,
	"module":    BlockModule,
	"variable":  BlockVariable,
	"output":    BlockOutput,
	"provider":  BlockProvider,
	"locals":    BlockLocals,
	"terraform": BlockTerraform,
	"moved":     BlockMoved,
	"import":    BlockImport,
}

// BlockParser is a recursive-descent parser over a filtered HCL token
// stream (§4.2).
type BlockParser struct {
	tokens []Token
	pos    int
	file   string
	opts   ParserOptions
	cache  *ExpressionCache
	diags  diagnostic.Collector
}

// ParserOptions controls recovery behavior and block expansion (§6.3
// ErrorRecovery / ParseNestedBlocks, threaded in by callers).
type ParserOptions struct {
	ErrorRecovery     bool
	ParseNestedBlocks bool
}

// ParseModule tokenizes and parses src into an ordered sequence of top-level
// TerraformBlocks.
func ParseModule(src []byte, file string, opts ParserOptions, cache *ExpressionCache) diagnostic.Result[[]*TerraformBlock] {
	tokens := filterComments(Tokenize(src))
	p := &BlockParser{tokens: tokens, file: file, opts: opts, cache: cache}
	blocks := p.parseTopLevel()
	if !opts.ErrorRecovery && len(p.diags.Errors) > 0 {
		first := p.diags.Errors[0]
		first.Severity = diagnostic.SeverityFatal
		first.Recoverable = false
		return diagnostic.NewResult[[]*TerraformBlock](nil, []diagnostic.Diagnostic{first}, p.diags.Warnings)
	}
	return diagnostic.NewResult(blocks, p.diags.Errors, p.diags.Warnings)
}

func filterComments(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Type != TokenComment {
			out = append(out, t)
		}
	}
	return out
}

func (p *BlockParser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *BlockParser) peekAt(offset int) Token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[i]
}

func (p *BlockParser) advance() Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *BlockParser) skipNewlines() {
	for p.peek().Type == TokenNewline {
		p.advance()
	}
}

func (p *BlockParser) addError(msg string, tok Token, recoverable bool) {
	sev := diagnostic.SeverityError
	if !recoverable && !p.opts.ErrorRecovery {
		sev = diagnostic.SeverityFatal
	}
	p.diags.Add(diagnostic.Diagnostic{
		Code:    diagnostic.CodeParseError,
		Message: msg,
		Location: &diagnostic.Location{
			File: p.file, LineStart: tok.Line, LineEnd: tok.Line,
			ColumnStart: tok.Column, ColumnEnd: tok.Column,
		},
		Severity:    sev,
		Recoverable: recoverable,
	})
}

// parseTopLevel consumes any number of top-level blocks separated by
// NEWLINE tokens.
func (p *BlockParser) parseTopLevel() []*TerraformBlock {
	var blocks []*TerraformBlock
	for {
		p.skipNewlines()
		if p.peek().Type == TokenEOF {
			return blocks
		}
		if p.peek().Type != TokenIdentifier {
			// Unrecognized top-level token: skip it to make progress.
			p.advance()
			continue
		}
		block, ok := p.parseBlock(0)
		if ok {
			blocks = append(blocks, block)
		}
	}
}

// parseBlock parses `IDENTIFIER (STRING|IDENTIFIER)* LBRACE body RBRACE`.
// depth is the nesting level; it is only passed down to nested-block
// parsing. A block of an unknown top-level type is consumed and dropped.
func (p *BlockParser) parseBlock(depth int) (*TerraformBlock, bool) {
	startTok := p.peek()
	typeTok := p.advance()
	blockType, known := knownBlockTypes[typeTok.Value]

	var labels []string
	for p.peek().Type == TokenString || p.peek().Type == TokenIdentifier {
		labelTok := p.advance()
		labels = append(labels, strings.Trim(labelTok.Value, `"`))
	}

	if p.peek().Type != TokenLBrace {
		// No block body: tolerate a bare `identifier = expr` at top level by
		// treating it as an unknown, skippable statement.
		if p.peek().Type == TokenEquals {
			p.advance()
			p.readExpressionText()
		}
		if !known {
			return nil, false
		}
		p.addError("expected '{' after block header", p.peek(), true)
		return nil, false
	}
	p.advance() // consume '{'

	block := &TerraformBlock{
		BlockType:  blockType,
		Labels:     labels,
		Attributes: map[string]*HclExpression{},
		Location: diagnostic.Location{
			File: p.file, LineStart: startTok.Line, ColumnStart: startTok.Column,
		},
	}

	if known {
		if want, ok := ExpectedLabelCount(blockType); ok && want != len(labels) {
			p.addError("unexpected label count for block type", startTok, true)
		}
	}

	p.parseBody(block, depth)

	endTok := p.peek()
	if endTok.Type == TokenRBrace {
		p.advance()
	} else {
		p.addError("unterminated block", endTok, true)
		p.seekToRBrace()
	}
	block.Location.LineEnd = endTok.Line
	block.Location.ColumnEnd = endTok.Column

	if !known {
		return block, false
	}
	return block, true
}

func (p *BlockParser) parseBody(block *TerraformBlock, depth int) {
	for {
		p.skipNewlines()
		tok := p.peek()
		if tok.Type == TokenRBrace || tok.Type == TokenEOF {
			return
		}
		if tok.Type != TokenIdentifier {
			p.advance()
			continue
		}

		if p.peekAt(1).Type == TokenEquals {
			name := p.advance().Value
			p.advance() // '='
			exprText := p.readExpressionText()
			var expr *HclExpression
			if p.cache != nil {
				expr = p.cache.Parse(exprText)
			} else {
				expr = ParseExpression(exprText)
			}
			if _, exists := block.Attributes[name]; !exists {
				block.AttributeOrder = append(block.AttributeOrder, name)
			}
			block.Attributes[name] = expr
			continue
		}

		// Nested block: IDENTIFIER (STRING|IDENTIFIER)* LBRACE body RBRACE.
		nested, recognizedOrNot := p.parseNestedBlock(depth + 1)
		if nested != nil && p.opts.ParseNestedBlocks {
			_ = recognizedOrNot
			block.NestedBlocks = append(block.NestedBlocks, nested)
		}
	}
}

// parseNestedBlock mirrors parseBlock but always keeps the block regardless
// of whether its type is one of the 10 top-level kinds: nested blocks (e.g.
// `lifecycle`, `ingress`) are not restricted to the top-level closed set.
func (p *BlockParser) parseNestedBlock(depth int) (*TerraformBlock, bool) {
	startTok := p.peek()
	typeTok := p.advance()
	blockType := BlockType(typeTok.Value)

	var labels []string
	for p.peek().Type == TokenString || p.peek().Type == TokenIdentifier {
		labelTok := p.advance()
		labels = append(labels, strings.Trim(labelTok.Value, `"`))
	}

	if p.peek().Type != TokenLBrace {
		if p.peek().Type == TokenEquals {
			// Not actually a block: rewind isn't supported cheaply here, so
			// this path should not be reached given the caller's lookahead.
			return nil, false
		}
		p.addError("expected '{' after nested block header", p.peek(), true)
		return nil, false
	}
	p.advance()

	block := &TerraformBlock{
		BlockType:  blockType,
		Labels:     labels,
		Attributes: map[string]*HclExpression{},
		Location: diagnostic.Location{
			File: p.file, LineStart: startTok.Line, ColumnStart: startTok.Column,
		},
	}

	p.parseBody(block, depth)

	endTok := p.peek()
	if endTok.Type == TokenRBrace {
		p.advance()
	} else {
		p.addError("unterminated nested block", endTok, true)
		p.seekToRBrace()
	}
	block.Location.LineEnd = endTok.Line
	block.Location.ColumnEnd = endTok.Column

	return block, true
}

// seekToRBrace recovers from an unterminated block by scanning forward to
// the next matching RBRACE at the current nesting level.
func (p *BlockParser) seekToRBrace() {
	depth := 0
	for {
		t := p.peek()
		if t.Type == TokenEOF {
			return
		}
		if t.Type == TokenLBrace {
			depth++
		}
		if t.Type == TokenRBrace {
			if depth == 0 {
				p.advance()
				return
			}
			depth--
		}
		p.advance()
	}
}

// readExpressionText reconstructs the contiguous source text of an
// expression: brace/bracket/paren depth-tracking, terminating on NEWLINE,
// RBRACE (at depth 0), or COMMA (at depth 0).
func (p *BlockParser) readExpressionText() string {
	depth := 0
	var sb strings.Builder
	prevNeedsSpace := false

	for {
		tok := p.peek()
		switch tok.Type {
		case TokenEOF:
			return sb.String()
		case TokenNewline:
			if depth == 0 {
				p.advance()
				return sb.String()
			}
		case TokenRBrace:
			if depth == 0 {
				return sb.String()
			}
			depth--
		case TokenComma:
			if depth == 0 {
				return sb.String()
			}
		case TokenLBrace, TokenLBracket, TokenLParen:
			depth++
		case TokenRBracket, TokenRParen:
			depth--
		}

		p.advance()
		writeTokenText(&sb, tok, &prevNeedsSpace)
	}
}

func writeTokenText(sb *strings.Builder, tok Token, prevNeedsSpace *bool) {
	noSpaceBefore := tok.Type == TokenDot || tok.Type == TokenComma ||
		tok.Type == TokenRParen || tok.Type == TokenRBracket || tok.Type == TokenRBrace ||
		tok.Type == TokenLParen || tok.Type == TokenLBracket

	if sb.Len() > 0 && *prevNeedsSpace && !noSpaceBefore {
		sb.WriteByte(' ')
	}
	sb.WriteString(tok.Value)

	*prevNeedsSpace = tok.Type != TokenDot && tok.Type != TokenLParen && tok.Type != TokenLBracket
}
