package hcl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestTokenize_NeverFailsOnGarbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte(""),
		[]byte("\x00\x01\x02"),
		[]byte("resource \"aws_instance\" \"web\" { ami = §€ }"),
		[]byte(`"unterminated string`),
		[]byte("<<EOF\nno closing marker\n"),
	}
	for _, in := range inputs {
		tokens := Tokenize(in)
		require.NotEmpty(t, tokens)
		require.Equal(t, TokenEOF, tokens[len(tokens)-1].Type)
	}
}

func TestTokenize_BasicBlock(t *testing.T) {
	src := `resource "aws_instance" "web" {
  ami = "ami-123"
}
`
	tokens := Tokenize([]byte(src))
	types := tokenTypes(tokens)

	require.Contains(t, types, TokenIdentifier)
	require.Contains(t, types, TokenString)
	require.Contains(t, types, TokenLBrace)
	require.Contains(t, types, TokenRBrace)
	require.Contains(t, types, TokenEquals)
	require.Equal(t, TokenEOF, types[len(types)-1])
}

func TestTokenize_Heredoc(t *testing.T) {
	src := "value = <<-EOF\n  line one\n  line two\n  EOF\n"
	tokens := Tokenize([]byte(src))

	var found bool
	for _, tok := range tokens {
		if tok.Type == TokenHeredoc {
			found = true
			require.Contains(t, tok.Value, "line one")
		}
	}
	require.True(t, found, "expected a heredoc token")
}

func TestTokenize_Number(t *testing.T) {
	src := `count = 3.14e-2`
	tokens := Tokenize([]byte(src))

	var numbers []string
	for _, tok := range tokens {
		if tok.Type == TokenNumber {
			numbers = append(numbers, tok.Value)
		}
	}
	require.Equal(t, []string{"3.14e-2"}, numbers)
}

func TestTokenize_KeywordsBoolAndNull(t *testing.T) {
	src := `enabled = true
disabled = false
value = null`
	tokens := Tokenize([]byte(src))

	var bools, nulls int
	for _, tok := range tokens {
		switch tok.Type {
		case TokenBool:
			bools++
		case TokenNull:
			nulls++
		}
	}
	require.Equal(t, 2, bools)
	require.Equal(t, 1, nulls)
}

func TestTokenize_StringEscapePreservesClosingQuote(t *testing.T) {
	src := `name = "a \"quoted\" value"`
	tokens := Tokenize([]byte(src))

	var strings []string
	for _, tok := range tokens {
		if tok.Type == TokenString {
			strings = append(strings, tok.Value)
		}
	}
	require.Len(t, strings, 1)
	require.Equal(t, `"a \"quoted\" value"`, strings[0])
}

func TestTokenize_LineAndBlockComments(t *testing.T) {
	src := "# a line comment\na = 1 // another\n/* block\ncomment */\nb = 2"
	tokens := Tokenize([]byte(src))

	var idents []string
	for _, tok := range tokens {
		if tok.Type == TokenIdentifier {
			idents = append(idents, tok.Value)
		}
	}
	require.Equal(t, []string{"a", "b"}, idents)
}

func TestTokenize_PreservesLineNumbers(t *testing.T) {
	src := "a = 1\nb = 2\n"
	tokens := Tokenize([]byte(src))

	var bLine int
	for _, tok := range tokens {
		if tok.Type == TokenIdentifier && tok.Value == "b" {
			bLine = tok.Line
		}
	}
	require.Equal(t, 2, bLine)
}
