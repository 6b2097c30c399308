package condition

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// tokenDef tokenizes a condition string. Order matters: participle's
// simple lexer tries rules in declaration order and takes the first one
// that matches at the current position, so multi-word operators
// ("NOT CONTAINS", "IS NOT NULL") and keywords must be listed before the
// generic Path pattern they would otherwise be swallowed by — the same
// rule the pack's ABAC policy DSL lexer documents for its own operator
// table.
var tokenDef = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'([^']|'')*'`},
	{Name: "Number", Pattern: `-?[0-9]+(\.[0-9]+)?`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Comma", Pattern: `,`},
	{Name: "OpGe", Pattern: `>=`},
	{Name: "OpLe", Pattern: `<=`},
	{Name: "OpNe", Pattern: `!=`},
	{Name: "OpDiamond", Pattern: `<>`},
	{Name: "OpGt", Pattern: `>`},
	{Name: "OpLt", Pattern: `<`},
	{Name: "OpEq", Pattern: `=`},
	{Name: "KwNotContains", Pattern: `(?i)\bNOT\s+CONTAINS\b`},
	{Name: "KwNotStartsWith", Pattern: `(?i)\bNOT\s+STARTSWITH\b`},
	{Name: "KwNotEndsWith", Pattern: `(?i)\bNOT\s+ENDSWITH\b`},
	{Name: "KwNotIn", Pattern: `(?i)\bNOT\s+IN\b`},
	{Name: "KwIsNotNull", Pattern: `(?i)\bIS\s+NOT\s+NULL\b`},
	{Name: "KwIsNull", Pattern: `(?i)\bIS\s+NULL\b`},
	{Name: "KwAnd", Pattern: `(?i)\bAND\b`},
	{Name: "KwOr", Pattern: `(?i)\bOR\b`},
	{Name: "KwNot", Pattern: `(?i)\bNOT\b`},
	{Name: "KwContains", Pattern: `(?i)\bCONTAINS\b`},
	{Name: "KwStartsWith", Pattern: `(?i)\bSTARTSWITH\b`},
	{Name: "KwEndsWith", Pattern: `(?i)\bENDSWITH\b`},
	{Name: "KwMatch", Pattern: `(?i)\bMATCH\b`},
	{Name: "KwLike", Pattern: `(?i)\bLIKE\b`},
	{Name: "KwIn", Pattern: `(?i)\bIN\b`},
	{Name: "KwTrue", Pattern: `(?i)\btrue\b`},
	{Name: "KwFalse", Pattern: `(?i)\bfalse\b`},
	{Name: "Path", Pattern: `[A-Za-z_][A-Za-z0-9_]*(\[[0-9]+\])?(\.[A-Za-z_][A-Za-z0-9_]*(\[[0-9]+\])?)*`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Unknown", Pattern: `.`},
})

var tokenSymbols = tokenDef.Symbols()

// token wraps a lexed participle token with its symbolic name for easy
// switch-based parsing.
type token struct {
	lexer.Token
	name string
}

var symbolNames = invertSymbols(tokenSymbols)

func invertSymbols(symbols map[string]lexer.TokenType) map[lexer.TokenType]string {
	out := make(map[lexer.TokenType]string, len(symbols))
	for name, t := range symbols {
		out[t] = name
	}
	return out
}

// tokenize lexes expr into a flat token slice, discarding whitespace.
func tokenize(expr string) ([]token, error) {
	lex, err := tokenDef.Lex("condition", strings.NewReader(expr))
	if err != nil {
		return nil, err
	}
	var tokens []token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, err
		}
		if tok.EOF() {
			break
		}
		name := symbolNames[tok.Type]
		if name == "Whitespace" {
			continue
		}
		tokens = append(tokens, token{Token: tok, name: name})
	}
	return tokens, nil
}
