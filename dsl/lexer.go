package dsl

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// 颜色函数（含 oklch 等渲染器不支持的写法）整体作为一个 token，便于后续清洗。
var reportLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Newline", Pattern: `\n+`},
	{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
	{Name: "LineComment", Pattern: `//[^\n]*`},
	{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})`},
	{Name: "HashComment", Pattern: `#[^\n]*`},
	{Name: "Number", Pattern: `(?:\d+\.\d+|\d+)(?:px|pt|mm|cm|in|%|x)?`},
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "ColorFunc", Pattern: `(?i:rgba?|hsla?|oklch|oklab|lab|lch|hwb|color-mix|color)\((?:[^()\n]|\([^()\n]*\))*\)`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
	{Name: "Symbol", Pattern: `[][(),.=+\-*/%<>!?;:]`},
	{Name: "LBrace", Pattern: `{`},
	{Name: "RBrace", Pattern: `}`},
})

var (
	tokenNames = invertSymbols(reportLexer.Symbols())
	tokNewline = mustTokenType("Newline")
	tokLBrace  = mustTokenType("LBrace")
	tokRBrace  = mustTokenType("RBrace")
	tokSymbol  = mustTokenType("Symbol")
	tokString  = mustTokenType("String")
)

// next 读取下一个 token 并转成 Lexeme；EOF 时让 participle 尝试下一分支。
func next(lex *lexer.PeekingLexer) (*Lexeme, error) {
	tok := lex.Next()
	if tok.EOF() {
		return nil, participle.NextMatch
	}
	name, ok := tokenNames[tok.Type]
	if !ok {
		name = fmt.Sprintf("#%d", tok.Type)
	}
	val := tok.Value
	if tok.Type == tokString {
		unquoted, err := strconv.Unquote(tok.Value)
		if err != nil {
			return nil, err
		}
		val = unquoted
	}
	return &Lexeme{Type: name, Value: val, Raw: tok.Value, Pos: tok.Pos}, nil
}

// endsArg 命令参数在换行、花括号与分号处结束。
func endsArg(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	switch tok.Type {
	case tokNewline, tokRBrace, tokLBrace:
		return true
	case tokSymbol:
		return tok.Value == ";"
	}
	return false
}

// endsExpr 表达式在括号外遇到换行、花括号、分号或逗号时结束；`]` 只在方括号外结束。
func endsExpr(tok *lexer.Token, parens, brackets int) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	nested := parens > 0 || brackets > 0
	switch tok.Type {
	case tokNewline, tokRBrace, tokLBrace:
		return !nested
	case tokSymbol:
		switch tok.Value {
		case ";", ",":
			return !nested
		case "]":
			return brackets == 0
		}
	}
	return false
}

func invertSymbols(symbols map[string]lexer.TokenType) map[lexer.TokenType]string {
	out := make(map[lexer.TokenType]string, len(symbols))
	for name, tt := range symbols {
		out[tt] = name
	}
	return out
}

func mustTokenType(name string) lexer.TokenType {
	tt, ok := reportLexer.Symbols()[name]
	if !ok {
		panic(fmt.Sprintf("token %s not defined", name))
	}
	return tt
}
