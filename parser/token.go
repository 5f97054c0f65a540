package parser

import "github.com/yaraeng/yarago/ast"

// Kind identifies the lexical class of a Token.
type Kind int

const (
	EOF Kind = iota
	ERROR

	IDENT        // bare identifier
	STRING_IDENT // $name or $ (anonymous) or $prefix*
	COUNT_IDENT  // #name
	OFFSET_IDENT // @name
	LENGTH_IDENT // !name

	INT_LIT
	FLOAT_LIT
	STRING_LIT // quoted text, escapes already resolved
	HEX_BLOCK  // raw text between { and }, braces stripped
	REGEX_LIT  // pattern and flags joined by a NUL byte, slashes stripped (see splitRegexText)

	// keywords
	KW_IMPORT
	KW_RULE
	KW_PRIVATE
	KW_GLOBAL
	KW_META
	KW_STRINGS
	KW_CONDITION
	KW_AND
	KW_OR
	KW_NOT
	KW_ANY
	KW_ALL
	KW_NONE
	KW_OF
	KW_THEM
	KW_AT
	KW_IN
	KW_FOR
	KW_FILESIZE
	KW_ENTRYPOINT
	KW_TRUE
	KW_FALSE
	KW_CONTAINS
	KW_ICONTAINS
	KW_STARTSWITH
	KW_ISTARTSWITH
	KW_ENDSWITH
	KW_IENDSWITH
	KW_MATCHES
	KW_IEQUALS

	// punctuation
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	COLON
	COMMA
	DOT
	DOTDOT
	ASSIGN
	EQ
	NEQ
	LT
	LE
	GT
	GE
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	AMP
	PIPE
	CARET
	TILDE
	SHL
	SHR
)

var keywords = map[string]Kind{
	"import":      KW_IMPORT,
	"rule":        KW_RULE,
	"private":     KW_PRIVATE,
	"global":      KW_GLOBAL,
	"meta":        KW_META,
	"strings":     KW_STRINGS,
	"condition":   KW_CONDITION,
	"and":         KW_AND,
	"or":          KW_OR,
	"not":         KW_NOT,
	"any":         KW_ANY,
	"all":         KW_ALL,
	"none":        KW_NONE,
	"of":          KW_OF,
	"them":        KW_THEM,
	"at":          KW_AT,
	"in":          KW_IN,
	"for":         KW_FOR,
	"filesize":    KW_FILESIZE,
	"entrypoint":  KW_ENTRYPOINT,
	"true":        KW_TRUE,
	"false":       KW_FALSE,
	"contains":    KW_CONTAINS,
	"icontains":   KW_ICONTAINS,
	"startswith":  KW_STARTSWITH,
	"istartswith": KW_ISTARTSWITH,
	"endswith":    KW_ENDSWITH,
	"iendswith":   KW_IENDSWITH,
	"matches":     KW_MATCHES,
	"iequals":     KW_IEQUALS,
}

// Token is one lexical unit with its source span.
type Token struct {
	Kind  Kind
	Text  string
	Int   int64
	Float float64
	Span  ast.Span
}

// LexError is a lexical error with a span and a short classification,
// per spec §4.1.
type LexError struct {
	Span  ast.Span
	Class string
	Msg   string
}

func (e *LexError) Error() string { return e.Msg }
