package dsl

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{4}|[0-9A-Fa-f]{3})\b`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `-?(?:\d+\.\d+|\.\d+|\d+)(?:pt|mm|cm|in|%|x)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[][(),.=+\-*/%<>!?;:$]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	// kindNames maps token types back to their rule names for Lexeme.Type.
	kindNames = map[lexer.TokenType]string{}

	newlineKind = kind("Newline")
	lbraceKind  = kind("LBrace")
	rbraceKind  = kind("RBrace")
	symbolKind  = kind("Symbol")
	stringKind  = kind("String")

	documentParser = participle.MustBuild[Document](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
		participle.UseLookahead(2),
	)
)

func init() {
	for name, t := range dslLexer.Symbols() {
		kindNames[t] = name
	}
}

func kind(name string) lexer.TokenType {
	t, ok := dslLexer.Symbols()[name]
	if !ok {
		panic("dsl: undefined token rule " + name)
	}
	return t
}

// Document is the root AST node of a galley document description.
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'doc' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section is one top-level section. meta and resources are plain blocks.
type Section struct {
	Meta      *Block       `parser:"  'meta' @@"`
	Resources *Block       `parser:"| 'resources' @@"`
	Page      *PageSection `parser:"| @@"`
}

// Kind names the section for diagnostics.
func (s *Section) Kind() string {
	switch {
	case s != nil && s.Meta != nil:
		return "meta"
	case s != nil && s.Resources != nil:
		return "resources"
	case s != nil && s.Page != nil:
		return "page"
	}
	return "unknown"
}

// PageSection describes the page geometry and the flows laid out on it.
type PageSection struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Spec  PageSpec       `parser:"'page' @@"`
	Block *Block         `parser:"@@"`
}

// PageSpec stores header tokens, e.g. `A4 landscape margin 20mm columns 2 gap 8mm`.
type PageSpec struct {
	Size   string    `parser:"@Ident"`
	Params []*Lexeme `parser:"@@*"`
}

// Block is a braced statement list; statements end at a newline or ';'.
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement is exactly one of its fields.
type Statement struct {
	Assignment *Assignment  `parser:"  @@"`
	Command    *Command     `parser:"| @@"`
	Text       *TextLiteral `parser:"| @@"`
}

// Assignment is a `key: value` property.
type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident ':'"`
	Value *Value         `parser:"Newline* @@"`
}

// Command is a layout instruction with positional arguments and an optional body.
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Lexeme      `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

// TextLiteral is a raw string statement within a block.
type TextLiteral struct {
	Value StringLiteral `parser:"@String"`
}

// Value is one property value; Expr catches unquoted words and paths.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Array  *ArrayValue    `parser:"| @@"`
	Object *InlineObject  `parser:"| @@"`
	Expr   *Expression    `parser:"| @@"`
}

// ArrayValue captures `[ ... ]` expressions; arrays may nest.
type ArrayValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( (',' | ';' | Newline+) Newline* @@ )* )? Newline* ']'"`
}

// InlineObject is a `{ key: value, ... }` map used inside values.
type InlineObject struct {
	Entries []*Assignment `parser:"'{' Newline* ( @@ Newline* ( (';' | ',' | Newline+) Newline* @@ Newline* )* )? Newline* '}'"`
}

// Expression records raw tokens of an unquoted value such as `justify` or `data.title`.
// It ends at a top-level separator; brackets and parentheses nest.
type Expression struct {
	Parts []*Lexeme
}

// nesting tracks open parentheses and brackets while scanning an expression.
type nesting struct{ paren, bracket int }

func (n *nesting) track(raw string) {
	switch raw {
	case "(":
		n.paren++
	case ")":
		n.paren = max(n.paren-1, 0)
	case "[":
		n.bracket++
	case "]":
		n.bracket = max(n.bracket-1, 0)
	}
}

// ends reports whether tok terminates the expression at the current depth.
func (n nesting) ends(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	flat := n.paren == 0 && n.bracket == 0
	switch {
	case tok.Type == newlineKind || tok.Type == lbraceKind || tok.Type == rbraceKind:
		return flat
	case tok.Type != symbolKind:
		return false
	case tok.Value == ";" || tok.Value == ",":
		return flat
	case tok.Value == "]":
		return n.bracket == 0
	}
	return false
}

// Parse implements participle.Parseable.
func (e *Expression) Parse(lex *lexer.PeekingLexer) error {
	var depth nesting
	for !depth.ends(lex.Peek()) {
		l, err := take(lex)
		if err != nil {
			return err
		}
		depth.track(l.Raw)
		e.Parts = append(e.Parts, l)
	}
	if len(e.Parts) == 0 {
		return participle.NextMatch
	}
	return nil
}

// Lexeme is a single token kept verbatim, used for command arguments and expression parts.
// Value holds the unquoted text of strings.
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse implements participle.Parseable; arguments end at a newline, a brace or ';'.
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	tok := lex.Peek()
	if tok == nil || tok.EOF() || tok.Type == newlineKind || tok.Type == lbraceKind ||
		tok.Type == rbraceKind || (tok.Type == symbolKind && tok.Value == ";") {
		return participle.NextMatch
	}
	next, err := take(lex)
	if err != nil {
		return err
	}
	*l = *next
	return nil
}

// take consumes the next token as a Lexeme.
func take(lex *lexer.PeekingLexer) (*Lexeme, error) {
	tok := lex.Next()
	if tok.EOF() {
		return nil, participle.NextMatch
	}
	l := &Lexeme{Type: kindNames[tok.Type], Value: tok.Value, Raw: tok.Value, Pos: tok.Pos}
	if tok.Type == stringKind {
		v, err := strconv.Unquote(tok.Value)
		if err != nil {
			return nil, err
		}
		l.Value = v
	}
	return l, nil
}

// StringLiteral is a string token with Go escape rules applied.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses a document from r; filename is only used in error positions.
func Parse(filename string, r io.Reader) (*Document, error) {
	return documentParser.Parse(filename, r)
}

// ParseString parses a document from a string.
func ParseString(input string) (*Document, error) {
	return documentParser.ParseString("", input)
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取文档 %s 失败: %w", path, err)
	}
	defer f.Close()
	doc, err := Parse(path, f)
	if err != nil {
		return nil, fmt.Errorf("解析文档 %s 失败: %w", path, err)
	}
	return doc, nil
}
