package dsl

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Pages returns the page sections in document order.
func (d *Document) Pages() []*PageSection {
	var out []*PageSection
	for _, s := range d.Sections {
		if s != nil && s.Page != nil {
			out = append(out, s.Page)
		}
	}
	return out
}

// Meta returns the merged meta block statements.
func (d *Document) Meta() []*Assignment {
	var out []*Assignment
	for _, s := range d.Sections {
		if s != nil && s.Meta != nil {
			out = append(out, s.Meta.Assignments()...)
		}
	}
	return out
}

// Resources returns the commands of every resources section.
func (d *Document) Resources() []*Command {
	var out []*Command
	for _, s := range d.Sections {
		if s != nil && s.Resources != nil {
			out = append(out, s.Resources.Commands()...)
		}
	}
	return out
}

// Assignments returns the key/value statements of the block.
func (b *Block) Assignments() []*Assignment {
	if b == nil {
		return nil
	}
	var out []*Assignment
	for _, st := range b.Statements {
		if st.Assignment != nil {
			out = append(out, st.Assignment)
		}
	}
	return out
}

// Commands returns the command statements of the block.
func (b *Block) Commands() []*Command {
	if b == nil {
		return nil
	}
	var out []*Command
	for _, st := range b.Statements {
		if st.Command != nil {
			out = append(out, st.Command)
		}
	}
	return out
}

// Lookup returns the last assignment of key, later ones win.
func (b *Block) Lookup(key string) (*Value, bool) {
	var found *Value
	for _, a := range b.Assignments() {
		if a.Key == key {
			found = a.Value
		}
	}
	return found, found != nil
}

// Properties flattens the block assignments to strings.
func (b *Block) Properties() map[string]string {
	out := map[string]string{}
	for _, a := range b.Assignments() {
		out[a.Key] = a.Value.Text()
	}
	return out
}

// Text returns the value as a plain string; arrays are joined with ", ".
func (v *Value) Text() string {
	if v == nil {
		return ""
	}
	switch {
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Expr != nil:
		return v.Expr.String()
	case v.Array != nil:
		return strings.Join(v.Strings(), ", ")
	case v.Object != nil:
		parts := make([]string, 0, len(v.Object.Entries))
		for _, e := range v.Object.Entries {
			parts = append(parts, e.Key+": "+e.Value.Text())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// Strings returns the textual items of an array value, or the single value itself.
func (v *Value) Strings() []string {
	if v == nil {
		return nil
	}
	if v.Array == nil {
		if s := v.Text(); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(v.Array.Values))
	for _, item := range v.Array.Values {
		out = append(out, item.Text())
	}
	return out
}

// Items returns the elements of an array value.
func (v *Value) Items() []*Value {
	if v == nil || v.Array == nil {
		return nil
	}
	return v.Array.Values
}

// String joins expression tokens; words are separated by a space, symbols are glued.
func (e *Expression) String() string {
	var b strings.Builder
	for i, p := range e.Parts {
		if i > 0 && p.Type == "Ident" && e.Parts[i-1].Type == "Ident" {
			b.WriteByte(' ')
		}
		b.WriteString(p.Value)
	}
	return b.String()
}

// Errorf prefixes an error with the command position; %w is supported.
func (c *Command) Errorf(format string, args ...any) error {
	return positioned(c.Pos, c.Name, fmt.Errorf(format, args...))
}

// Errorf prefixes an error with the assignment position; %w is supported.
func (a *Assignment) Errorf(format string, args ...any) error {
	return positioned(a.Pos, a.Key, fmt.Errorf(format, args...))
}

func positioned(pos lexer.Position, what string, err error) error {
	if pos.Line == 0 {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%d:%d %s: %w", pos.Line, pos.Column, what, err)
}
