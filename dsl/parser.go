// Package dsl parses report templates: a `report` header, optional meta and
// resources sections and one `capture` section holding the element tree.
package dsl

import (
	"errors"
	"fmt"
	"io"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var documentParser = participle.MustBuild[Document](
	participle.Lexer(reportLexer),
	participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
)

// Error is a template error with its source position.
type Error struct {
	Pos lexer.Position
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Pos.Line == 0 {
		return "report: " + e.Msg
	}
	return fmt.Sprintf("report:%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Parse parses a template from r.
func Parse(r io.Reader) (*Document, error) {
	doc, err := documentParser.Parse("", r)
	return doc, wrapParseError(err)
}

// ParseString parses a template from a string.
func ParseString(input string) (*Document, error) {
	doc, err := documentParser.ParseString("", input)
	return doc, wrapParseError(err)
}

func wrapParseError(err error) error {
	if err == nil {
		return nil
	}
	var perr participle.Error
	if errors.As(err, &perr) {
		return &Error{Pos: perr.Position(), Msg: perr.Message(), Err: err}
	}
	return &Error{Msg: err.Error(), Err: err}
}

// Capture returns the first capture section, or nil.
func (d *Document) Capture() *CaptureSection {
	for _, s := range d.Sections {
		if s.Capture != nil {
			return s.Capture
		}
	}
	return nil
}

// MetaAssignments returns every `key: value` of every meta section in order.
func (d *Document) MetaAssignments() []*Assignment {
	var out []*Assignment
	for _, s := range d.Sections {
		if s.Meta == nil || s.Meta.Block == nil {
			continue
		}
		for _, stmt := range s.Meta.Block.Statements {
			if stmt.Assignment != nil {
				out = append(out, stmt.Assignment)
			}
		}
	}
	return out
}

// Resources returns the declarations of every resources section in order.
func (d *Document) Resources() []*Command {
	var out []*Command
	for _, s := range d.Sections {
		if s.Resources != nil {
			out = append(out, s.Resources.Block.Commands()...)
		}
	}
	return out
}
