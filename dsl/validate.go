package dsl

import (
	"errors"
	"fmt"
)

// ErrNoCapture is returned for a template without a capture section.
var ErrNoCapture = errors.New("template has no capture section")

// Elements lists the commands allowed inside a capture section.
var Elements = map[string]bool{
	"section": true,
	"div":     true,
	"row":     true,
	"header":  true,
	"table":   true,
	"cell":    true,
	"text":    true,
	"image":   true,
	"repeat":  true,
	"spacer":  true,
}

// ResourceKinds lists the declarations allowed inside a resources section.
var ResourceKinds = map[string]bool{
	"font":  true,
	"color": true,
	"image": true,
	"style": true,
}

// Validate checks what the grammar cannot: one capture section, known element
// and resource commands, and a path on every repeat. All problems are
// returned together.
func (d *Document) Validate() error {
	var errs []error
	captures := 0
	for _, s := range d.Sections {
		switch {
		case s.Capture != nil:
			captures++
			if captures > 1 {
				errs = append(errs, &Error{Pos: s.Pos, Msg: "only one capture section is allowed"})
				continue
			}
			errs = append(errs, validateElements(s.Capture.Block)...)
		case s.Resources != nil:
			for _, cmd := range s.Resources.Block.Commands() {
				if !ResourceKinds[cmd.Name] {
					errs = append(errs, &Error{Pos: cmd.Pos, Msg: fmt.Sprintf("unknown resource %q", cmd.Name)})
				}
			}
		}
	}
	if captures == 0 {
		errs = append(errs, &Error{Pos: d.Pos, Msg: ErrNoCapture.Error(), Err: ErrNoCapture})
	}
	return errors.Join(errs...)
}

func validateElements(b *Block) []error {
	var errs []error
	for _, cmd := range b.Commands() {
		if !Elements[cmd.Name] {
			errs = append(errs, &Error{Pos: cmd.Pos, Msg: fmt.Sprintf("unknown element %q", cmd.Name)})
			continue
		}
		if cmd.Name == "repeat" && len(cmd.Args) == 0 {
			errs = append(errs, &Error{Pos: cmd.Pos, Msg: "repeat needs a data path"})
		}
		if cmd.Block != nil {
			errs = append(errs, validateElements(cmd.Block)...)
		}
	}
	return errs
}
