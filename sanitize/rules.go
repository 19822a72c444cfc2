// Package sanitize rewrites color values the rasterizer cannot interpret
// before a capture clone is drawn.
package sanitize

import (
	"fmt"
	"strings"

	"github.com/ByLCY/folio/csscolor"
	"github.com/ByLCY/folio/dom"
)

// Group classifies checked properties for fallback lookup.
type Group string

const (
	GroupText       Group = "text"
	GroupBackground Group = "background"
	GroupBorder     Group = "border"
)

// Properties lists every checked property and its fallback group.
var Properties = map[string]Group{
	"color":            GroupText,
	"fill":             GroupText,
	"stroke":           GroupText,
	"box-shadow":       GroupText,
	"text-shadow":      GroupText,
	"background":       GroupBackground,
	"background-color": GroupBackground,
	"border-color":     GroupBorder,
	"outline-color":    GroupBorder,
}

// Rule maps a semantic class and property group to a fixed color.
type Rule struct {
	Class string `yaml:"class" json:"class"`
	Group Group  `yaml:"group" json:"group"`
	Color string `yaml:"color" json:"color"`
}

// Generic defaults applied when no rule matches.
var defaultColors = map[Group]string{
	GroupText:       "#1e293b",
	GroupBackground: "#ffffff",
	GroupBorder:     "#e2e8f0",
}

// DefaultRules covers the semantic classes used by the back-office pages.
func DefaultRules() []Rule {
	return []Rule{
		{Class: "danger", Group: GroupText, Color: "#dc2626"},
		{Class: "danger", Group: GroupBackground, Color: "#fee2e2"},
		{Class: "danger", Group: GroupBorder, Color: "#fca5a5"},
		{Class: "success", Group: GroupText, Color: "#15803d"},
		{Class: "success", Group: GroupBackground, Color: "#16a34a"},
		{Class: "warning", Group: GroupText, Color: "#b45309"},
		{Class: "warning", Group: GroupBackground, Color: "#fef3c7"},
		{Class: "info", Group: GroupText, Color: "#1d4ed8"},
		{Class: "info", Group: GroupBackground, Color: "#dbeafe"},
		{Class: "muted", Group: GroupText, Color: "#64748b"},
		{Class: "muted", Group: GroupBackground, Color: "#f1f5f9"},
	}
}

// RuleTable resolves fallback colors. The zero value is not usable; build
// one with NewRuleTable.
type RuleTable struct {
	rules    []Rule
	defaults map[Group]string
}

// NewRuleTable validates rules and defaults. A nil defaults map keeps the
// built-in dark slate / white / light border defaults.
func NewRuleTable(rules []Rule, defaults map[Group]string) (*RuleTable, error) {
	t := &RuleTable{defaults: map[Group]string{}}
	for g, c := range defaultColors {
		t.defaults[g] = c
	}
	for g, c := range defaults {
		if _, ok := defaultColors[g]; !ok {
			return nil, fmt.Errorf("sanitize: unknown group %q", g)
		}
		if !csscolor.ValidHex(c) {
			return nil, fmt.Errorf("sanitize: default %s color %q is not a hex color", g, c)
		}
		t.defaults[g] = strings.ToLower(c)
	}
	for i, r := range rules {
		if strings.TrimSpace(r.Class) == "" {
			return nil, fmt.Errorf("sanitize: rule %d has no class", i)
		}
		if _, ok := defaultColors[r.Group]; !ok {
			return nil, fmt.Errorf("sanitize: rule %d has unknown group %q", i, r.Group)
		}
		if !csscolor.ValidHex(r.Color) {
			return nil, fmt.Errorf("sanitize: rule %d color %q is not a hex color", i, r.Color)
		}
		r.Color = strings.ToLower(r.Color)
		t.rules = append(t.rules, r)
	}
	return t, nil
}

// MustDefault returns the table built from DefaultRules.
func MustDefault() *RuleTable {
	t, err := NewRuleTable(DefaultRules(), nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Fallback returns the color for property group g on node n and whether a
// class rule matched (false means the generic default was used).
func (t *RuleTable) Fallback(n *dom.Node, g Group) (string, bool) {
	for _, r := range t.rules {
		if r.Group == g && n.HasClass(r.Class) {
			return r.Color, true
		}
	}
	return t.defaults[g], false
}

// Default returns the generic default color of group g.
func (t *RuleTable) Default(g Group) string { return t.defaults[g] }
