package sanitize

import (
	"errors"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/ByLCY/folio/csscolor"
	"github.com/ByLCY/folio/dom"
)

// Substitution records one rewritten property.
type Substitution struct {
	Node     string `json:"node"`
	Property string `json:"property"`
	From     string `json:"from"`
	To       string `json:"to"`
	// Matched is false when no class rule applied and the generic default was used.
	Matched bool `json:"matched"`
}

// Report summarises a Prepare pass.
type Report struct {
	Visited       int            `json:"visited"`
	Substitutions []Substitution `json:"substitutions"`
}

// Misses counts substitutions that fell back to a generic default.
func (r Report) Misses() int {
	return lo.CountBy(r.Substitutions, func(s Substitution) bool { return !s.Matched })
}

// Prepare walks root (a capture clone) and replaces every unsupported color
// function in the checked properties with a fallback from table. It mutates
// root in place and must run before rasterization.
func Prepare(root *dom.Node, table *RuleTable) (Report, error) {
	if root == nil {
		return Report{}, errors.New("sanitize: nil root")
	}
	if table == nil {
		table = MustDefault()
	}
	props := lo.Keys(Properties)
	sort.Strings(props)

	var rep Report
	root.Walk(func(n *dom.Node) bool {
		rep.Visited++
		if n.Style == nil {
			return true
		}
		for _, p := range props {
			v := n.Style.Get(p)
			if v == "" {
				continue
			}
			fixed, matched, changed := rewrite(v, n, Properties[p], table)
			if !changed {
				continue
			}
			n.Style.Set(p, fixed)
			rep.Substitutions = append(rep.Substitutions, Substitution{
				Node:     describe(n),
				Property: p,
				From:     v,
				To:       fixed,
				Matched:  matched,
			})
		}
		return true
	})
	return rep, nil
}

// rewrite replaces unsupported functions inside v. Only the function token
// is swapped so shadow offsets and blur radii survive.
func rewrite(v string, n *dom.Node, g Group, table *RuleTable) (string, bool, bool) {
	bad := csscolor.Unsupported(v)
	if len(bad) == 0 {
		return v, false, false
	}
	fallback, matched := table.Fallback(n, g)
	var sb strings.Builder
	last := 0
	for _, f := range bad {
		sb.WriteString(v[last:f.Start])
		sb.WriteString(fallback)
		last = f.End
	}
	sb.WriteString(v[last:])
	return sb.String(), matched, true
}

func describe(n *dom.Node) string {
	var sb strings.Builder
	sb.WriteString(n.Tag)
	if n.ID != "" {
		sb.WriteString("#")
		sb.WriteString(n.ID)
	}
	for _, c := range n.Classes {
		sb.WriteString(".")
		sb.WriteString(c)
	}
	return sb.String()
}
