package dom

import "strings"

// Style holds resolved ("computed") CSS properties keyed by lower-case name.
type Style map[string]string

// Get returns the value of property p, or "".
func (s Style) Get(p string) string {
	if s == nil {
		return ""
	}
	return s[strings.ToLower(p)]
}

// Set assigns property p. Setting an empty value removes it.
func (s Style) Set(p, v string) {
	p = strings.ToLower(p)
	if v == "" {
		delete(s, p)
		return
	}
	s[p] = v
}

// Clone copies the style map.
func (s Style) Clone() Style {
	out := make(Style, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
