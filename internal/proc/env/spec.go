package env

import (
	"encoding/json"
	"sort"

	apperr "procrun/pkg/errors"
)

// Spec describes how a child environment is derived from the parent's.
// Materialization order is fixed: keep, then unset, then set.
type Spec struct {
	// KeepAll inherits the entire parent environment as a starting point.
	// When false, only the names in Keep are inherited.
	KeepAll bool
	Keep    []string
	Unset   []string
	Set     map[string]string
}

// DefaultSpec keeps the full parent environment.
func DefaultSpec() Spec {
	return Spec{KeepAll: true}
}

// Materialize applies the keep, unset, set pipeline against parent.
func (s Spec) Materialize(parent *Environment) (*Environment, error) {
	env := New()
	if s.KeepAll {
		for name, value := range parent.vars {
			env.vars[name] = value
		}
	} else {
		for _, name := range s.Keep {
			if value, ok := parent.Get(name); ok {
				env.vars[name] = value
			}
		}
	}
	for _, name := range s.Unset {
		env.Unset(name)
	}
	names := make([]string, 0, len(s.Set))
	for name := range s.Set {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := env.Set(name, s.Set[name]); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// Build materializes against the process environment.
func (s Spec) Build() (*Environment, error) {
	return s.Materialize(FromSystem())
}

type specDoc struct {
	Keep  interface{}       `json:"keep"`
	Unset []string          `json:"unset"`
	Set   map[string]string `json:"set"`
}

// MarshalJSON renders the document form: keep is true, false, or a name
// list; unset and set are always present.
func (s Spec) MarshalJSON() ([]byte, error) {
	doc := specDoc{
		Unset: s.Unset,
		Set:   s.Set,
	}
	switch {
	case s.KeepAll:
		doc.Keep = true
	case len(s.Keep) == 0:
		doc.Keep = false
	default:
		doc.Keep = s.Keep
	}
	if doc.Unset == nil {
		doc.Unset = []string{}
	}
	if doc.Set == nil {
		doc.Set = map[string]string{}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON accepts the document form. Missing sections default to
// keep-all with nothing unset or set.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var doc struct {
		Keep  json.RawMessage   `json:"keep"`
		Unset []string          `json:"unset"`
		Set   map[string]string `json:"set"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return apperr.Wrapf(err, apperr.FormatError, "env spec: %v", err)
	}
	*s = DefaultSpec()
	if doc.Keep != nil {
		var all bool
		if err := json.Unmarshal(doc.Keep, &all); err == nil {
			s.KeepAll = all
		} else {
			var names []string
			if err := json.Unmarshal(doc.Keep, &names); err != nil {
				return apperr.Newf(apperr.TypeError, "env keep: expected bool or name list")
			}
			s.KeepAll = false
			s.Keep = names
		}
	}
	s.Unset = doc.Unset
	if doc.Set != nil {
		s.Set = doc.Set
	}
	return nil
}
