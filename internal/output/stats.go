// Package output turns model state into reports: stratified counters written
// as TSV or into SQLite, per-component network statistics, edge lists and a
// Prometheus metrics textfile.
package output

import (
	"fmt"
	"slices"
	"strings"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/model"
	"github.com/titan-sim/titan/internal/params"
)

// ExitKeys are the counters fed by agents that left the population during the
// reported step.
var ExitKeys = []string{"death", "deaths_hiv", "age_out", "drop_out"}

// Stratum is one combination of class values and its counters.
type Stratum struct {
	Values []string
	Counts map[string]int
}

// Stats holds the counters of one step, stratified by outputs.classes. Every
// combination of known class values has a stratum, in class declaration order,
// even when it has no agents.
type Stats struct {
	T       int
	Classes []string
	Keys    []string
	Strata  []*Stratum

	index map[string]*Stratum
}

// Collect computes the stratified counters of the model's current step.
func Collect(m *model.Model) (*Stats, error) {
	classes := m.Params.Strings("outputs.classes")
	for _, c := range classes {
		if !agent.ValidAttr(c) {
			return nil, &params.ConfigError{Path: "outputs.classes", Err: params.ErrInvalidParam, Reason: fmt.Sprintf("unknown agent attribute %q", c)}
		}
	}
	s := &Stats{
		T:       m.Time,
		Classes: classes,
		Keys:    append(append([]string{"agents"}, m.Features.StatKeys()...), ExitKeys...),
		index:   make(map[string]*Stratum),
	}

	domains := make([][]string, len(classes))
	for i, c := range classes {
		domains[i] = domain(m, c)
	}
	for _, values := range product(domains) {
		s.add(values)
	}

	for a := range m.Pop.All.All() {
		st := s.stratum(a)
		st.Counts["agents"]++
		m.Features.SetStats(st.Counts, a, m.Time)
	}
	for _, e := range m.Exits {
		st := s.stratum(e.Agent)
		switch e.Kind {
		case model.ExitDeath:
			st.Counts["death"]++
			if e.Agent.HIV.Active {
				st.Counts["deaths_hiv"]++
			}
		case model.ExitAgeOut:
			st.Counts["age_out"]++
		case model.ExitDropOut:
			st.Counts["drop_out"]++
		}
	}
	return s, nil
}

// Total sums key over every stratum.
func (s *Stats) Total(key string) int {
	n := 0
	for _, st := range s.Strata {
		n += st.Counts[key]
	}
	return n
}

// Lookup returns the stratum with the given class values, or nil.
func (s *Stats) Lookup(values ...string) *Stratum {
	return s.index[strings.Join(values, "\x00")]
}

func (s *Stats) add(values []string) *Stratum {
	st := &Stratum{Values: values, Counts: make(map[string]int, len(s.Keys))}
	for _, k := range s.Keys {
		st.Counts[k] = 0
	}
	s.Strata = append(s.Strata, st)
	s.index[strings.Join(values, "\x00")] = st
	return st
}

func (s *Stats) stratum(a *agent.Agent) *Stratum {
	values := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		values[i] = a.StrAttr(c)
	}
	if st := s.Lookup(values...); st != nil {
		return st
	}
	return s.add(values)
}

// domain lists the values of a class. Declared classes come from the
// parameters and flags are always false and true, so empty strata are still
// reported. Open-ended attributes (age, component) come from the agents
// present, sorted.
func domain(m *model.Model, class string) []string {
	p := m.Params
	if v, _ := agent.New(0, nil).Attr(class); v != nil {
		if _, ok := v.(bool); ok {
			return []string{"false", "true"}
		}
	}
	switch class {
	case "race":
		return p.Sub("classes.races").Keys()
	case "sex_type":
		return p.Sub("classes.sex_types").Keys()
	case "drug_type":
		return p.Strings("classes.drug_types")
	case "sex_role":
		return params.SexRoles
	case "location", "location.name":
		var names []string
		for _, loc := range m.Pop.Geography.All() {
			names = append(names, loc.Name)
		}
		return names
	case "location.category":
		var cats []string
		for _, loc := range m.Pop.Geography.All() {
			if !slices.Contains(cats, loc.Category) {
				cats = append(cats, loc.Category)
			}
		}
		return cats
	}
	seen := make(map[string]bool)
	var values []string
	for a := range m.Pop.All.All() {
		if v := a.StrAttr(class); !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	slices.Sort(values)
	return values
}

// product returns every combination of one value per domain.
func product(domains [][]string) [][]string {
	out := [][]string{{}}
	for _, d := range domains {
		next := make([][]string, 0, len(out)*len(d))
		for _, prefix := range out {
			for _, v := range d {
				next = append(next, append(slices.Clone(prefix), v))
			}
		}
		out = next
	}
	return out
}

// collector shares one Collect per step between reporters.
type collector struct {
	m     *model.Model
	stats *Stats
}

func (c *collector) collect(m *model.Model) (*Stats, error) {
	if c.stats != nil && c.m == m && c.stats.T == m.Time {
		return c.stats, nil
	}
	s, err := Collect(m)
	if err != nil {
		return nil, err
	}
	c.m, c.stats = m, s
	return s, nil
}
