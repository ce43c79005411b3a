package output

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/titan-sim/titan/internal/features"
	"github.com/titan-sim/titan/internal/model"
)

// ComponentReport writes one row per connected component of the partnership
// graph per reported step.
type ComponentReport struct {
	out *tsvFile
}

var componentHeader = []string{
	"run_id", "t", "component", "agents", "relationships", "hiv", "prep", "haart", "density",
}

// NewComponentReport creates the report file at path.
func NewComponentReport(path string) (*ComponentReport, error) {
	out, err := createTSV(path)
	if err != nil {
		return nil, err
	}
	return &ComponentReport{out: out}, nil
}

// Report implements model.Reporter.
func (r *ComponentReport) Report(m *model.Model) error {
	pop := m.Pop
	if pop.Graph == nil {
		return fmt.Errorf("component report: %w", features.ErrGraphRequired)
	}
	rels := make(map[string]int)
	for rel := range pop.Relationships.All() {
		rels[rel.Agent1.Component]++
	}

	rows := make([][]string, 0, len(pop.Components))
	for i, comp := range pop.Components {
		label := strconv.Itoa(i)
		ids := make([]int64, len(comp))
		var hiv, prep, haart int
		for j, a := range comp {
			ids[j] = a.ID
			if a.HIV.Active {
				hiv++
			}
			if a.PrEP.Active {
				prep++
			}
			if a.HAART.Active {
				haart++
			}
		}
		rows = append(rows, []string{
			m.RunID, strconv.Itoa(m.Time), label,
			strconv.Itoa(len(comp)), strconv.Itoa(rels[label]),
			strconv.Itoa(hiv), strconv.Itoa(prep), strconv.Itoa(haart),
			strconv.FormatFloat(pop.Graph.Density(ids), 'f', 6, 64),
		})
	}
	return r.out.write(componentHeader, rows)
}

// Close implements model.Reporter.
func (r *ComponentReport) Close() error { return r.out.Close() }

// EdgeListReport writes the relationship list of every reported step to
// <dir>/edges_<t>.tsv.
type EdgeListReport struct {
	dir string
}

// NewEdgeListReport returns a reporter writing into dir.
func NewEdgeListReport(dir string) *EdgeListReport { return &EdgeListReport{dir: dir} }

var edgeHeader = []string{"agent1", "agent2", "bond_type", "duration"}

// Report implements model.Reporter.
func (r *EdgeListReport) Report(m *model.Model) error {
	out, err := createTSV(filepath.Join(r.dir, fmt.Sprintf("edges_%d.tsv", m.Time)))
	if err != nil {
		return err
	}
	rows := make([][]string, 0, m.Pop.Relationships.Len())
	for rel := range m.Pop.Relationships.All() {
		rows = append(rows, []string{
			strconv.FormatInt(rel.Agent1.ID, 10),
			strconv.FormatInt(rel.Agent2.ID, 10),
			rel.BondType,
			strconv.Itoa(rel.Duration),
		})
	}
	if err := out.write(edgeHeader, rows); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Close implements model.Reporter.
func (r *EdgeListReport) Close() error { return nil }
