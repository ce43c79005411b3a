// Package popio saves a population to two CSV files (agents and
// relationships), optionally bundled into a tar.gz archive with a checksummed
// manifest, and loads it back.
package popio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titan-sim/titan/internal/agent"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/population"
)

const (
	agentsSuffix        = "_agents.csv"
	relationshipsSuffix = "_relationships.csv"
)

var (
	agentColumns = append([]string{
		"id", "location", "race", "sex_type", "drug_type", "sex_role", "age",
		"mean_num_partners", "target_partners",
	}, agent.RecordNames...)

	relationshipColumns = []string{"id", "agent1", "agent2", "duration", "bond_type", "total_sex_acts"}
)

// WriteOptions configures Write.
type WriteOptions struct {
	// ID prefixes the file names.
	ID string
	// Compress bundles the files into <dir>/<ID>.tar.gz.
	Compress bool
}

// Write saves pop under dir and returns the path to load it from: the
// directory, or the archive when compressing.
func Write(pop *population.Population, dir string, opts WriteOptions) (string, error) {
	if opts.ID == "" {
		return "", fmt.Errorf("population id is required")
	}
	agents, err := encodeAgents(pop)
	if err != nil {
		return "", err
	}
	rels, err := encodeRelationships(pop)
	if err != nil {
		return "", err
	}
	files := []archiveFile{
		{name: opts.ID + agentsSuffix, data: agents},
		{name: opts.ID + relationshipsSuffix, data: rels},
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if opts.Compress {
		path := filepath.Join(dir, opts.ID+".tar.gz")
		m := newManifest(opts.ID, pop.All.Len(), pop.Relationships.Len(), files)
		if err := writeArchive(path, m, files); err != nil {
			return "", err
		}
		return path, nil
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0600); err != nil {
			return "", fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return dir, nil
}

// Read loads a population saved by Write from a directory or archive. Agents
// keep their saved feature state: feature InitAgent hooks are not run, but
// AddAgent hooks are, so class counters match the loaded agents.
func Read(path string, p *params.Tree, opts population.Options) (*population.Population, error) {
	agents, rels, err := readFiles(path)
	if err != nil {
		return nil, err
	}
	pop, err := population.NewEmpty(p, opts)
	if err != nil {
		return nil, err
	}
	if err := decodeAgents(pop, agents); err != nil {
		return nil, fmt.Errorf("reading agents: %w", err)
	}
	if err := decodeRelationships(pop, rels); err != nil {
		return nil, fmt.Errorf("reading relationships: %w", err)
	}
	pop.UpdateComponents()
	pop.Logger.Info("population loaded", "path", path, "agents", pop.All.Len(), "relationships", pop.Relationships.Len())
	return pop, nil
}

func readFiles(path string) (agents, rels []byte, err error) {
	if strings.HasSuffix(path, ".tar.gz") {
		files, err := readArchive(path)
		if err != nil {
			return nil, nil, err
		}
		for name, data := range files {
			switch {
			case strings.HasSuffix(name, agentsSuffix):
				agents = data
			case strings.HasSuffix(name, relationshipsSuffix):
				rels = data
			}
		}
		if agents == nil || rels == nil {
			return nil, nil, fmt.Errorf("archive %s is missing population files", path)
		}
		return agents, rels, nil
	}

	matches, err := filepath.Glob(filepath.Join(path, "*"+agentsSuffix))
	if err != nil {
		return nil, nil, err
	}
	if len(matches) != 1 {
		return nil, nil, fmt.Errorf("expected one *%s in %s, found %d", agentsSuffix, path, len(matches))
	}
	id := strings.TrimSuffix(filepath.Base(matches[0]), agentsSuffix)
	if agents, err = os.ReadFile(matches[0]); err != nil {
		return nil, nil, fmt.Errorf("reading agents: %w", err)
	}
	if rels, err = os.ReadFile(filepath.Join(path, id+relationshipsSuffix)); err != nil {
		return nil, nil, fmt.Errorf("reading relationships: %w", err)
	}
	return agents, rels, nil
}

func encodeAgents(pop *population.Population) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(agentColumns); err != nil {
		return nil, err
	}
	for a := range pop.All.All() {
		mean, err := json.Marshal(a.MeanNumPartners)
		if err != nil {
			return nil, err
		}
		target, err := json.Marshal(a.TargetPartners)
		if err != nil {
			return nil, err
		}
		loc := ""
		if a.Location != nil {
			loc = a.Location.Name
		}
		row := []string{
			strconv.FormatInt(a.ID, 10), loc, a.Race, a.SexType, a.DrugType, a.SexRole,
			strconv.Itoa(a.Age), string(mean), string(target),
		}
		for _, name := range agent.RecordNames {
			rec, err := json.Marshal(a.FeatureRecord(name))
			if err != nil {
				return nil, fmt.Errorf("agent %d %s: %w", a.ID, name, err)
			}
			row = append(row, string(rec))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func encodeRelationships(pop *population.Population) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(relationshipColumns); err != nil {
		return nil, err
	}
	for r := range pop.Relationships.All() {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.Agent1.ID, 10),
			strconv.FormatInt(r.Agent2.ID, 10),
			strconv.Itoa(r.Duration),
			r.BondType,
			strconv.Itoa(r.TotalSexActs),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// table reads a CSV with a header row into column-indexed rows.
type table struct {
	cols map[string]int
	rows [][]string
}

func readTable(data []byte, required []string) (*table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header")
	}
	if err != nil {
		return nil, err
	}
	t := &table{cols: make(map[string]int, len(header))}
	for i, c := range header {
		t.cols[c] = i
	}
	for _, c := range required {
		if _, ok := t.cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	if t.rows, err = r.ReadAll(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *table) get(row []string, col string) string {
	if i, ok := t.cols[col]; ok && i < len(row) {
		return row[i]
	}
	return ""
}

func decodeAgents(pop *population.Population, data []byte) error {
	t, err := readTable(data, agentColumns[:9])
	if err != nil {
		return err
	}
	for line, row := range t.rows {
		id, err := strconv.ParseInt(t.get(row, "id"), 10, 64)
		if err != nil {
			return fmt.Errorf("row %d: id: %w", line+1, err)
		}
		a := agent.New(id, pop.BondTypes())
		a.Race = t.get(row, "race")
		a.SexType = t.get(row, "sex_type")
		a.DrugType = t.get(row, "drug_type")
		a.SexRole = t.get(row, "sex_role")
		if a.Age, err = strconv.Atoi(t.get(row, "age")); err != nil {
			return fmt.Errorf("row %d: age: %w", line+1, err)
		}
		locName := t.get(row, "location")
		if a.Location = pop.Geography.Location(locName); a.Location == nil {
			return fmt.Errorf("row %d: unknown location %q", line+1, locName)
		}
		if err := json.Unmarshal([]byte(t.get(row, "mean_num_partners")), &a.MeanNumPartners); err != nil {
			return fmt.Errorf("row %d: mean_num_partners: %w", line+1, err)
		}
		if err := json.Unmarshal([]byte(t.get(row, "target_partners")), &a.TargetPartners); err != nil {
			return fmt.Errorf("row %d: target_partners: %w", line+1, err)
		}
		for _, name := range agent.RecordNames {
			raw := t.get(row, name)
			if raw == "" {
				continue
			}
			if err := json.Unmarshal([]byte(raw), a.FeatureRecord(name)); err != nil {
				return fmt.Errorf("row %d: %s: %w", line+1, name, err)
			}
		}
		if pop.Agent(id) != nil {
			return fmt.Errorf("row %d: duplicate agent id %d", line+1, id)
		}
		pop.AddAgent(a)
	}
	return nil
}

func decodeRelationships(pop *population.Population, data []byte) error {
	t, err := readTable(data, relationshipColumns)
	if err != nil {
		return err
	}
	for line, row := range t.rows {
		var ids [3]int64
		for i, col := range []string{"id", "agent1", "agent2"} {
			if ids[i], err = strconv.ParseInt(t.get(row, col), 10, 64); err != nil {
				return fmt.Errorf("row %d: %s: %w", line+1, col, err)
			}
		}
		duration, err := strconv.Atoi(t.get(row, "duration"))
		if err != nil {
			return fmt.Errorf("row %d: duration: %w", line+1, err)
		}
		acts, err := strconv.Atoi(t.get(row, "total_sex_acts"))
		if err != nil {
			return fmt.Errorf("row %d: total_sex_acts: %w", line+1, err)
		}
		a1, a2 := pop.Agent(ids[1]), pop.Agent(ids[2])
		if a1 == nil || a2 == nil {
			return fmt.Errorf("row %d: relationship %d names an unknown agent", line+1, ids[0])
		}
		if _, err := pop.RestoreRelationship(ids[0], a1, a2, t.get(row, "bond_type"), duration, acts); err != nil {
			return fmt.Errorf("row %d: %w", line+1, err)
		}
	}
	return nil
}
