package runner

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// IndexFile lists every run of a batch.
const IndexFile = "runs.tsv"

var indexHeader = []string{"run_id", "row", "rep", "rseed", "pseed", "nseed", "status", "duration", "sweep", "error"}

func writeIndex(path string, runs []*Run) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating run index: %w", err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	_ = w.Write(indexHeader)
	for _, r := range runs {
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		_ = w.Write([]string{
			r.ID,
			strconv.Itoa(r.Row),
			strconv.Itoa(r.Rep),
			strconv.FormatInt(r.RunSeed, 10),
			strconv.FormatInt(r.PopSeed, 10),
			strconv.FormatInt(r.NetSeed, 10),
			string(r.Status),
			r.Duration.Round(time.Millisecond).String(),
			r.Definition.String(),
			msg,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing run index: %w", err)
	}
	return f.Close()
}
