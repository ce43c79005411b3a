package popio

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// FormatVersion is the archive manifest version.
const FormatVersion = 1

// manifestName is the first entry of an archive.
const manifestName = "manifest.json"

// MaxDecompressedSize is the maximum total size of an archive's files (1GB).
const MaxDecompressedSize = 1 << 30

// Manifest describes an archived population. Checksums are keyed by file
// name.
type Manifest struct {
	Version       int               `json:"version"`
	ID            string            `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	Agents        int               `json:"agents"`
	Relationships int               `json:"relationships"`
	Checksums     map[string]string `json:"checksums"`
}

type archiveFile struct {
	name string
	data []byte
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

func newManifest(id string, agents, rels int, files []archiveFile) Manifest {
	m := Manifest{
		Version:       FormatVersion,
		ID:            id,
		CreatedAt:     time.Now().UTC(),
		Agents:        agents,
		Relationships: rels,
		Checksums:     make(map[string]string, len(files)),
	}
	for _, f := range files {
		m.Checksums[f.name] = checksum(f.data)
	}
	return m
}

func writeArchive(path string, m Manifest, files []archiveFile) error {
	header, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	var buf bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	tw := tar.NewWriter(gzw)
	entries := append([]archiveFile{{name: manifestName, data: header}}, files...)
	for _, f := range entries {
		hdr := &tar.Header{Name: f.name, Mode: 0600, Size: int64(len(f.data)), ModTime: m.CreatedAt}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing %s header: %w", f.name, err)
		}
		if _, err := tw.Write(f.data); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

// readArchive extracts an archive written by writeArchive and verifies every
// file against the manifest.
func readArchive(path string) (map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(io.LimitReader(gzr, MaxDecompressedSize+1))
	files := make(map[string][]byte)
	var manifest *Manifest
	total := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}
		total += len(data)
		if total > MaxDecompressedSize {
			return nil, fmt.Errorf("archive exceeds maximum size of %d bytes", MaxDecompressedSize)
		}
		if hdr.Name == manifestName {
			manifest = &Manifest{}
			if err := json.Unmarshal(data, manifest); err != nil {
				return nil, fmt.Errorf("parsing manifest: %w", err)
			}
			continue
		}
		files[hdr.Name] = data
	}

	if manifest == nil {
		return nil, fmt.Errorf("archive %s has no manifest", path)
	}
	if manifest.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version %d", manifest.Version)
	}
	for name, want := range manifest.Checksums {
		data, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("archive is missing %s", name)
		}
		if got := checksum(data); got != want {
			return nil, fmt.Errorf("checksum mismatch for %s: expected %s, got %s", name, want, got)
		}
	}
	return files, nil
}
