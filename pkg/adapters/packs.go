package adapters

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// manifestName is the file each pack carries at its root.
const manifestName = "manifest.json"

// Manifest is the pack-level declaration of zero or more adapters.
type Manifest struct {
	PackID      string       `json:"pack_id"`
	PackVersion string       `json:"pack_version"`
	Adapters    []Descriptor `json:"adapters"`
}

// LoadPacks walks the pack root and registers every adapter declared by the
// packs found there. A pack is either a directory containing manifest.json
// or a .tgz/.tar.gz archive with manifest.json at its root. Pack entries are
// visited in lexical order so registration order is deterministic.
func LoadPacks(root string) (*Registry, error) {
	registry := NewRegistry()

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing pack root means an empty registry, not a failure.
			return registry, nil
		}
		return nil, fmt.Errorf("reading pack root %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		var manifest *Manifest
		switch {
		case entry.IsDir():
			manifest, err = readDirManifest(path)
		case strings.HasSuffix(entry.Name(), ".tgz") || strings.HasSuffix(entry.Name(), ".tar.gz"):
			manifest, err = readArchiveManifest(path)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading pack %s: %w", entry.Name(), err)
		}
		if manifest == nil {
			continue
		}
		if err := registerManifest(registry, manifest, path); err != nil {
			return nil, fmt.Errorf("loading pack %s: %w", entry.Name(), err)
		}
	}

	return registry, nil
}

func registerManifest(registry *Registry, m *Manifest, source string) error {
	for _, d := range m.Adapters {
		if d.PackID == "" {
			d.PackID = m.PackID
		}
		if d.PackVersion == "" {
			d.PackVersion = m.PackVersion
		}
		d.Source = source
		if err := registry.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func readDirManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			// Directories without a manifest are not packs.
			return nil, nil
		}
		return nil, err
	}
	return parseManifest(data)
}

func readArchiveManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if filepath.Base(hdr.Name) != manifestName || hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading manifest: %w", err)
		}
		return parseManifest(data)
	}
	return nil, fmt.Errorf("archive has no %s", manifestName)
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
