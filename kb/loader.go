package kb

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

//go:embed default_catalog.json
var defaultCatalog []byte

// CatalogSummary is a small summary of what was loaded from JSON.
type CatalogSummary struct {
	SchemaVersion string
	Categories    []string
	Records       int
}

// internal JSON shapes, unexported so the wire format can evolve.
type catalogJSON struct {
	SchemaVersion string         `json:"schema_version"`
	Categories    []categoryJSON `json:"categories"`
}

type categoryJSON struct {
	Type   string                 `json:"type"`
	Models []model.ComponentRecord `json:"models"`
}

// LoadCatalog reads a JSON component catalog from r and adds every record
// to kb. Category names are normalized to lower case. Loading stops at the
// first duplicate or empty ID.
func LoadCatalog(kb *KnowledgeBase, r io.Reader) (*CatalogSummary, error) {
	if kb == nil {
		return nil, fmt.Errorf("LoadCatalog: kb is nil")
	}

	var payload catalogJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadCatalog: decode failed: %w", err)
	}

	summary := &CatalogSummary{
		SchemaVersion: payload.SchemaVersion,
		Categories:    make([]string, 0, len(payload.Categories)),
	}
	for _, cat := range payload.Categories {
		name := strings.ToLower(strings.TrimSpace(cat.Type))
		if name == "" {
			return nil, fmt.Errorf("LoadCatalog: category with empty type")
		}
		for _, m := range cat.Models {
			if err := kb.AddRecord(m.WithCategory(name)); err != nil {
				return nil, fmt.Errorf("LoadCatalog: %w", err)
			}
			summary.Records++
		}
		summary.Categories = append(summary.Categories, name)
	}

	kb.mu.Lock()
	kb.schemaVersion = payload.SchemaVersion
	kb.mu.Unlock()
	return summary, nil
}

// LoadCatalogFile loads a JSON catalog from disk.
func LoadCatalogFile(kb *KnowledgeBase, path string) (*CatalogSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalogFile: %w", err)
	}
	defer f.Close()
	return LoadCatalog(kb, f)
}

// LoadDefault loads the built-in reference catalog.
func LoadDefault(kb *KnowledgeBase) (*CatalogSummary, error) {
	return LoadCatalog(kb, bytes.NewReader(defaultCatalog))
}
