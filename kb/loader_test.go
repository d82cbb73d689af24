package kb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const smallCatalog = `{
  "schema_version": "0.1",
  "categories": [
    {"type": "TOSA", "models": [
      {"id": "tosa-a", "optical_power_dbm": 3, "supports_bitrates": [1, 10]}
    ]},
    {"type": "rosa", "models": [
      {"id": "rosa-a", "responsivity_a_w": 0.9, "sensitivity_dbm": {"1": -24, "10": -18}}
    ]}
  ]
}`

func TestLoadCatalog(t *testing.T) {
	store := NewKnowledgeBase()
	sum, err := LoadCatalog(store, strings.NewReader(smallCatalog))
	if err != nil {
		t.Fatalf("LoadCatalog error: %v", err)
	}
	if sum.Records != 2 || len(sum.Categories) != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if store.SchemaVersion() != "0.1" {
		t.Fatalf("SchemaVersion = %q", store.SchemaVersion())
	}

	tosa, err := store.Record("tosa", "tosa-a")
	if err != nil {
		t.Fatalf("lower-cased category lookup failed: %v", err)
	}
	if tosa.Category != "tosa" {
		t.Fatalf("Category = %q", tosa.Category)
	}
	if got := tosa.Floats("supports_bitrates"); len(got) != 2 || got[1] != 10 {
		t.Fatalf("supports_bitrates = %v", got)
	}

	rosa, _ := store.Record("rosa", "rosa-a")
	table := rosa.Table("sensitivity_dbm")
	if table["10"] != -18 {
		t.Fatalf("sensitivity table = %v", table)
	}
}

func TestLoadCatalogRejectsDuplicateAndEmptyIDs(t *testing.T) {
	dup := `{"categories": [{"type": "fec", "models": [{"id": "x"}, {"id": "x"}]}]}`
	if _, err := LoadCatalog(NewKnowledgeBase(), strings.NewReader(dup)); !errors.Is(err, ErrRecordExists) {
		t.Fatalf("duplicate err = %v, want ErrRecordExists", err)
	}

	empty := `{"categories": [{"type": "fec", "models": [{"coding_gain_db": 3}]}]}`
	if _, err := LoadCatalog(NewKnowledgeBase(), strings.NewReader(empty)); !errors.Is(err, ErrEmptyRecordID) {
		t.Fatalf("empty id err = %v, want ErrEmptyRecordID", err)
	}
}

func TestLoadCatalogDecodeError(t *testing.T) {
	if _, err := LoadCatalog(NewKnowledgeBase(), strings.NewReader("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := LoadCatalog(nil, strings.NewReader(smallCatalog)); err == nil {
		t.Fatalf("expected error for nil kb")
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(smallCatalog), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewKnowledgeBase()
	if _, err := LoadCatalogFile(store, path); err != nil {
		t.Fatalf("LoadCatalogFile error: %v", err)
	}
	if _, ok := store.Selected("rosa"); !ok {
		t.Fatalf("rosa not loaded")
	}
	if _, err := LoadCatalogFile(store, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadDefault(t *testing.T) {
	store := NewKnowledgeBase()
	sum, err := LoadDefault(store)
	if err != nil {
		t.Fatalf("LoadDefault error: %v", err)
	}
	if sum.Records < 50 {
		t.Fatalf("default catalog has only %d records", sum.Records)
	}
	for _, c := range []string{"tosa", "collimator", "receiver_objective", "receiver_array", "rosa", "fec", "combiner"} {
		if _, ok := store.Selected(c); !ok {
			t.Fatalf("default catalog missing category %s", c)
		}
	}
	fec, _ := store.Selected("fec")
	if fec.ID != "fec-rs" {
		t.Fatalf("default fec = %q", fec.ID)
	}
}
