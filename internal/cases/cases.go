// Package cases loads the read-only case repository: patient profiles and
// their consultation scenarios.
package cases

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/pavelanni/maaspractice/internal/model"
)

var (
	// ErrUnknownCase is returned when a case or consultation id is not in the catalog.
	ErrUnknownCase = errors.New("unknown case")
)

// Skipped records a case file that could not be loaded.
type Skipped struct {
	Path string
	Err  error
}

// Catalog maps case ids to loaded cases.
type Catalog struct {
	byID    map[model.ID]*model.Case
	skipped []Skipped
}

// NewCatalog builds a catalog from already parsed cases. Invalid or duplicate
// cases are skipped.
func NewCatalog(cs ...model.Case) *Catalog {
	cat := &Catalog{byID: make(map[model.ID]*model.Case)}
	for i := range cs {
		if err := cat.add(cs[i]); err != nil {
			cat.skipped = append(cat.skipped, Skipped{Path: string(cs[i].ID), Err: err})
		}
	}
	return cat
}

// LoadAll reads every *.json record in fsys. A malformed record is skipped
// and logged; the rest of the batch still loads. A missing directory yields an
// empty catalog.
func LoadAll(fsys fs.FS) (*Catalog, error) {
	cat := &Catalog{byID: make(map[model.ID]*model.Case)}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("case directory not found")
			return cat, nil
		}
		return nil, fmt.Errorf("read case directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		if err := cat.loadFile(fsys, e.Name()); err != nil {
			slog.Warn("skipping case file", "path", e.Name(), "error", err)
			cat.skipped = append(cat.skipped, Skipped{Path: e.Name(), Err: err})
			continue
		}
	}

	slog.Info("loaded cases", "count", cat.Len(), "skipped", len(cat.skipped))
	return cat, nil
}

func (c *Catalog) loadFile(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	var cs model.Case
	if err := json.Unmarshal(data, &cs); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return c.add(cs)
}

func (c *Catalog) add(cs model.Case) error {
	if err := validate(&cs); err != nil {
		return err
	}
	if _, dup := c.byID[cs.ID]; dup {
		return fmt.Errorf("duplicate patient_id %q", cs.ID)
	}
	c.byID[cs.ID] = &cs
	return nil
}

func validate(cs *model.Case) error {
	if strings.TrimSpace(string(cs.ID)) == "" {
		return errors.New("missing patient_id")
	}
	if cs.Name() == "" {
		return errors.New("missing patient name")
	}
	if len(cs.Consultations) == 0 {
		return errors.New("no consultations")
	}
	seen := make(map[model.ID]bool, len(cs.Consultations))
	for i, sc := range cs.Consultations {
		if strings.TrimSpace(string(sc.ID)) == "" {
			return fmt.Errorf("consultation %d: missing consultation_id", i)
		}
		if seen[sc.ID] {
			return fmt.Errorf("duplicate consultation_id %q", sc.ID)
		}
		seen[sc.ID] = true
	}
	return nil
}

// Len returns the number of loaded cases.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Empty reports whether no cases are available.
func (c *Catalog) Empty() bool {
	return c == nil || len(c.byID) == 0
}

// Skipped returns the records that failed to load.
func (c *Catalog) Skipped() []Skipped {
	return c.skipped
}

// Get returns the case with the given id.
func (c *Catalog) Get(id model.ID) (*model.Case, bool) {
	if c == nil {
		return nil, false
	}
	cs, ok := c.byID[id]
	return cs, ok
}

// Lookup returns the case and one of its consultations.
func (c *Catalog) Lookup(caseID, scenarioID model.ID) (*model.Case, *model.Consultation, error) {
	cs, ok := c.Get(caseID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: patient %q", ErrUnknownCase, caseID)
	}
	sc, ok := cs.Consultation(scenarioID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: consultation %q of patient %q", ErrUnknownCase, scenarioID, caseID)
	}
	return cs, sc, nil
}

// List returns the case summaries ordered by patient name, then id.
func (c *Catalog) List() []model.CaseSummary {
	if c == nil {
		return nil
	}
	out := make([]model.CaseSummary, 0, len(c.byID))
	for _, cs := range c.byID {
		out = append(out, cs.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
