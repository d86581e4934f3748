// Package prompts compiles case data and transcripts into the text sent to
// the generation backend. Every function here is pure.
package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
)

// Template names in the prompt namespace.
const (
	PatientSimulation  = "patient-simulation"
	FeedbackGeneration = "feedback-generation"
)

// Library holds the plain-text prompt templates keyed by name. Templates are
// used verbatim as prefixes.
type Library map[string]string

// LoadLibrary reads <name>.txt for every known template from fsys. A missing
// template loads as an empty string.
func LoadLibrary(fsys fs.FS) (Library, error) {
	lib := make(Library)
	for _, name := range []string{PatientSimulation, FeedbackGeneration} {
		data, err := fs.ReadFile(fsys, name+".txt")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Warn("prompt template not found, using empty prefix", "name", name)
				lib[name] = ""
				continue
			}
			return nil, fmt.Errorf("read prompt template %s: %w", name, err)
		}
		lib[name] = string(data)
	}
	return lib, nil
}

// Get returns the template, or "" when it is not loaded.
func (l Library) Get(name string) string {
	return l[name]
}
