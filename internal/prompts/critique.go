package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavelanni/maaspractice/internal/model"
)

// Mode selects the kind of critique requested from the generator.
type Mode string

const (
	ModeInterim Mode = "interim"
	ModeAdvice  Mode = "advice"
	ModeFull    Mode = "full"
	ModeSummary Mode = "summary"
)

// LongForm reports whether the mode uses the long output budget.
func (m Mode) LongForm() bool {
	return m == ModeFull
}

const (
	defaultFeedbackSystem = "You are a medical education expert providing feedback on consultation skills."
	summarySystem         = "You are a medical education expert. Provide a concise learning summary."
)

var instructions = map[Mode]string{
	ModeInterim: "Provide brief interim feedback on how the consultation is going so far. " +
		"Focus on 2-3 specific observations about technique.",
	ModeAdvice: "The student is stuck. Provide a helpful hint about what they might try next. " +
		"Never reveal the answer itself: do not state the diagnosis, the hidden agenda or any information the patient has not yet shared.",
	ModeFull: "Provide complete MAAS-mapped feedback on this consultation.",
	ModeSummary: `Provide a brief summary of:
1. What information the student gathered
2. Key things they discovered (or missed)
3. One specific thing they did well
4. One specific thing to work on next time

Keep it encouraging and practical.`,
}

// Instruction returns the mode-specific instruction text.
func Instruction(m Mode) string {
	if s, ok := instructions[m]; ok {
		return s
	}
	return instructions[ModeFull]
}

// CritiqueSystem returns the system text for a critique request.
func CritiqueSystem(lib Library, m Mode) string {
	if m == ModeSummary {
		return summarySystem
	}
	if s := strings.TrimSpace(lib.Get(FeedbackGeneration)); s != "" {
		return s
	}
	return defaultFeedbackSystem
}

// CompileCritiqueRequest renders the transcript and case metadata into the
// single user message of a critique request.
func CompileCritiqueRequest(c *model.Case, sc *model.Consultation, turns []model.Turn, m Mode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Case: %s\n\n", sc.Title.Or(placeholderNA))
	sb.WriteString("## Learning Objectives\n")
	sb.WriteString(objectives(sc.LearningObjectives))
	sb.WriteString("\n\n")
	if m != ModeSummary {
		sb.WriteString("## MAAS Focus\n")
		sb.WriteString(block(sc.MAASFocus))
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Transcript\n")
	sb.WriteString(FormatTranscript(turns, c.Name()))
	sb.WriteString("\n\n")
	sb.WriteString(Instruction(m))
	sb.WriteString("\n")
	return sb.String()
}

// FormatTranscript renders turns as "<Speaker>: <text>" lines.
func FormatTranscript(turns []model.Turn, personaName string) string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Speaker(personaName)+": "+t.Text)
	}
	return strings.Join(out, "\n")
}

func objectives(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return placeholderNone
	}
	return string(data)
}
