// Package transcript renders practice interviews to the downloadable text
// artifact, reads them back, and keeps the improvement-note log.
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/maaspractice/internal/model"
)

const (
	title          = "MAAS Practice - Consultation Transcript"
	transcriptHead = "TRANSCRIPT"
	feedbackHead   = "FEEDBACK"
	footerRule     = "---"
	footerTagline  = "Generated by MAAS Practice"
	footerExpanded = "Patient Responses Adapted to Clinical Technique in Calibrated Encounters"

	// continuation prefixes the second and later lines of a turn.
	continuation = "  "

	dateLayout     = "2006-01-02 15:04"
	filenameLayout = "20060102-1504"
)

// Render produces the transcript artifact: a header naming the patient,
// consultation and date, every turn as "<Speaker>: <text>", the critique
// when one is given, and a fixed footer. Later lines of a multi-line turn are
// indented so they never read as a new speaker.
func Render(c *model.Case, sc *model.Consultation, turns []model.Turn, critique string, at time.Time) string {
	persona := c.Name()

	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", 40) + "\n")
	sb.WriteString("Patient: " + persona + "\n")
	sb.WriteString("Consultation: " + sc.Title.String() + "\n")
	sb.WriteString("Date: " + at.Format(dateLayout) + "\n")
	sb.WriteString("\n" + transcriptHead + "\n")
	sb.WriteString(underline(transcriptHead) + "\n")

	for _, t := range turns {
		fmt.Fprintf(&sb, "\n%s: %s\n", t.Speaker(persona), indent(t.Text))
	}

	if critique != "" {
		sb.WriteString("\n\n" + feedbackHead + "\n")
		sb.WriteString(underline(feedbackHead) + "\n")
		sb.WriteString(critique + "\n")
	}

	sb.WriteString("\n\n" + footerRule + "\n")
	sb.WriteString(footerTagline + "\n")
	sb.WriteString(footerExpanded + "\n")
	return sb.String()
}

// Parse recovers the turns of a rendered transcript. An unindented line
// starting with "Student: " or "<personaName>: " opens a new turn; any other
// line continues the current one. Reading stops at the feedback section or
// the footer.
func Parse(text, personaName string) []model.Turn {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	start := -1
	for i := 0; i+1 < len(lines); i++ {
		if lines[i] == transcriptHead && lines[i+1] == underline(transcriptHead) {
			start = i + 2
			break
		}
	}
	if start < 0 {
		return nil
	}

	studentPrefix := model.StudentLabel + ": "
	patientPrefix := personaName + ": "

	var turns []model.Turn
	var body []string
	flush := func() {
		if len(turns) == 0 {
			return
		}
		for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
			body = body[:len(body)-1]
		}
		turns[len(turns)-1].Text = strings.Join(body, "\n")
		body = nil
	}

	for i := start; i < len(lines); i++ {
		line := lines[i]
		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		if (line == feedbackHead && next == underline(feedbackHead)) ||
			(line == footerRule && next == footerTagline) {
			break
		}

		switch {
		case strings.HasPrefix(line, studentPrefix):
			flush()
			turns = append(turns, model.Turn{Role: model.RoleStudent})
			body = []string{strings.TrimPrefix(line, studentPrefix)}
		case personaName != "" && strings.HasPrefix(line, patientPrefix):
			flush()
			turns = append(turns, model.Turn{Role: model.RolePatient})
			body = []string{strings.TrimPrefix(line, patientPrefix)}
		case len(turns) > 0:
			body = append(body, strings.TrimPrefix(line, continuation))
		}
	}
	flush()
	return turns
}

// Filename returns the artifact name "<app>-<caseId>-<scenarioId>-<YYYYMMDD-HHMM>.txt".
func Filename(app string, caseID, scenarioID model.ID, at time.Time) string {
	if app == "" {
		app = model.DefaultAppName
	}
	return fmt.Sprintf("%s-%s-%s-%s.txt", app, caseID, scenarioID, at.Format(filenameLayout))
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = continuation + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func underline(s string) string {
	return strings.Repeat("-", len(s))
}
