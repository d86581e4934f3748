package transcript

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/maaspractice/internal/model"
)

// AppendResult reports what happened to a note. Logging is best effort, so
// callers are free to ignore it.
type AppendResult struct {
	Written bool
	Err     error
}

// NoteLog appends students' improvement notes to a local text file, one
// timestamped line per note.
type NoteLog struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewNoteLog returns a log writing to path. An empty path disables logging.
func NewNoteLog(path string) *NoteLog {
	return &NoteLog{path: path, now: time.Now}
}

// Path returns the log file location.
func (l *NoteLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes "YYYY-MM-DD HH:MM | <case> | Consultation <scenario> | <text>".
// Failures are logged and reported in the result, never returned as errors.
func (l *NoteLog) Append(caseID, scenarioID model.ID, text string) AppendResult {
	if l == nil || l.path == "" {
		return AppendResult{Err: errors.New("note log disabled")}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := fmt.Sprintf("%s | %s | Consultation %s | %s\n",
		l.now().Format(dateLayout), caseID, scenarioID, oneLine(text))

	if err := l.write(entry); err != nil {
		slog.Warn("improvement note not logged", "path", l.path, "case_id", caseID, "scenario_id", scenarioID, "error", err)
		return AppendResult{Err: err}
	}
	return AppendResult{Written: true}
}

func (l *NoteLog) write(entry string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open note log: %w", err)
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return fmt.Errorf("write note log: %w", err)
	}
	return f.Close()
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(strings.TrimSpace(s))
}
