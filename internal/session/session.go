// Package session owns one practice interview: its lifecycle, its transcript
// and every call to the generation backend made on its behalf.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/maaspractice/internal/cases"
	"github.com/pavelanni/maaspractice/internal/command"
	"github.com/pavelanni/maaspractice/internal/llm"
	"github.com/pavelanni/maaspractice/internal/model"
	"github.com/pavelanni/maaspractice/internal/prompts"
	"github.com/pavelanni/maaspractice/internal/transcript"
)

var (
	// ErrInvalidPhase is returned when an action is not allowed in the
	// current phase. The session is left untouched.
	ErrInvalidPhase = errors.New("action not allowed in current phase")
	ErrNoCases      = errors.New("no cases available")
	ErrEmptyInput   = errors.New("empty input")
)

// Generator produces text from a system prompt and an ordered transcript.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// Recorder archives finished attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, a model.Attempt) (int64, error)
}

// NoteLogger records improvement notes. Results are best effort.
type NoteLogger interface {
	Append(caseID, scenarioID model.ID, text string) transcript.AppendResult
}

// Messages holds the fixed notices shown to the student.
type Messages struct {
	Paused            string
	Retry             string
	NothingToUndo     string
	TurnLimit         string
	CredentialMissing string
}

// DefaultMessages returns the English notices.
func DefaultMessages() Messages {
	return Messages{
		Paused:            "Take your time. Type anything when you're ready to continue.",
		Retry:             "Let's try that again. What would you like to say?",
		NothingToUndo:     "Nothing to redo yet. Keep going.",
		TurnLimit:         "The interview has reached its maximum length and has ended.",
		CredentialMissing: "Error: MAAS_API_KEY not set. Please set the environment variable.",
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.Paused == "" {
		m.Paused = d.Paused
	}
	if m.Retry == "" {
		m.Retry = d.Retry
	}
	if m.NothingToUndo == "" {
		m.NothingToUndo = d.NothingToUndo
	}
	if m.TurnLimit == "" {
		m.TurnLimit = d.TurnLimit
	}
	if m.CredentialMissing == "" {
		m.CredentialMissing = d.CredentialMissing
	}
	return m
}

// Deps are the collaborators of a Session. Notes and Recorder are optional.
type Deps struct {
	Catalog   *cases.Catalog
	Generator Generator
	Prompts   prompts.Library
	Notes     NoteLogger
	Recorder  Recorder
	Messages  Messages
	Config    model.PracticeConfig
}

// Session is a single practice session. All methods are safe for concurrent
// use; each holds the session lock for its full duration, generation included.
type Session struct {
	mu sync.Mutex

	catalog  *cases.Catalog
	gen      Generator
	lib      prompts.Library
	notes    NoteLogger
	recorder Recorder
	msgs     Messages
	cfg      model.PracticeConfig
	now      func() time.Time

	id        string
	phase     model.Phase
	c         *model.Case
	sc        *model.Consultation
	turns     []model.Turn
	notice    string
	critique  string
	critiqued bool
	note      string
	noteAsked bool
	startedAt time.Time
	endedAt   time.Time
}

// New creates an idle session.
func New(d Deps) *Session {
	catalog := d.Catalog
	if catalog == nil {
		catalog = cases.NewCatalog()
	}
	return &Session{
		catalog:  catalog,
		gen:      d.Generator,
		lib:      d.Prompts,
		notes:    d.Notes,
		recorder: d.Recorder,
		msgs:     d.Messages.withDefaults(),
		cfg:      d.Config.WithDefaults(),
		now:      time.Now,
		id:       uuid.NewString(),
		phase:    model.PhaseIdle,
	}
}

// Config returns the effective practice configuration.
func (s *Session) Config() model.PracticeConfig {
	return s.cfg
}

// View returns the current observable state.
func (s *Session) View() model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// ListCases returns the selectable cases, sorted by patient name.
func (s *Session) ListCases() []model.CaseSummary {
	return s.catalog.List()
}

// SelectScenario chooses a case and consultation and shows its briefing.
func (s *Session) SelectScenario(caseID, scenarioID model.ID) (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseIdle && s.phase != model.PhaseBriefing {
		return s.view(), s.invalid("select scenario")
	}
	if s.catalog.Empty() {
		return s.view(), ErrNoCases
	}
	c, sc, err := s.catalog.Lookup(caseID, scenarioID)
	if err != nil {
		return s.view(), fmt.Errorf("select scenario: %w", err)
	}

	s.c, s.sc = c, sc
	s.clearInterview()
	s.phase = model.PhaseBriefing
	s.log().Info("scenario selected")
	return s.view(), nil
}

// StartInterview begins the interview for the selected scenario.
func (s *Session) StartInterview() (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseBriefing {
		return s.view(), s.invalid("start interview")
	}
	s.clearInterview()
	s.startedAt = s.now()
	s.phase = model.PhaseActive
	s.log().Info("interview started")
	return s.view(), nil
}

// SubmitInput handles one line typed by the student: either a control
// command or something said to the patient. Input while paused resumes the
// interview and is then handled normally.
func (s *Session) SubmitInput(ctx context.Context, raw string) (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.phase.InInterview() {
		return s.view(), s.invalid("submit input")
	}
	in := command.Parse(raw)
	if in.Empty() {
		return s.view(), ErrEmptyInput
	}

	ctx = context.WithoutCancel(ctx)
	if s.phase == model.PhasePaused {
		s.phase = model.PhaseActive
	}
	s.notice = ""

	if in.IsCommand() {
		s.runCommand(ctx, in.Command)
		return s.view(), nil
	}
	s.exchange(ctx, in.Text)
	return s.view(), nil
}

// EndInterview closes the interview and asks for an improvement note.
func (s *Session) EndInterview() (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.phase.InInterview() {
		return s.view(), s.invalid("end interview")
	}
	s.notice = ""
	s.end()
	return s.view(), nil
}

// Restart clears the transcript and starts the same interview over.
func (s *Session) Restart() (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.phase.InInterview() {
		return s.view(), s.invalid("restart")
	}
	s.clearInterview()
	s.startedAt = s.now()
	s.phase = model.PhaseActive
	s.log().Info("interview restarted")
	return s.view(), nil
}

// DifferentPatient abandons the current case and returns to selection.
func (s *Session) DifferentPatient() model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c, s.sc = nil, nil
	s.clearInterview()
	s.phase = model.PhaseIdle
	s.log().Info("session reset")
	return s.view()
}

// SubmitImprovementNote records the student's note, or skips it, then
// produces the end-of-session critique and archives the attempt.
func (s *Session) SubmitImprovementNote(ctx context.Context, text string, skip bool) (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseEnded {
		return s.view(), s.invalid("submit improvement note")
	}
	ctx = context.WithoutCancel(ctx)

	text = strings.TrimSpace(text)
	if !skip && text != "" {
		s.note = text
		if s.notes != nil {
			// Best effort; failures are logged by the note log.
			_ = s.notes.Append(s.c.ID, s.sc.ID, text)
		}
	}
	s.notice = ""
	s.phase = model.PhaseFeedbackPending

	if !s.critiqued {
		s.critique = s.generateCritique(ctx, prompts.ModeFull)
		s.critiqued = true
	}
	s.phase = model.PhaseFeedbackReady
	s.archive(ctx)
	return s.view(), nil
}

// TryAgain returns to the briefing of the same scenario with a fresh transcript.
func (s *Session) TryAgain() (model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseFeedbackReady {
		return s.view(), s.invalid("try again")
	}
	s.clearInterview()
	s.phase = model.PhaseBriefing
	return s.view(), nil
}

// DownloadTranscript renders the transcript artifact, including the
// critique once it exists.
func (s *Session) DownloadTranscript() (model.Artifact, model.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.phase.InInterview() && !s.phase.Finished() {
		return model.Artifact{}, s.view(), s.invalid("download transcript")
	}
	at := s.now()
	return model.Artifact{
		Filename: transcript.Filename(s.cfg.AppName, s.c.ID, s.sc.ID, at),
		Content:  transcript.Render(s.c, s.sc, s.turns, s.critique, at),
	}, s.view(), nil
}

func (s *Session) runCommand(ctx context.Context, cmd command.Command) {
	if mode, ok := cmd.CritiqueMode(); ok {
		s.notice = s.generateCritique(ctx, mode)
		return
	}
	switch cmd {
	case command.Pause:
		s.phase = model.PhasePaused
		s.notice = s.msgs.Paused
	case command.Again:
		if s.hasLastExchange() {
			s.turns = s.turns[:len(s.turns)-2]
			s.notice = s.msgs.Retry
			return
		}
		s.notice = s.msgs.NothingToUndo
	}
}

// exchange appends the student's line and the patient's reply, keeping the
// transcript within MaxTurns.
func (s *Session) exchange(ctx context.Context, text string) {
	if len(s.turns)+2 > s.cfg.MaxTurns {
		s.notice = s.msgs.TurnLimit
		s.end()
		return
	}

	s.turns = append(s.turns, model.Turn{Role: model.RoleStudent, Text: text})
	reply := s.generate(ctx, llm.Request{
		MaxTokens: s.cfg.ShortTokens,
		System:    prompts.CompileSystemInstructions(s.lib, s.c, s.sc),
		Messages:  s.turns,
	}, "Error: ")
	s.turns = append(s.turns, model.Turn{Role: model.RolePatient, Text: strings.TrimSpace(reply)})

	if len(s.turns)+2 > s.cfg.MaxTurns {
		s.notice = s.msgs.TurnLimit
		s.end()
	}
}

func (s *Session) generateCritique(ctx context.Context, mode prompts.Mode) string {
	budget := s.cfg.ShortTokens
	if mode.LongForm() {
		budget = s.cfg.FullTokens
	}
	return s.generate(ctx, llm.Request{
		MaxTokens: budget,
		System:    prompts.CritiqueSystem(s.lib, mode),
		Messages: []model.Turn{{
			Role: model.RoleStudent,
			Text: prompts.CompileCritiqueRequest(s.c, s.sc, s.turns, mode),
		}},
	}, "Error generating feedback: ")
}

// generate never fails: errors become the visible text, prefixed with
// errPrefix unless the credential is missing.
func (s *Session) generate(ctx context.Context, req llm.Request, errPrefix string) string {
	if s.gen == nil {
		return s.msgs.CredentialMissing
	}
	out, err := s.gen.Generate(ctx, req)
	if err == nil {
		return out
	}
	if errors.Is(err, llm.ErrNoCredential) {
		s.log().Warn("generation skipped", "error", err)
		return s.msgs.CredentialMissing
	}
	s.log().Error("generation failed", "error", err)
	return errPrefix + err.Error()
}

func (s *Session) end() {
	s.phase = model.PhaseEnded
	s.noteAsked = true
	s.endedAt = s.now()
	s.log().Info("interview ended", "turns", len(s.turns))
}

func (s *Session) archive(ctx context.Context) {
	if s.recorder == nil {
		return
	}
	id, err := s.recorder.RecordAttempt(ctx, model.Attempt{
		SessionID:       s.id,
		CaseID:          s.c.ID,
		ScenarioID:      s.sc.ID,
		PatientName:     s.c.Name(),
		ScenarioTitle:   s.sc.Title.String(),
		StartedAt:       s.startedAt,
		EndedAt:         s.endedAt,
		Turns:           append([]model.Turn(nil), s.turns...),
		Critique:        s.critique,
		ImprovementNote: s.note,
	})
	if err != nil {
		s.log().Warn("attempt not archived", "error", err)
		return
	}
	s.log().Info("attempt archived", "attempt_id", id)
}

// hasLastExchange reports whether the transcript ends with a
// student/patient pair that "again" can take back.
func (s *Session) hasLastExchange() bool {
	n := len(s.turns)
	return n >= 2 && s.turns[n-2].Role == model.RoleStudent && s.turns[n-1].Role == model.RolePatient
}

func (s *Session) clearInterview() {
	s.turns = nil
	s.notice = ""
	s.critique = ""
	s.critiqued = false
	s.note = ""
	s.noteAsked = false
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
}

func (s *Session) invalid(action string) error {
	return fmt.Errorf("%s in phase %s: %w", action, s.phase, ErrInvalidPhase)
}

func (s *Session) log() *slog.Logger {
	l := slog.With("session_id", s.id, "phase", s.phase)
	if s.c != nil {
		l = l.With("case_id", s.c.ID)
	}
	if s.sc != nil {
		l = l.With("scenario_id", s.sc.ID)
	}
	return l
}

func (s *Session) view() model.SessionView {
	v := model.SessionView{
		ID:              s.id,
		Phase:           s.phase,
		Turns:           append([]model.Turn{}, s.turns...),
		Notice:          s.notice,
		Critique:        s.critique,
		ImprovementNote: s.note,
		NoteAsked:       s.noteAsked,
		MaxTurns:        s.cfg.MaxTurns,
		NoCases:         s.catalog.Empty(),
	}
	if s.c != nil && s.sc != nil {
		v.CaseID = s.c.ID
		v.ScenarioID = s.sc.ID
		info := s.c.PatientInfo(s.sc)
		v.Patient = &info
		brief := s.sc.Summary()
		v.Briefing = &brief
	}
	return v
}
