package model

import (
	"context"
	"time"
)

type basePathCtxKey struct{}
type csrfCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

// ContextWithCSRFToken stores the CSRF token for forms rendered in this request.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context (empty string if not set).
func CSRFTokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(csrfCtxKey{}).(string)
	return tok
}

// Role represents the speaker of a transcript turn.
type Role string

const (
	RoleStudent Role = "student"
	RolePatient Role = "patient"
)

// StudentLabel is the speaker label used for student turns in transcripts.
const StudentLabel = "Student"

// Turn is one utterance by either the student or the simulated patient.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Speaker returns the transcript label for the turn. Patient turns are
// labeled with the persona's name.
func (t Turn) Speaker(personaName string) string {
	if t.Role == RoleStudent {
		return StudentLabel
	}
	return personaName
}

// Phase represents the lifecycle state of a practice session.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseBriefing        Phase = "briefing"
	PhaseActive          Phase = "active"
	PhasePaused          Phase = "paused"
	PhaseEnded           Phase = "ended"
	PhaseFeedbackPending Phase = "feedback_pending"
	PhaseFeedbackReady   Phase = "feedback_ready"
)

// InInterview reports whether the phase accepts conversational input.
func (p Phase) InInterview() bool {
	return p == PhaseActive || p == PhasePaused
}

// Finished reports whether the interview has been closed.
func (p Phase) Finished() bool {
	return p == PhaseEnded || p == PhaseFeedbackPending || p == PhaseFeedbackReady
}

// PracticeConfig holds runtime practice parameters set via CLI flags.
type PracticeConfig struct {
	AppName       string // Prefix for exported transcript filenames
	MaxTurns      int    // Transcript ceiling; 0 means DefaultMaxTurns
	ShortTokens   int    // Output budget for patient turns, interim, advice and summary
	FullTokens    int    // Output budget for the full end-of-session critique
	BasePath      string // URL prefix for sub-path deployments (e.g. "/nl")
	SecureCookies bool   // Set the Secure flag on cookies (behind TLS)
}

const (
	DefaultAppName     = "maas-practice"
	DefaultMaxTurns    = 50
	DefaultShortTokens = 500
	DefaultFullTokens  = 1500
)

// WithDefaults fills zero fields with their defaults.
func (c PracticeConfig) WithDefaults() PracticeConfig {
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.ShortTokens <= 0 {
		c.ShortTokens = DefaultShortTokens
	}
	if c.FullTokens <= 0 {
		c.FullTokens = DefaultFullTokens
	}
	return c
}

// CaseSummary is the selection-list entry for one case.
type CaseSummary struct {
	ID            ID                    `json:"id"`
	Name          string                `json:"name"`
	Consultations []ConsultationSummary `json:"consultations"`
}

// ConsultationSummary is the briefing information shown before an interview starts.
type ConsultationSummary struct {
	ID                 ID       `json:"id"`
	Title              string   `json:"title"`
	Difficulty         string   `json:"difficulty"`
	EstimatedMinutes   string   `json:"estimated_minutes"`
	Type               string   `json:"type"`
	LearningObjectives []string `json:"learning_objectives"`
}

// PatientInfo is the subset of the case visible to the student during the interview.
type PatientInfo struct {
	Name       string `json:"name"`
	Age        string `json:"age"`
	Occupation string `json:"occupation"`
	Appearance string `json:"appearance"`
}

// SessionView is the observable state of the session returned by every
// control-surface call.
type SessionView struct {
	ID              string               `json:"id"`
	Phase           Phase                `json:"phase"`
	CaseID          ID                   `json:"case_id,omitempty"`
	ScenarioID      ID                   `json:"scenario_id,omitempty"`
	Patient         *PatientInfo         `json:"patient,omitempty"`
	Briefing        *ConsultationSummary `json:"briefing,omitempty"`
	Turns           []Turn               `json:"turns"`
	Notice          string               `json:"notice,omitempty"`
	Critique        string               `json:"critique,omitempty"`
	ImprovementNote string               `json:"improvement_note,omitempty"`
	NoteAsked       bool                 `json:"note_asked"`
	MaxTurns        int                  `json:"max_turns"`
	NoCases         bool                 `json:"no_cases,omitempty"`
}

// Exchanges returns the number of completed student/patient pairs.
func (v SessionView) Exchanges() int {
	return len(v.Turns) / 2
}

// Attempt is a finished practice interview kept in the archive.
type Attempt struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	CaseID          ID        `json:"case_id"`
	ScenarioID      ID        `json:"scenario_id"`
	PatientName     string    `json:"patient_name"`
	ScenarioTitle   string    `json:"scenario_title"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	Turns           []Turn    `json:"turns"`
	Critique        string    `json:"critique"`
	ImprovementNote string    `json:"improvement_note,omitempty"`
}
