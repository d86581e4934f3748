package command

import (
	"testing"

	"github.com/pavelanni/maaspractice/internal/prompts"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind Kind
		wantCmd  Command
		wantText string
	}{
		{"feedback", KindCommand, Feedback, "feedback"},
		{"Feedback", KindCommand, Feedback, "Feedback"},
		{" feedback ", KindCommand, Feedback, "feedback"},
		{"PAUSE", KindCommand, Pause, "PAUSE"},
		{"\tadvice\n", KindCommand, Advice, "advice"},
		{"summary", KindCommand, Summary, "summary"},
		{"again", KindCommand, Again, "again"},
		{"give me feedback please", KindMessage, "", "give me feedback please"},
		{"let's pause for a second", KindMessage, "", "let's pause for a second"},
		{"again?", KindMessage, "", "again?"},
		{"  Hello, what brings you in today?  ", KindMessage, "", "Hello, what brings you in today?"},
		{"", KindMessage, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			in := Parse(tt.raw)
			if in.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", in.Kind, tt.wantKind)
			}
			if in.Command != tt.wantCmd {
				t.Errorf("Command = %q, want %q", in.Command, tt.wantCmd)
			}
			if in.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", in.Text, tt.wantText)
			}
		})
	}
}

func TestCritiqueMode(t *testing.T) {
	tests := []struct {
		cmd    Command
		want   prompts.Mode
		wantOK bool
	}{
		{Feedback, prompts.ModeInterim, true},
		{Advice, prompts.ModeAdvice, true},
		{Summary, prompts.ModeSummary, true},
		{Pause, "", false},
		{Again, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			got, ok := tt.cmd.CritiqueMode()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("CritiqueMode() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
