// Package command classifies a line of student input as a control command or
// a conversational message.
package command

import (
	"strings"

	"github.com/pavelanni/maaspractice/internal/prompts"
)

// Command is one of the closed set of control commands.
type Command string

const (
	Pause    Command = "pause"
	Feedback Command = "feedback"
	Advice   Command = "advice"
	Summary  Command = "summary"
	Again    Command = "again"
)

// All lists the commands in help order.
var All = []Command{Pause, Feedback, Advice, Summary, Again}

// Kind tags an Input as a command or a message.
type Kind int

const (
	KindMessage Kind = iota
	KindCommand
)

// Input is parsed student input: either a Command or a Message.
type Input struct {
	Kind    Kind
	Command Command // set when Kind == KindCommand
	Text    string  // trimmed input text
}

// Parse classifies raw input. Only an exact, case-insensitive match of the
// whole trimmed line is a command; "let's pause for a second" is a message.
func Parse(raw string) Input {
	text := strings.TrimSpace(raw)
	folded := Command(strings.ToLower(text))
	for _, c := range All {
		if folded == c {
			return Input{Kind: KindCommand, Command: c, Text: text}
		}
	}
	return Input{Kind: KindMessage, Text: text}
}

// IsCommand reports whether the input is a control command.
func (in Input) IsCommand() bool {
	return in.Kind == KindCommand
}

// Empty reports whether the input carries no text.
func (in Input) Empty() bool {
	return in.Text == ""
}

// CritiqueMode returns the critique mode a command requests, if any.
func (c Command) CritiqueMode() (prompts.Mode, bool) {
	switch c {
	case Feedback:
		return prompts.ModeInterim, true
	case Advice:
		return prompts.ModeAdvice, true
	case Summary:
		return prompts.ModeSummary, true
	}
	return "", false
}
