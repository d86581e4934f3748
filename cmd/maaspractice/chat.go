package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavelanni/maaspractice/internal/command"
	appI18n "github.com/pavelanni/maaspractice/internal/i18n"
	"github.com/pavelanni/maaspractice/internal/model"
	"github.com/pavelanni/maaspractice/internal/session"
)

// Terminal-only controls; everything else goes to the session as input.
const (
	chatEnd     = ":end"
	chatRestart = ":restart"
	chatQuit    = ":quit"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Practice an interview in the terminal",
		RunE:  runChat,
	}
	addCommonFlags(cmd)
	addPracticeFlags(cmd)
	f := cmd.Flags()
	f.String("case", "", "Patient case id (required)")
	f.String("scenario", "", "Consultation id (required)")
	f.String("save-dir", "", "Directory to save the transcript into when the session ends")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	p, err := loadPractice(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer p.Close()

	sess := session.New(p.deps)
	status := cmd.ErrOrStderr()
	c := &chat{
		sess:    sess,
		in:      bufio.NewScanner(cmd.InOrStdin()),
		out:     cmd.OutOrStdout(),
		ctx:     appI18n.Context(p.lang),
		saveDir: v.GetString("save-dir"),
		wait: func(label string, work func()) {
			if err := runSpinner(cmd.Context(), status, label, work); err != nil {
				slog.Debug("spinner stopped", "error", err)
			}
		},
	}
	return c.run(cmd.Context(), model.ID(v.GetString("case")), model.ID(v.GetString("scenario")))
}

// chat drives one session from a line-oriented terminal.
type chat struct {
	sess    *session.Session
	in      *bufio.Scanner
	out     io.Writer
	ctx     context.Context // localization
	saveDir string
	shown   int

	// wait runs work while showing label; nil runs work silently.
	wait func(label string, work func())
}

func (c *chat) run(ctx context.Context, caseID, scenarioID model.ID) error {
	v, err := c.sess.SelectScenario(caseID, scenarioID)
	if err != nil {
		return err
	}
	c.briefing(v)

	if v, err = c.sess.StartInterview(); err != nil {
		return err
	}
	c.help()

	for {
		fmt.Fprint(c.out, "> ")
		line, ok := c.readLine()
		if !ok {
			return nil
		}
		switch strings.TrimSpace(line) {
		case chatQuit:
			return nil
		case chatEnd:
			return c.finish(ctx)
		case chatRestart:
			if v, err = c.sess.Restart(); err != nil {
				return err
			}
			c.shown = 0
			continue
		}

		c.waitFor(c.waitLabel(line, v), func() { v, err = c.sess.SubmitInput(ctx, line) })
		if errors.Is(err, session.ErrEmptyInput) {
			continue
		}
		if err != nil {
			return err
		}
		c.show(v)
		if v.Phase == model.PhaseEnded {
			// The turn limit closed the interview.
			return c.finish(ctx)
		}
	}
}

// finish closes the interview if it is still open, then collects the
// improvement note and prints the critique.
func (c *chat) finish(ctx context.Context) error {
	v := c.sess.View()
	if v.Phase.InInterview() {
		var err error
		if v, err = c.sess.EndInterview(); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "\n%s\n%s\n", appI18n.T(c.ctx, "InterviewComplete"), appI18n.Tp(c.ctx, "ExchangeCount", v.Exchanges()))

	fmt.Fprintf(c.out, "%s\n%s ", appI18n.T(c.ctx, "NotePrompt"), appI18n.T(c.ctx, "NoteQuestion"))
	note, _ := c.readLine()
	var err error
	c.waitFor(appI18n.T(c.ctx, "GeneratingFeedback"), func() {
		v, err = c.sess.SubmitImprovementNote(ctx, note, strings.TrimSpace(note) == "")
	})
	if err != nil {
		return err
	}
	if v.ImprovementNote != "" {
		fmt.Fprintln(c.out, appI18n.T(c.ctx, "NoteThanks"))
	}
	fmt.Fprintf(c.out, "\n%s\n\n%s\n", appI18n.T(c.ctx, "FeedbackTitle"), v.Critique)

	if c.saveDir == "" {
		return nil
	}
	art, _, err := c.sess.DownloadTranscript()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.saveDir, 0o755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}
	path := filepath.Join(c.saveDir, art.Filename)
	if err := os.WriteFile(path, []byte(art.Content), 0o644); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	fmt.Fprintf(c.out, "\n%s: %s\n", appI18n.T(c.ctx, "DownloadTranscript"), path)
	return nil
}

// waitLabel names what the session will be waiting on for line: the patient's
// reply, a critique, or nothing for commands that do not generate.
func (c *chat) waitLabel(line string, v model.SessionView) string {
	in := command.Parse(line)
	if in.Empty() {
		return ""
	}
	if !in.IsCommand() {
		return appI18n.Td(c.ctx, "Thinking", map[string]any{"Name": v.Patient.Name})
	}
	if _, ok := in.Command.CritiqueMode(); ok {
		return appI18n.T(c.ctx, "GeneratingFeedback")
	}
	return ""
}

func (c *chat) waitFor(label string, work func()) {
	if c.wait == nil || label == "" {
		work()
		return
	}
	c.wait(label, work)
}

func (c *chat) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return c.in.Text(), true
}

func (c *chat) briefing(v model.SessionView) {
	b := v.Briefing
	fmt.Fprintf(c.out, "%s: %s\n", appI18n.T(c.ctx, "Briefing"), b.Title)
	fmt.Fprintf(c.out, "%s: %s\n", appI18n.T(c.ctx, "Patient"), v.Patient.Name)
	if b.Difficulty != "" {
		fmt.Fprintf(c.out, "%s: %s\n", appI18n.T(c.ctx, "Difficulty"), b.Difficulty)
	}
	if b.EstimatedMinutes != "" {
		fmt.Fprintf(c.out, "%s: %s\n", appI18n.T(c.ctx, "Duration"),
			appI18n.Td(c.ctx, "DurationMinutes", map[string]any{"Minutes": b.EstimatedMinutes}))
	}
	for _, o := range b.LearningObjectives {
		fmt.Fprintf(c.out, "  - %s\n", o)
	}
	fmt.Fprintln(c.out)
}

func (c *chat) help() {
	fmt.Fprintln(c.out, appI18n.T(c.ctx, "CommandsTitle"))
	for _, cmd := range command.All {
		fmt.Fprintf(c.out, "  %-9s %s\n", cmd, appI18n.T(c.ctx, commandHelpKey(cmd)))
	}
	fmt.Fprintf(c.out, "  %-9s %s\n", chatEnd, appI18n.T(c.ctx, "EndInterview"))
	fmt.Fprintf(c.out, "  %-9s %s\n\n", chatRestart, appI18n.T(c.ctx, "Restart"))
}

// show prints turns added since the last call and any notice. After an undo
// the transcript is shorter than what was printed; only the counter moves.
func (c *chat) show(v model.SessionView) {
	name := v.Patient.Name
	if c.shown > len(v.Turns) {
		c.shown = len(v.Turns)
	}
	for _, t := range v.Turns[c.shown:] {
		if t.Role == model.RolePatient {
			fmt.Fprintf(c.out, "%s: %s\n", t.Speaker(name), t.Text)
		}
	}
	c.shown = len(v.Turns)
	if v.Notice != "" {
		fmt.Fprintf(c.out, "\n%s\n\n", v.Notice)
	}
}

func commandHelpKey(c command.Command) string {
	return "Cmd" + strings.ToUpper(string(c[:1])) + string(c[1:])
}
