package views

import (
	"github.com/a-h/templ"

	"github.com/pavelanni/maaspractice/internal/command"
	appI18n "github.com/pavelanni/maaspractice/internal/i18n"
	"github.com/pavelanni/maaspractice/internal/model"
)

// PageData is everything the practice page needs.
type PageData struct {
	View     model.SessionView
	Cases    []model.CaseSummary
	ErrorKey string // i18n key of an error to show, if any
}

// Page renders the practice page for the session's current phase.
func Page(d PageData) templ.Component {
	return Layout(sidebar(d), content(d))
}

var commandHelp = map[command.Command]string{
	command.Pause:    "CmdPause",
	command.Feedback: "CmdFeedback",
	command.Advice:   "CmdAdvice",
	command.Summary:  "CmdSummary",
	command.Again:    "CmdAgain",
}

func sidebar(d PageData) templ.Component {
	return component(func(h *html) {
		v := d.View
		if v.Phase.InInterview() && v.Patient != nil {
			h.raw(`<div class="card"><p><strong>`)
			h.t("Patient")
			h.raw(`:</strong> `)
			h.text(v.Patient.Name)
			h.raw(`</p><p><strong>`)
			h.t("Consultation")
			h.raw(`:</strong> `)
			h.text(v.Briefing.Title)
			h.raw(`</p><p class="muted">`)
			h.text(appI18n.Tp(h.ctx, "MessageCount", len(v.Turns)))
			h.raw(`</p></div>`)
		}

		h.raw(`<div class="card"><strong>`)
		h.t("CommandsTitle")
		h.raw(`</strong><ul>`)
		for _, c := range command.All {
			h.raw(`<li><code>`)
			h.text(string(c))
			h.raw(`</code> - `)
			h.t(commandHelp[c])
			h.raw(`</li>`)
		}
		h.raw(`</ul><p class="muted">`)
		h.t("CommandsHint")
		h.raw(`</p></div>`)

		if v.Phase.InInterview() {
			h.raw(`<div class="card">`)
			h.button("/end", "EndInterview", true)
			h.button("/restart", "Restart", false)
			h.button("/different", "DifferentPatient", false)
			h.raw(`</div>`)
		}
	})
}

func content(d PageData) templ.Component {
	return component(func(h *html) {
		if d.ErrorKey != "" {
			h.raw(`<div class="error">`)
			h.t(d.ErrorKey)
			h.raw(`</div>`)
		}

		switch d.View.Phase {
		case model.PhaseIdle:
			selection(h, d)
		case model.PhaseBriefing:
			briefing(h, d.View)
			selection(h, d)
		case model.PhaseActive, model.PhasePaused:
			interview(h, d.View)
		case model.PhaseEnded:
			notePrompt(h, d.View)
		case model.PhaseFeedbackPending:
			h.raw(`<div class="card"><p>`)
			h.t("GeneratingFeedback")
			h.raw(`</p></div>`)
		case model.PhaseFeedbackReady:
			feedback(h, d.View)
		}
	})
}

func selection(h *html, d PageData) {
	h.raw(`<div class="card"><p>`)
	h.t("Welcome")
	h.raw(`</p></div>`)

	if d.View.NoCases || len(d.Cases) == 0 {
		h.raw(`<div class="error">`)
		h.t("NoCases")
		h.raw(`</div>`)
		return
	}

	h.raw(`<div class="card"><h2>`)
	h.t("SelectPatient")
	h.raw(`</h2>`)
	for _, c := range d.Cases {
		h.raw(`<h3>`)
		h.text(c.Name)
		h.raw(`</h3><ul>`)
		for _, sc := range c.Consultations {
			h.raw(`<li><form class="inline" method="post" action="` + h.path("/select") + `">`)
			h.csrf()
			h.rawf(`<input type="hidden" name="case_id" value="%s">`, templ.EscapeString(string(c.ID)))
			h.rawf(`<input type="hidden" name="scenario_id" value="%s">`, templ.EscapeString(string(sc.ID)))
			h.text(string(sc.ID) + ". " + sc.Title + " ")
			h.raw(`<span class="muted">(`)
			h.text(sc.Difficulty)
			h.raw(`)</span> <button type="submit">`)
			h.t("Choose")
			h.raw(`</button></form></li>`)
		}
		h.raw(`</ul>`)
	}
	h.raw(`</div>`)
}

func briefing(h *html, v model.SessionView) {
	if v.Briefing == nil || v.Patient == nil {
		return
	}
	b := v.Briefing
	h.raw(`<div class="card"><h2>`)
	h.t("Briefing")
	h.raw(`: `)
	h.text(b.Title)
	h.raw(`</h2><p><strong>`)
	h.t("Patient")
	h.raw(`:</strong> `)
	h.text(v.Patient.Name)
	h.raw(`</p><p><strong>`)
	h.t("Difficulty")
	h.raw(`:</strong> `)
	h.text(b.Difficulty)
	h.raw(`</p><p><strong>`)
	h.t("Duration")
	h.raw(`:</strong> `)
	h.text(appI18n.Td(h.ctx, "DurationMinutes", map[string]any{"Minutes": b.EstimatedMinutes}))
	h.raw(`</p><p><strong>`)
	h.t("Type")
	h.raw(`:</strong> `)
	h.text(b.Type)
	h.raw(`</p>`)
	if len(b.LearningObjectives) > 0 {
		h.raw(`<p><strong>`)
		h.t("LearningObjectives")
		h.raw(`:</strong></p><ul>`)
		for _, o := range b.LearningObjectives {
			h.raw(`<li>`)
			h.text(o)
			h.raw(`</li>`)
		}
		h.raw(`</ul>`)
	}
	h.button("/start", "StartInterview", true)
	h.button("/different", "DifferentPatient", false)
	h.raw(`</div>`)
}

func patientInfo(h *html, p *model.PatientInfo) {
	if p == nil {
		return
	}
	h.raw(`<details class="card"><summary>`)
	h.t("PatientInformation")
	h.raw(`</summary>`)
	for _, row := range []struct{ label, value string }{
		{"Name", p.Name},
		{"Age", p.Age},
		{"Occupation", p.Occupation},
		{"Appearance", p.Appearance},
	} {
		h.raw(`<p><strong>`)
		h.t(row.label)
		h.raw(`:</strong> `)
		h.text(row.value)
		h.raw(`</p>`)
	}
	h.raw(`</details>`)
}

func turns(h *html, v model.SessionView) {
	name := ""
	if v.Patient != nil {
		name = v.Patient.Name
	}
	for _, t := range v.Turns {
		h.rawf(`<div class="turn %s"><span class="speaker">`, templ.EscapeString(string(t.Role)))
		if t.Role == model.RoleStudent {
			h.t("Student")
		} else {
			h.text(name)
		}
		h.raw(`</span>`)
		h.text(t.Text)
		h.raw(`</div>`)
	}
}

func interview(h *html, v model.SessionView) {
	patientInfo(h, v.Patient)
	h.raw(`<div class="card">`)
	turns(h, v)
	h.raw(`</div>`)

	if v.Phase == model.PhasePaused {
		h.raw(`<p class="muted">`)
		h.t("Paused")
		h.raw(`</p>`)
	}
	if v.Notice != "" {
		h.raw(`<div class="notice">`)
		h.text(v.Notice)
		h.raw(`</div>`)
	}

	name := ""
	if v.Patient != nil {
		name = v.Patient.Name
	}
	h.raw(`<form class="waits" method="post" action="` + h.path("/input") + `">`)
	h.csrf()
	h.raw(`<input type="text" name="text" autofocus autocomplete="off" placeholder="`)
	h.t("InputPlaceholder")
	h.raw(`"> <button class="primary" type="submit">`)
	h.t("Send")
	h.raw(`</button>`)
	h.waiting(appI18n.Td(h.ctx, "Thinking", map[string]any{"Name": name}))
	h.raw(`</form>`)
}

func completeHeader(h *html, v model.SessionView) {
	h.raw(`<div class="card"><h2>`)
	h.t("InterviewComplete")
	h.raw(`</h2>`)
	if v.Patient != nil && v.Briefing != nil {
		h.raw(`<p><strong>`)
		h.t("Patient")
		h.raw(`:</strong> `)
		h.text(v.Patient.Name)
		h.raw(`</p><p><strong>`)
		h.t("Consultation")
		h.raw(`:</strong> `)
		h.text(v.Briefing.Title)
		h.raw(`</p>`)
	}
	h.raw(`<p>`)
	h.text(appI18n.Tp(h.ctx, "ExchangeCount", v.Exchanges()))
	h.raw(`</p></div>`)
}

func notePrompt(h *html, v model.SessionView) {
	completeHeader(h, v)
	if v.Notice != "" {
		h.raw(`<div class="notice">`)
		h.text(v.Notice)
		h.raw(`</div>`)
	}
	h.raw(`<div class="card"><p><strong>`)
	h.t("NotePrompt")
	h.raw(`</strong></p><form class="waits" method="post" action="` + h.path("/note") + `">`)
	h.csrf()
	h.raw(`<label>`)
	h.t("NoteQuestion")
	h.raw(`<input type="text" name="note" placeholder="`)
	h.t("NotePlaceholder")
	h.raw(`"></label><p><button class="primary" type="submit">`)
	h.t("Submit")
	h.raw(`</button> <button type="submit" name="skip" value="1">`)
	h.t("Skip")
	h.raw(`</button></p>`)
	h.waiting(appI18n.T(h.ctx, "GeneratingFeedback"))
	h.raw(`</form></div>`)
}

func feedback(h *html, v model.SessionView) {
	completeHeader(h, v)
	if v.ImprovementNote != "" {
		h.raw(`<div class="success">`)
		h.t("NoteThanks")
		h.raw(`</div>`)
	}
	h.raw(`<div class="card"><h2>`)
	h.t("FeedbackTitle")
	h.raw(`</h2><div class="critique">`)
	h.text(v.Critique)
	h.raw(`</div></div>`)

	h.raw(`<div class="card"><p><a href="` + h.path("/transcript") + `">`)
	h.t("DownloadTranscript")
	h.raw(`</a></p><details><summary>`)
	h.t("ViewTranscript")
	h.raw(`</summary>`)
	turns(h, v)
	h.raw(`</details></div><div class="card">`)
	h.button("/try-again", "TryAgain", true)
	h.button("/different", "DifferentPatient", false)
	h.raw(`</div>`)
}
