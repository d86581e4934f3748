package prompts

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pavelanni/maaspractice/internal/model"
)

// Section headers of the patient-simulation instructions, in render order.
const (
	HeaderIdentity     = "## Patient Identity"
	HeaderPersonality  = "## Personality"
	HeaderBackground   = "## Background"
	HeaderHistory      = "## Medical History at This Point"
	HeaderConsultation = "## This Consultation"
	HeaderPresenting   = "## Presenting Problem"
	HeaderICE          = "## Ideas, Concerns, Expectations"
	HeaderClinical     = "## Clinical Information"
	HeaderFollowUp     = "## Follow-Up Context"
	HeaderRedFlags     = "## Red Flags"
	HeaderReveal       = "## Information Reveal Rules"
	HeaderTriggers     = "## Emotional Triggers"
	HeaderGuardrails   = "## Guardrails"
)

// MandatoryHeaders lists the headers present in every compiled instruction block.
var MandatoryHeaders = []string{
	HeaderIdentity, HeaderPersonality, HeaderBackground, HeaderHistory,
	HeaderConsultation, HeaderPresenting, HeaderICE, HeaderClinical,
	HeaderRedFlags, HeaderReveal, HeaderTriggers, HeaderGuardrails,
}

const (
	placeholderNA   = "N/A"
	placeholderNone = "None"
)

// section renders one labeled block. An empty result omits the block.
type section func(c *model.Case, sc *model.Consultation) string

var sections = []section{
	identitySection,
	personalitySection,
	backgroundSection,
	historySection,
	consultationSection,
	presentingSection,
	iceSection,
	clinicalSection,
	followUpSection,
	redFlagsSection,
	revealSection,
	triggersSection,
	guardrailsSection,
}

// CompileSystemInstructions renders the patient-simulation instructions for
// one consultation of a case. The output depends only on its inputs.
func CompileSystemInstructions(lib Library, c *model.Case, sc *model.Consultation) string {
	parts := make([]string, 0, len(sections)+3)
	if base := strings.TrimSpace(lib.Get(PatientSimulation)); base != "" {
		parts = append(parts, base)
	}
	for _, s := range sections {
		if block := s(c, sc); block != "" {
			parts = append(parts, block)
		}
	}
	parts = append(parts, "---", closingDirective(c))
	return strings.Join(parts, "\n\n") + "\n"
}

func closingDirective(c *model.Case) string {
	return "You are now " + c.Identity.Name.Or(placeholderNA) +
		". Respond only as this patient. Wait for the student to speak first."
}

func identitySection(c *model.Case, _ *model.Consultation) string {
	id := c.Identity
	age := placeholderNA
	if a := id.Age.String(); a != "" {
		age = a + " years old"
	}
	return lines(HeaderIdentity, "",
		field("Name", id.Name.Or(placeholderNA)),
		field("Age", age),
		field("Gender", id.Gender.Or(placeholderNA)),
		field("Occupation", id.Occupation.Or(placeholderNA)),
		field("Education", id.EducationLevel.Or(placeholderNA)),
	)
}

func personalitySection(c *model.Case, _ *model.Consultation) string {
	p := c.Identity.Personality
	return lines(HeaderPersonality, "",
		"- Style: "+p.BaselineStyle.Or(placeholderNA),
		"- Trust building: "+p.TrustBuilding.Or(placeholderNA),
		"- Core traits: "+inline(p.CoreTraits),
	)
}

func backgroundSection(c *model.Case, _ *model.Consultation) string {
	b := c.Background
	return lines(HeaderBackground, "",
		field("Living situation", b.LivingSituation.Or(placeholderNA)),
		field("Family", b.Family.Or(placeholderNA)),
		field("Support system", b.SupportSystem.Or(placeholderNA)),
		field("Work context", b.WorkContext.Or(placeholderNA)),
	)
}

func historySection(c *model.Case, sc *model.Consultation) string {
	h := c.MedicalHistory
	return lines(HeaderHistory, "",
		field("Past medical", inline(h.PastMedical)),
		field("Current medications", inline(sc.HistoryAtThisPoint.CurrentMedications)),
		field("Allergies", inline(h.Allergies)),
		field("Family history", inline(h.FamilyHistory)),
		field("Smoking", h.SocialHistory.Smoking.Or(placeholderNA)),
		field("Alcohol", h.SocialHistory.Alcohol.Or(placeholderNA)),
	)
}

func consultationSection(_ *model.Case, sc *model.Consultation) string {
	s := sc.Scenario
	return lines(HeaderConsultation, "",
		field("Setting", s.TimeContext.Or(placeholderNA)),
		field("Appearance", s.Appearance.Or(placeholderNA)),
		field("Emotional state", s.EmotionalState.Or(placeholderNA)),
		field("Trust level", s.TrustLevel.Or(placeholderNA)),
	)
}

func presentingSection(_ *model.Case, sc *model.Consultation) string {
	p := sc.PresentingProblem
	return lines(HeaderPresenting, "",
		field("Stated reason", p.StatedReason.Or(placeholderNA)),
		field("Real reason", p.RealReason.Or(placeholderNA)),
		field("Hidden agenda", p.HiddenAgenda.Or(placeholderNone)),
	)
}

func iceSection(_ *model.Case, sc *model.Consultation) string {
	ice := sc.ICE
	return lines(HeaderICE, "",
		field("Ideas (what patient thinks)", ice.Ideas.Or(placeholderNA)),
		field("Concerns (what patient fears)", ice.Concerns.Or(placeholderNA)),
		field("Expectations (what patient wants)", ice.Expectations.Or(placeholderNA)),
	)
}

func clinicalSection(_ *model.Case, sc *model.Consultation) string {
	cp := sc.Complaint
	return lines(HeaderClinical, "",
		field("Chief Complaint", cp.ChiefComplaint.Or(placeholderNA)), "",
		"**Heuristic 1 - Nature:**", block(cp.Nature), "",
		"**Heuristic 2 - Time:**", block(cp.Time), "",
		"**Heuristic 3 - Modifiers:**", block(cp.Modifiers), "",
		"**Heuristic 4 - Accompanying:**", block(cp.Accompanying),
	)
}

func followUpSection(_ *model.Case, sc *model.Consultation) string {
	fu := sc.FollowUp
	if fu == nil {
		return ""
	}
	out := lines(HeaderFollowUp, "",
		field("Previous consultation", fu.PreviousSummary.Or(placeholderNA)), "",
		"**What was recommended:**", block(fu.WhatWasRecommended), "",
		"**What patient remembers:**", block(fu.WhatPatientRemembers), "",
		"**What patient forgot:**", block(fu.WhatPatientForgot), "",
		field("Interval since last visit", fu.Interval.Duration.Or(placeholderNA)),
		field("Symptom evolution", fu.Interval.SymptomEvolution.Or(placeholderNA)),
		field("Compliance", fu.Interval.Compliance.Details.Or(placeholderNA)),
		field("Patient experience during interval", fu.Interval.PatientExperience.Or(placeholderNA)),
	)
	if fu.Results != nil {
		out += "\n\n" + lines(
			"**Test results to discuss:**", block(fu.Results.Tests), "",
			field("How to explain results", fu.Results.HowToExplain.Or(placeholderNA)),
		)
	}
	return out
}

func redFlagsSection(_ *model.Case, sc *model.Consultation) string {
	rf := sc.RedFlags
	return lines(HeaderRedFlags, "",
		field("Present", inline(rf.Present)),
		field("Absent", inline(rf.Absent)),
		field("Notes", rf.Notes.Or(placeholderNA)),
	)
}

func revealSection(_ *model.Case, sc *model.Consultation) string {
	r := sc.Guidance.Reveal
	return lines(HeaderReveal, "",
		"**Freely shared (volunteer without prompting):**", block(r.FreelyShared), "",
		"**If asked directly:**", block(r.IfAskedDirectly), "",
		"**If asked sensitively (requires trust):**", block(r.IfAskedSensitively), "",
		"**Will not share (protect until significant rapport):**", block(r.WillNotShare),
	)
}

func triggersSection(_ *model.Case, sc *model.Consultation) string {
	return lines(HeaderTriggers, "",
		"**Emotional moments (topics that trigger emotion):**",
		block(sc.Guidance.EmotionalMoments),
	)
}

func guardrailsSection(_ *model.Case, sc *model.Consultation) string {
	return lines(HeaderGuardrails, "", block(sc.Guidance.Guardrails))
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n")
}

func field(label, value string) string {
	return "**" + label + ":** " + value
}

// block renders a structured value as indented JSON, keeping the stored key order.
func block(raw json.RawMessage) string {
	if isEmpty(raw) {
		return placeholderNone
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// inline renders a structured value as single-line JSON.
func inline(raw json.RawMessage) string {
	if isEmpty(raw) {
		return placeholderNone
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isEmpty(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
