package model

import "encoding/json"

// Case is a patient profile plus its ordered consultations, loaded from one
// JSON record. Cases are never modified after loading.
type Case struct {
	ID ID `json:"patient_id"`
	PatientProfile
	Consultations []Consultation `json:"consultations"`
}

// PatientProfile holds the parts of a case that stay constant across consultations.
type PatientProfile struct {
	Identity       Identity       `json:"patient"`
	Background     Background     `json:"background"`
	MedicalHistory MedicalHistory `json:"baseline_medical_history"`
}

// Identity describes who the patient is.
type Identity struct {
	Name           Text        `json:"name"`
	Age            Text        `json:"age"`
	Gender         Text        `json:"gender"`
	Occupation     Text        `json:"occupation"`
	EducationLevel Text        `json:"education_level"`
	Personality    Personality `json:"personality"`
}

// Personality holds the persona's behavioral descriptors.
type Personality struct {
	BaselineStyle Text            `json:"baseline_style"`
	TrustBuilding Text            `json:"trust_building"`
	CoreTraits    json.RawMessage `json:"core_traits"`
}

type Background struct {
	LivingSituation Text `json:"living_situation"`
	Family          Text `json:"family"`
	SupportSystem   Text `json:"support_system"`
	WorkContext     Text `json:"work_context"`
}

type MedicalHistory struct {
	PastMedical   json.RawMessage `json:"past_medical"`
	Allergies     json.RawMessage `json:"allergies"`
	FamilyHistory json.RawMessage `json:"family_history"`
	SocialHistory SocialHistory   `json:"social_history"`
}

type SocialHistory struct {
	Smoking Text `json:"smoking"`
	Alcohol Text `json:"alcohol"`
}

// Consultation is one simulated consultation scenario of a case.
type Consultation struct {
	ID                 ID                `json:"consultation_id"`
	Title              Text              `json:"title"`
	Difficulty         Text              `json:"difficulty"`
	EstimatedMinutes   Text              `json:"estimated_duration_minutes"`
	Type               Text              `json:"type"`
	LearningObjectives []string          `json:"learning_objectives"`
	HistoryAtThisPoint HistoryAtPoint    `json:"history_at_this_point"`
	Scenario           Scenario          `json:"scenario"`
	PresentingProblem  PresentingProblem `json:"presenting_problem"`
	ICE                ICE               `json:"ideas_concerns_expectations"`
	Complaint          Complaint         `json:"complaint"`
	RedFlags           RedFlags          `json:"red_flags"`
	Guidance           Guidance          `json:"simulation_guidance"`
	MAASFocus          json.RawMessage   `json:"maas_focus"`
	FollowUp           *FollowUp         `json:"for_follow_up"`
}

type HistoryAtPoint struct {
	CurrentMedications json.RawMessage `json:"current_medications"`
}

// Scenario sets the scene of the consultation.
type Scenario struct {
	TimeContext    Text `json:"time_context"`
	Appearance     Text `json:"appearance"`
	EmotionalState Text `json:"emotional_state"`
	TrustLevel     Text `json:"trust_level"`
}

type PresentingProblem struct {
	StatedReason Text `json:"stated_reason"`
	RealReason   Text `json:"real_reason"`
	HiddenAgenda Text `json:"hidden_agenda"`
}

// ICE holds the patient's ideas, concerns and expectations.
type ICE struct {
	Ideas        Text `json:"ideas"`
	Concerns     Text `json:"concerns"`
	Expectations Text `json:"expectations"`
}

// Complaint structures the chief complaint along four clinical-reasoning heuristics.
type Complaint struct {
	ChiefComplaint Text            `json:"chief_complaint"`
	Nature         json.RawMessage `json:"heuristic_1_nature"`
	Time           json.RawMessage `json:"heuristic_2_time"`
	Modifiers      json.RawMessage `json:"heuristic_3_modifiers"`
	Accompanying   json.RawMessage `json:"heuristic_4_accompanying"`
}

type RedFlags struct {
	Present json.RawMessage `json:"present"`
	Absent  json.RawMessage `json:"absent"`
	Notes   Text            `json:"notes"`
}

// Guidance tells the persona what to reveal, when, and what never to do.
type Guidance struct {
	Reveal           RevealTiers     `json:"information_reveal"`
	EmotionalMoments json.RawMessage `json:"emotional_moments"`
	Guardrails       json.RawMessage `json:"guardrails"`
}

type RevealTiers struct {
	FreelyShared       json.RawMessage `json:"freely_shared"`
	IfAskedDirectly    json.RawMessage `json:"if_asked_directly"`
	IfAskedSensitively json.RawMessage `json:"if_asked_sensitively"`
	WillNotShare       json.RawMessage `json:"will_not_share"`
}

// FollowUp links a consultation to the previous one with the same patient.
type FollowUp struct {
	PreviousSummary      Text            `json:"previous_consultation_summary"`
	WhatWasRecommended   json.RawMessage `json:"what_was_recommended"`
	WhatPatientRemembers json.RawMessage `json:"what_patient_remembers"`
	WhatPatientForgot    json.RawMessage `json:"what_patient_forgot"`
	Interval             Interval        `json:"interval"`
	Results              *Results        `json:"results"`
}

type Interval struct {
	Duration          Text       `json:"duration"`
	SymptomEvolution  Text       `json:"symptom_evolution"`
	Compliance        Compliance `json:"compliance"`
	PatientExperience Text       `json:"patient_experience"`
}

type Compliance struct {
	Details Text `json:"details"`
}

type Results struct {
	Tests        json.RawMessage `json:"tests"`
	HowToExplain Text            `json:"how_to_explain"`
}

// Name returns the persona's display name.
func (c *Case) Name() string {
	return c.Identity.Name.String()
}

// Consultation returns the consultation with the given id.
func (c *Case) Consultation(id ID) (*Consultation, bool) {
	for i := range c.Consultations {
		if c.Consultations[i].ID == id {
			return &c.Consultations[i], true
		}
	}
	return nil, false
}

// Summary returns the selection-list entry for the case.
func (c *Case) Summary() CaseSummary {
	s := CaseSummary{ID: c.ID, Name: c.Name()}
	for i := range c.Consultations {
		s.Consultations = append(s.Consultations, c.Consultations[i].Summary())
	}
	return s
}

// Summary returns the briefing information for the consultation.
func (sc *Consultation) Summary() ConsultationSummary {
	return ConsultationSummary{
		ID:                 sc.ID,
		Title:              sc.Title.String(),
		Difficulty:         sc.Difficulty.Or("N/A"),
		EstimatedMinutes:   sc.EstimatedMinutes.Or("?"),
		Type:               sc.Type.Or("N/A"),
		LearningObjectives: sc.LearningObjectives,
	}
}

// PatientInfo returns what the student may see about the patient.
func (c *Case) PatientInfo(sc *Consultation) PatientInfo {
	return PatientInfo{
		Name:       c.Name(),
		Age:        c.Identity.Age.Or("N/A"),
		Occupation: c.Identity.Occupation.Or("N/A"),
		Appearance: sc.Scenario.Appearance.Or("N/A"),
	}
}
