package prompts

import (
	"encoding/json"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/pavelanni/maaspractice/internal/model"
)

const fullCase = `{
  "patient_id": "P1",
  "patient": {
    "name": "Margaret Ellis", "age": 58, "gender": "female",
    "occupation": "Primary school teacher", "education_level": "Bachelor",
    "personality": {"baseline_style": "Polite, understated", "trust_building": "Slow", "core_traits": ["stoic", "private"]}
  },
  "background": {"living_situation": "Lives with husband", "family": "Two adult sons", "support_system": "Sister nearby", "work_context": "Full time"},
  "baseline_medical_history": {
    "past_medical": ["Hypertension"], "allergies": [], "family_history": ["Father: bowel cancer"],
    "social_history": {"smoking": "Never", "alcohol": "Weekends"}
  },
  "consultations": [{
    "consultation_id": "C1",
    "title": "Lower back pain",
    "learning_objectives": ["Explore ICE", "Screen red flags"],
    "history_at_this_point": {"current_medications": ["Amlodipine 5mg"]},
    "scenario": {"time_context": "Monday morning", "appearance": "Stiff", "emotional_state": "Worried", "trust_level": "Guarded"},
    "presenting_problem": {"stated_reason": "Back pain", "real_reason": "Fear of cancer", "hidden_agenda": "Father's illness"},
    "ideas_concerns_expectations": {"ideas": "Slipped disc", "concerns": "Cancer", "expectations": "Scan"},
    "complaint": {
      "chief_complaint": "Back pain for 3 weeks",
      "heuristic_1_nature": {"location": "lumbar", "character": "dull"},
      "heuristic_2_time": {"onset": "3 weeks"},
      "heuristic_3_modifiers": {"worse": "sitting"},
      "heuristic_4_accompanying": {"weight_loss": "none"}
    },
    "red_flags": {"present": [], "absent": ["saddle anaesthesia"], "notes": "Reassure if screened"},
    "simulation_guidance": {
      "information_reveal": {
        "freely_shared": ["pain"], "if_asked_directly": ["sleep"],
        "if_asked_sensitively": ["father"], "will_not_share": ["fear of dying"]
      },
      "emotional_moments": ["mention of father"],
      "guardrails": ["Never diagnose yourself"]
    },
    "maas_focus": {"exploration": "high"}
  }]
}`

func loadFixture(t *testing.T, raw string) (*model.Case, *model.Consultation) {
	t.Helper()
	var c model.Case
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return &c, &c.Consultations[0]
}

func TestCompileSystemInstructionsHeaders(t *testing.T) {
	full, fullSc := loadFixture(t, fullCase)
	sparse, sparseSc := loadFixture(t, `{"patient_id": "P2", "patient": {"name": "Tom"}, "consultations": [{"consultation_id": "A"}]}`)

	tests := []struct {
		name string
		c    *model.Case
		sc   *model.Consultation
	}{
		{"complete case", full, fullSc},
		{"sparse case", sparse, sparseSc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CompileSystemInstructions(Library{}, tt.c, tt.sc)
			for _, h := range MandatoryHeaders {
				if n := strings.Count(out, h+"\n"); n != 1 {
					t.Errorf("header %q appears %d times", h, n)
				}
			}
			if strings.Contains(out, HeaderFollowUp) {
				t.Error("follow-up section should be omitted without for_follow_up")
			}
			if !strings.HasSuffix(out, "Wait for the student to speak first.\n") {
				t.Error("prompt should end with the closing directive")
			}
		})
	}
}

func TestCompileSystemInstructionsOrder(t *testing.T) {
	c, sc := loadFixture(t, fullCase)
	sc.FollowUp = &model.FollowUp{PreviousSummary: "Back pain reviewed"}
	out := CompileSystemInstructions(Library{PatientSimulation: "BASE PROMPT"}, c, sc)

	if !strings.HasPrefix(out, "BASE PROMPT\n\n") {
		t.Error("prompt should start with the patient-simulation template")
	}
	order := []string{
		HeaderIdentity, HeaderPersonality, HeaderBackground, HeaderHistory,
		HeaderConsultation, HeaderPresenting, HeaderICE, HeaderClinical,
		HeaderFollowUp, HeaderRedFlags, HeaderReveal, HeaderTriggers, HeaderGuardrails,
		"You are now Margaret Ellis.",
	}
	last := -1
	for _, h := range order {
		i := strings.Index(out, h)
		if i < 0 {
			t.Fatalf("missing %q", h)
		}
		if i < last {
			t.Errorf("%q is out of order", h)
		}
		last = i
	}
}

func TestCompileSystemInstructionsPlaceholders(t *testing.T) {
	c, sc := loadFixture(t, `{"patient_id": "P2", "patient": {"name": "Tom"}, "consultations": [{"consultation_id": "A"}]}`)
	out := CompileSystemInstructions(Library{}, c, sc)

	for _, want := range []string{
		"**Age:** N/A",
		"**Hidden agenda:** None",
		"**Past medical:** None",
		"**Heuristic 1 - Nature:**\nNone",
		"**Setting:** N/A",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected placeholder %q in output", want)
		}
	}
}

func TestCompileSystemInstructionsRendersData(t *testing.T) {
	c, sc := loadFixture(t, fullCase)
	out := CompileSystemInstructions(Library{}, c, sc)

	for _, want := range []string{
		"**Age:** 58 years old",
		"- Core traits: [\"stoic\",\"private\"]",
		"**Current medications:** [\"Amlodipine 5mg\"]",
		"{\n  \"location\": \"lumbar\",\n  \"character\": \"dull\"\n}",
		"**Allergies:** []",
		"**Hidden agenda:** Father's illness",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestCompileSystemInstructionsDeterministic(t *testing.T) {
	c, sc := loadFixture(t, fullCase)
	lib := Library{PatientSimulation: "base"}
	first := CompileSystemInstructions(lib, c, sc)
	for i := 0; i < 5; i++ {
		if got := CompileSystemInstructions(lib, c, sc); got != first {
			t.Fatal("output differs between identical calls")
		}
	}
}

func TestFollowUpSection(t *testing.T) {
	_, sc := loadFixture(t, fullCase)

	t.Run("without results", func(t *testing.T) {
		sc.FollowUp = &model.FollowUp{PreviousSummary: "Discussed analgesia"}
		out := followUpSection(nil, sc)
		if !strings.HasPrefix(out, HeaderFollowUp) {
			t.Error("section should start with its header")
		}
		if !strings.Contains(out, "**Interval since last visit:** N/A") {
			t.Error("missing interval placeholder")
		}
		if strings.Contains(out, "Test results to discuss") {
			t.Error("results block should be omitted when results are absent")
		}
	})

	t.Run("with results", func(t *testing.T) {
		sc.FollowUp = &model.FollowUp{
			Results: &model.Results{Tests: json.RawMessage(`{"FBC": "normal"}`), HowToExplain: "Plainly"},
		}
		out := followUpSection(nil, sc)
		if !strings.Contains(out, "**Test results to discuss:**\n{\n  \"FBC\": \"normal\"\n}") {
			t.Errorf("missing results block:\n%s", out)
		}
		if !strings.Contains(out, "**How to explain results:** Plainly") {
			t.Error("missing how-to-explain line")
		}
	})
}

func TestCompileCritiqueRequest(t *testing.T) {
	c, sc := loadFixture(t, fullCase)
	turns := []model.Turn{
		{Role: model.RoleStudent, Text: "Hello, what brings you in today?"},
		{Role: model.RolePatient, Text: "My back."},
	}

	tests := []struct {
		mode      Mode
		want      string
		wantFocus bool
	}{
		{ModeInterim, "brief interim feedback", true},
		{ModeAdvice, "Never reveal the answer", true},
		{ModeFull, "complete MAAS-mapped feedback", true},
		{ModeSummary, "One specific thing to work on next time", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			out := CompileCritiqueRequest(c, sc, turns, tt.mode)
			if !strings.Contains(out, "## Case: Lower back pain") {
				t.Error("missing case title")
			}
			if !strings.Contains(out, "Student: Hello, what brings you in today?\nMargaret Ellis: My back.") {
				t.Errorf("missing labeled transcript:\n%s", out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("missing mode instruction %q", tt.want)
			}
			if got := strings.Contains(out, "## MAAS Focus"); got != tt.wantFocus {
				t.Errorf("MAAS focus present = %v, want %v", got, tt.wantFocus)
			}
		})
	}
}

func TestCritiqueSystem(t *testing.T) {
	if got := CritiqueSystem(Library{}, ModeFull); got != defaultFeedbackSystem {
		t.Errorf("expected default feedback system, got %q", got)
	}
	lib := Library{FeedbackGeneration: "MAAS rubric\n"}
	if got := CritiqueSystem(lib, ModeInterim); got != "MAAS rubric" {
		t.Errorf("expected feedback template, got %q", got)
	}
	if got := CritiqueSystem(lib, ModeSummary); got != summarySystem {
		t.Errorf("summary should use its own system text, got %q", got)
	}
	if !ModeFull.LongForm() || ModeAdvice.LongForm() {
		t.Error("only full mode is long-form")
	}
}

func TestLoadLibrary(t *testing.T) {
	lib, err := LoadLibrary(fstest.MapFS{
		"patient-simulation.txt": {Data: []byte("You are a simulated patient.")},
	})
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	if lib.Get(PatientSimulation) != "You are a simulated patient." {
		t.Errorf("unexpected template: %q", lib.Get(PatientSimulation))
	}
	if lib.Get(FeedbackGeneration) != "" {
		t.Error("missing template should load as empty")
	}
}
