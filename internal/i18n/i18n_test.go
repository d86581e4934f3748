package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "MAAS Practice" {
		t.Errorf("T(AppTitle) = %q, want 'MAAS Practice'", got)
	}

	got = T(ctx, "StartInterview")
	if got != "Start Interview" {
		t.Errorf("T(StartInterview) = %q, want 'Start Interview'", got)
	}

	got = T(ctx, "NoticePaused")
	if got != "Take your time. Type anything when you're ready to continue." {
		t.Errorf("T(NoticePaused) = %q", got)
	}
}

func TestTranslateDutch(t *testing.T) {
	ctx := initLang(t, "nl")

	got := T(ctx, "StartInterview")
	if got != "Start gesprek" {
		t.Errorf("T(StartInterview) = %q, want 'Start gesprek'", got)
	}

	got = T(ctx, "DifferentPatient")
	if got != "Andere patiënt" {
		t.Errorf("T(DifferentPatient) = %q, want 'Andere patiënt'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "MessageCount", 1)
	if got1 != "1 message" {
		t.Errorf("Tp(MessageCount, 1) = %q, want '1 message'", got1)
	}

	got5 := Tp(ctx, "MessageCount", 5)
	if got5 != "5 messages" {
		t.Errorf("Tp(MessageCount, 5) = %q, want '5 messages'", got5)
	}

	got := Tp(ctx, "ExchangeCount", 3)
	if got != "Total exchanges: 3" {
		t.Errorf("Tp(ExchangeCount, 3) = %q, want 'Total exchanges: 3'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "NoticeCredentialMissing", map[string]any{"EnvVar": "MAAS_API_KEY"})
	if got != "Error: MAAS_API_KEY not set. Please set the environment variable." {
		t.Errorf("Td(NoticeCredentialMissing) = %q", got)
	}

	got = Td(ctx, "DurationMinutes", map[string]any{"Minutes": "15"})
	if got != "~15 min" {
		t.Errorf("Td(DurationMinutes) = %q, want '~15 min'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")

	found := map[string]bool{}
	for _, tag := range Languages() {
		found[tag.String()] = true
	}
	for _, want := range []string{"en", "nl"} {
		if !found[want] {
			t.Errorf("locale %q not loaded", want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Restart")
	}))

	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{"default language", "", "Restart"},
		{"accept dutch", "nl-NL,nl;q=0.9,en;q=0.8", "Opnieuw beginnen"},
		{"unknown language falls back", "fr-FR", "Restart"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("T(Restart) = %q, want %q", got, tt.want)
			}
		})
	}
}
