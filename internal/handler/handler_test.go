package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/maaspractice/internal/cases"
	appI18n "github.com/pavelanni/maaspractice/internal/i18n"
	"github.com/pavelanni/maaspractice/internal/llm"
	"github.com/pavelanni/maaspractice/internal/model"
	"github.com/pavelanni/maaspractice/internal/prompts"
	"github.com/pavelanni/maaspractice/internal/session"
	"github.com/pavelanni/maaspractice/internal/store"
)

type stubGen struct{ calls int }

func (g *stubGen) Generate(_ context.Context, req llm.Request) (string, error) {
	g.calls++
	if strings.Contains(req.System, "simulated patient") {
		return "It's my back, doctor.", nil
	}
	return "You built good rapport.", nil
}

func testCatalog() *cases.Catalog {
	c := model.Case{ID: "P1"}
	c.Identity.Name = "Margaret Ellis"
	c.Identity.Age = "58"
	c.Consultations = []model.Consultation{
		{ID: "C1", Title: "Lower back pain", Difficulty: "Beginner"},
	}
	return cases.NewCatalog(c)
}

func newTestHandler(t *testing.T, cfg model.PracticeConfig, s *store.Store) (http.Handler, *stubGen) {
	t.Helper()
	require.NoError(t, appI18n.Init("en"))

	gen := &stubGen{}
	sess := session.New(session.Deps{
		Catalog:   testCatalog(),
		Generator: gen,
		Prompts: prompts.Library{
			prompts.PatientSimulation:  "You are a simulated patient.",
			prompts.FeedbackGeneration: "You are a communication skills tutor.",
		},
		Recorder: recorderOrNil(s),
		Config:   cfg,
	})
	return New(sess, s, cfg).Router("en"), gen
}

func recorderOrNil(s *store.Store) session.Recorder {
	if s == nil {
		return nil
	}
	return s
}

// client replays the CSRF cookie and header the way a browser or API
// caller would.
type client struct {
	t     *testing.T
	h     http.Handler
	token string
	json  bool
}

func (c *client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if c.json {
		req.Header.Set("Accept", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: c.token})
		req.Header.Set(csrfHeaderName, c.token)
	}

	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == csrfCookieName {
			c.token = ck.Value
		}
	}
	return rec
}

func (c *client) view(rec *httptest.ResponseRecorder) viewResponse {
	c.t.Helper()
	var resp viewResponse
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t, model.PracticeConfig{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestIndexRendersSelection(t *testing.T) {
	h, _ := newTestHandler(t, model.PracticeConfig{}, nil)
	c := &client{t: t, h: h}

	rec := c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>MAAS Practice</title>")
	assert.Contains(t, body, "Margaret Ellis")
	assert.Contains(t, body, "Lower back pain")
	assert.Contains(t, body, `name="csrf_token"`)
	assert.NotEmpty(t, c.token)
}

func TestPostWithoutTokenRejected(t *testing.T) {
	h, _ := newTestHandler(t, model.PracticeConfig{}, nil)
	c := &client{t: t, h: h}

	rec := c.do(http.MethodPost, "/start", url.Values{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/start", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "real-token"})
	req.Header.Set(csrfHeaderName, "forged-toke")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJSONFlow(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h, gen := newTestHandler(t, model.PracticeConfig{}, s)
	c := &client{t: t, h: h, json: true}

	rec := c.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := c.view(rec)
	assert.Equal(t, model.PhaseIdle, resp.View.Phase)
	require.Len(t, resp.Cases, 1)

	rec = c.do(http.MethodPost, "/select", url.Values{"case_id": {"P1"}, "scenario_id": {"C9"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, "/select", url.Values{"case_id": {"P1"}, "scenario_id": {"C1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PhaseBriefing, c.view(rec).View.Phase)

	rec = c.do(http.MethodPost, "/start", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PhaseActive, c.view(rec).View.Phase)

	rec = c.do(http.MethodPost, "/input", url.Values{"text": {"   "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, gen.calls)

	rec = c.do(http.MethodPost, "/input", url.Values{"text": {"What brings you in today?"}})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = c.view(rec)
	require.Len(t, resp.View.Turns, 2)
	assert.Equal(t, "It's my back, doctor.", resp.View.Turns[1].Text)

	rec = c.do(http.MethodPost, "/try-again", url.Values{})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp = c.view(rec)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, model.PhaseActive, resp.View.Phase)

	rec = c.do(http.MethodPost, "/end", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PhaseEnded, c.view(rec).View.Phase)

	rec = c.do(http.MethodPost, "/note", url.Values{"note": {"ignored"}, "skip": {"1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = c.view(rec)
	assert.Equal(t, model.PhaseFeedbackReady, resp.View.Phase)
	assert.Equal(t, "You built good rapport.", resp.View.Critique)
	assert.Empty(t, resp.View.ImprovementNote)

	rec = c.do(http.MethodGet, "/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), `attachment; filename="maas-practice-P1-C1-`))
	assert.Contains(t, rec.Body.String(), "What brings you in today?")
	assert.Contains(t, rec.Body.String(), "You built good rapport.")

	rec = c.do(http.MethodGet, "/history?case=P1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var export model.HistoryExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &export))
	assert.Equal(t, 1, export.Count)

	rec = c.do(http.MethodPost, "/try-again", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = c.view(rec)
	assert.Equal(t, model.PhaseBriefing, resp.View.Phase)
	assert.Empty(t, resp.View.Turns)
}

func TestBrowserRedirectsWithError(t *testing.T) {
	h, _ := newTestHandler(t, model.PracticeConfig{}, nil)
	c := &client{t: t, h: h}
	c.do(http.MethodGet, "/", nil)

	rec := c.do(http.MethodPost, "/end", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?error=invalid-action", rec.Header().Get("Location"))

	rec = c.do(http.MethodGet, "/?error=invalid-action", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div class="error">`)

	rec = c.do(http.MethodPost, "/select", url.Values{"case_id": {"P1"}, "scenario_id": {"C1"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestBasePath(t *testing.T) {
	h, _ := newTestHandler(t, model.PracticeConfig{BasePath: "/nl"}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nl", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/nl/", rec.Header().Get("Location"))

	c := &client{t: t, h: h}
	rec = c.do(http.MethodGet, "/nl/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/nl/select"`)

	var cookiePath string
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == csrfCookieName {
			cookiePath = ck.Path
		}
	}
	assert.Equal(t, "/nl/", cookiePath)

	rec = c.do(http.MethodPost, "/nl/end", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/nl/?error=invalid-action", rec.Header().Get("Location"))
}

func TestHistoryWithoutStore(t *testing.T) {
	h, _ := newTestHandler(t, model.PracticeConfig{}, nil)
	c := &client{t: t, h: h, json: true}

	rec := c.do(http.MethodGet, "/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var formToken = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// pageToken returns the CSRF token embedded in a rendered page's forms.
func pageToken(t *testing.T, body string) string {
	t.Helper()
	m := formToken.FindStringSubmatch(body)
	require.Len(t, m, 2, "no csrf field in page")
	return m[1]
}

func TestPageFormsSurviveTranscriptDownload(t *testing.T) {
	h, _ := newTestHandler(t, model.PracticeConfig{}, nil)
	api := &client{t: t, h: h, json: true}
	api.do(http.MethodGet, "/", nil)
	api.do(http.MethodPost, "/select", url.Values{"case_id": {"P1"}, "scenario_id": {"C1"}})
	api.do(http.MethodPost, "/start", url.Values{})
	api.do(http.MethodPost, "/input", url.Values{"text": {"Hello"}})

	browser := &client{t: t, h: h}
	rec := browser.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token := pageToken(t, rec.Body.String())
	require.Equal(t, browser.token, token)

	rec = browser.do(http.MethodGet, "/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "download must not replace the page's token")

	// Submit a form from the page loaded before the download.
	req := httptest.NewRequest(http.MethodPost, "/end", strings.NewReader(url.Values{"csrf_token": {token}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: browser.token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestWaitingIndicators(t *testing.T) {
	h, _ := newTestHandler(t, model.PracticeConfig{}, nil)
	c := &client{t: t, h: h}
	c.do(http.MethodGet, "/", nil)
	c.do(http.MethodPost, "/select", url.Values{"case_id": {"P1"}, "scenario_id": {"C1"}})
	c.do(http.MethodPost, "/start", url.Values{})

	rec := c.do(http.MethodGet, "/", nil)
	body := rec.Body.String()
	assert.Contains(t, body, `<form class="waits" method="post" action="/input">`)
	assert.Contains(t, body, `<p class="waiting" hidden>Margaret Ellis is thinking...</p>`)
	assert.Contains(t, body, "<script>")

	c.do(http.MethodPost, "/end", url.Values{})
	rec = c.do(http.MethodGet, "/", nil)
	body = rec.Body.String()
	assert.Contains(t, body, `<form class="waits" method="post" action="/note">`)
	assert.Contains(t, body, `<p class="waiting" hidden>Generating feedback...</p>`)
}
