package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/maaspractice/internal/cases"
	"github.com/pavelanni/maaspractice/internal/handler/views"
	appI18n "github.com/pavelanni/maaspractice/internal/i18n"
	"github.com/pavelanni/maaspractice/internal/model"
	"github.com/pavelanni/maaspractice/internal/session"
	"github.com/pavelanni/maaspractice/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sess   *session.Session
	store  *store.Store
	config model.PracticeConfig
}

// New creates a new Handler. The store is optional; without it the history
// endpoint reports 404.
func New(sess *session.Session, s *store.Store, cfg model.PracticeConfig) *Handler {
	return &Handler{sess: sess, store: s, config: cfg}
}

// Router builds the full HTTP handler: request logging, panic recovery,
// localization, and the routes mounted under the base path when one is set.
func (h *Handler) Router(lang string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath := h.config.BasePath; basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/", h.handleIndex)
		r.Get("/transcript", h.handleTranscript)
		r.Get("/history", h.handleHistory)
		r.Post("/select", h.handleSelect)
		r.Post("/start", h.handleStart)
		r.Post("/input", h.handleInput)
		r.Post("/end", h.handleEnd)
		r.Post("/restart", h.handleRestart)
		r.Post("/different", h.handleDifferent)
		r.Post("/note", h.handleNote)
		r.Post("/try-again", h.handleTryAgain)
	})
}

// BasePathMiddleware makes the configured base path available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	v := h.sess.View()
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, viewResponse{View: v, Cases: h.sess.ListCases()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := views.Page(views.PageData{
		View:     v,
		Cases:    h.sess.ListCases(),
		ErrorKey: errorKeys[r.URL.Query().Get("error")],
	})
	if err := page.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	v, err := h.sess.SelectScenario(model.ID(r.FormValue("case_id")), model.ID(r.FormValue("scenario_id")))
	h.respond(w, r, v, err)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	v, err := h.sess.StartInterview()
	h.respond(w, r, v, err)
}

func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	v, err := h.sess.SubmitInput(r.Context(), r.FormValue("text"))
	h.respond(w, r, v, err)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	v, err := h.sess.EndInterview()
	h.respond(w, r, v, err)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	v, err := h.sess.Restart()
	h.respond(w, r, v, err)
}

func (h *Handler) handleDifferent(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.sess.DifferentPatient(), nil)
}

func (h *Handler) handleNote(w http.ResponseWriter, r *http.Request) {
	skip := r.FormValue("skip") != ""
	v, err := h.sess.SubmitImprovementNote(r.Context(), r.FormValue("note"), skip)
	h.respond(w, r, v, err)
}

func (h *Handler) handleTryAgain(w http.ResponseWriter, r *http.Request) {
	v, err := h.sess.TryAgain()
	h.respond(w, r, v, err)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	art, v, err := h.sess.DownloadTranscript()
	if err != nil {
		h.respond(w, r, v, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	if _, err := w.Write([]byte(art.Content)); err != nil {
		slog.Error("write transcript", "error", err)
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.NotFound(w, r)
		return
	}
	export, err := h.store.ExportAttempts(r.Context(), model.ID(r.URL.Query().Get("case")), model.ID(r.URL.Query().Get("scenario")))
	if err != nil {
		slog.Error("export attempts", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

type viewResponse struct {
	View  model.SessionView   `json:"view"`
	Cases []model.CaseSummary `json:"cases,omitempty"`
	Error string              `json:"error,omitempty"`
}

// respond answers a control-surface call: JSON callers get the view, browsers
// are redirected back to the page.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v model.SessionView, err error) {
	status, code := classify(err)
	if err != nil {
		slog.Info("action rejected", "path", r.URL.Path, "phase", v.Phase, "error", err)
	}

	if wantsJSON(r) {
		resp := viewResponse{View: v}
		if err != nil {
			resp.Error = err.Error()
		}
		writeJSON(w, status, resp)
		return
	}

	target := h.path("/")
	if code != "" {
		target += "?error=" + url.QueryEscape(code)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// errorKeys maps the error codes carried in redirects to message ids.
var errorKeys = map[string]string{
	"invalid-action": "ErrorInvalidAction",
	"empty-input":    "ErrorEmptyInput",
	"no-cases":       "NoCases",
	"unknown-case":   "ErrorUnknownCase",
}

func classify(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, session.ErrInvalidPhase):
		return http.StatusConflict, "invalid-action"
	case errors.Is(err, session.ErrEmptyInput):
		return http.StatusBadRequest, "empty-input"
	case errors.Is(err, session.ErrNoCases):
		return http.StatusConflict, "no-cases"
	case errors.Is(err, cases.ErrUnknownCase):
		return http.StatusNotFound, "unknown-case"
	default:
		return http.StatusInternalServerError, "invalid-action"
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
