package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/maaspractice/internal/cases"
	"github.com/pavelanni/maaspractice/internal/handler"
	appI18n "github.com/pavelanni/maaspractice/internal/i18n"
	"github.com/pavelanni/maaspractice/internal/llm"
	"github.com/pavelanni/maaspractice/internal/model"
	"github.com/pavelanni/maaspractice/internal/prompts"
	"github.com/pavelanni/maaspractice/internal/secrets"
	"github.com/pavelanni/maaspractice/internal/session"
	"github.com/pavelanni/maaspractice/internal/store"
	"github.com/pavelanni/maaspractice/internal/transcript"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "maaspractice",
		Short: "Clinical interview practice with simulated patients",
	}

	serve := serveCmd()
	root.AddCommand(serve, chatCmd(), casesCmd(), historyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `maaspractice --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data-dir", "data", "Directory holding patients/, prompts/ and the note log")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addPracticeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "maaspractice.db", "SQLite attempt archive path (empty disables the archive)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("secrets-file", "", "TOML secrets file (default <data-dir>/secrets.toml)")
	f.String("api-key-env", "MAAS_API_KEY", "Environment variable holding the API key")
	f.Int("max-turns", model.DefaultMaxTurns, "Maximum transcript turns per interview")
	f.Int("short-tokens", model.DefaultShortTokens, "Output token budget for patient turns and interim feedback")
	f.Int("full-tokens", model.DefaultFullTokens, "Output token budget for the end-of-session critique")
	f.StringP("lang", "l", "en", "UI language (en, nl)")
	f.String("app-name", model.DefaultAppName, "Prefix for exported transcript filenames")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP practice server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	addPracticeFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /nl)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	return cmd
}

func casesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List loaded patient cases and skipped records",
		RunE:  runCases,
	}
	addCommonFlags(cmd)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Export archived practice attempts as JSON",
		RunE:  runHistory,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.String("db", "maaspractice.db", "SQLite attempt archive path")
	f.String("case", "", "Only attempts for this patient case")
	f.String("scenario", "", "Only attempts for this consultation")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MAAS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("maaspractice")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/maaspractice")
	v.AddConfigPath("/etc/maaspractice")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// practice is everything needed to run sessions, shared by serve and chat.
type practice struct {
	catalog *cases.Catalog
	deps    session.Deps
	llm     *llm.Client
	db      *store.Store
	lang    string
}

func (p *practice) Close() {
	if p.db != nil {
		p.db.Close()
	}
}

func loadPractice(ctx context.Context, v *viper.Viper) (*practice, error) {
	dataDir := v.GetString("data-dir")

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	catalog, err := cases.LoadAll(os.DirFS(filepath.Join(dataDir, "patients")))
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}

	lib, err := prompts.LoadLibrary(os.DirFS(filepath.Join(dataDir, "prompts")))
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	secretsFile := v.GetString("secrets-file")
	if secretsFile == "" {
		secretsFile = filepath.Join(dataDir, "secrets.toml")
	}
	envVar := v.GetString("api-key-env")
	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-model"), secrets.APIKey(secretsFile, envVar))
	if err := llmClient.Ping(ctx); err != nil {
		slog.Warn("LLM health check failed", "url", v.GetString("llm-url"), "error", err)
	} else {
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", llmClient.Model())
	}

	cfg := model.PracticeConfig{
		AppName:     v.GetString("app-name"),
		MaxTurns:    v.GetInt("max-turns"),
		ShortTokens: v.GetInt("short-tokens"),
		FullTokens:  v.GetInt("full-tokens"),
	}.WithDefaults()

	p := &practice{
		catalog: catalog,
		llm:     llmClient,
		lang:    lang,
		deps: session.Deps{
			Catalog:   catalog,
			Generator: llmClient,
			Prompts:   lib,
			Notes:     transcript.NewNoteLog(filepath.Join(dataDir, "feedback_log.txt")),
			Messages:  localizedMessages(lang, envVar),
			Config:    cfg,
		},
	}

	if dbPath := v.GetString("db"); dbPath != "" {
		db, err := store.New(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		info := model.ArchiveInfo{AppName: cfg.AppName, Model: llmClient.Model(), CasesDir: filepath.Join(dataDir, "patients")}
		if err := db.SetArchiveInfo(ctx, info); err != nil {
			db.Close()
			return nil, fmt.Errorf("record archive info: %w", err)
		}
		p.db = db
		p.deps.Recorder = db
	}
	return p, nil
}

// localizedMessages renders the session notices in the configured language.
func localizedMessages(lang, envVar string) session.Messages {
	ctx := appI18n.Context(lang)
	return session.Messages{
		Paused:            appI18n.T(ctx, "NoticePaused"),
		Retry:             appI18n.T(ctx, "NoticeRetry"),
		NothingToUndo:     appI18n.T(ctx, "NoticeNothingToUndo"),
		TurnLimit:         appI18n.T(ctx, "NoticeTurnLimit"),
		CredentialMissing: appI18n.Td(ctx, "NoticeCredentialMissing", map[string]any{"EnvVar": envVar}),
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	p, err := loadPractice(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer p.Close()

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	p.deps.Config.BasePath = basePath
	p.deps.Config.SecureCookies = v.GetBool("secure-cookies")

	sess := session.New(p.deps)
	h := handler.New(sess, p.db, p.deps.Config)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", p.llm.Model(),
		"llm_url", v.GetString("llm-url"),
		"lang", p.lang,
		"cases", p.catalog.Len(),
		"max_turns", p.deps.Config.MaxTurns,
		"archive", p.db != nil,
		"base_path", basePath,
		"session_id", sess.View().ID,
	)
	return http.ListenAndServe(addr, h.Router(p.lang))
}

func runCases(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	catalog, err := cases.LoadAll(os.DirFS(filepath.Join(v.GetString("data-dir"), "patients")))
	if err != nil {
		return fmt.Errorf("load cases: %w", err)
	}

	out := cmd.OutOrStdout()
	if catalog.Empty() {
		fmt.Fprintln(out, "No cases available.")
	}
	for _, c := range catalog.List() {
		fmt.Fprintf(out, "%s  %s\n", c.ID, c.Name)
		for _, sc := range c.Consultations {
			fmt.Fprintf(out, "    %s  %s", sc.ID, sc.Title)
			if sc.Difficulty != "" {
				fmt.Fprintf(out, " (%s)", sc.Difficulty)
			}
			fmt.Fprintln(out)
		}
	}
	for _, sk := range catalog.Skipped() {
		fmt.Fprintf(out, "skipped %s: %v\n", sk.Path, sk.Err)
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAttempts(cmd.Context(), model.ID(v.GetString("case")), model.ID(v.GetString("scenario")))
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
