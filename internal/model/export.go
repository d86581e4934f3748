package model

import "time"

// ArchiveInfo describes the settings attempts were archived under.
type ArchiveInfo struct {
	AppName  string `json:"app_name"`
	Model    string `json:"llm_model"`
	CasesDir string `json:"cases_dir"`
}

// HistoryExport is the top-level JSON structure for the attempt archive export.
type HistoryExport struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Archive     ArchiveInfo `json:"archive"`
	Count       int         `json:"count"`
	Attempts    []Attempt   `json:"attempts"`
}

// Artifact is a rendered transcript ready for download.
type Artifact struct {
	Filename string
	Content  string
}
