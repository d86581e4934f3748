package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/maaspractice/internal/model"
)

// ExportAttempts builds the history export from the archived attempts.
func (s *Store) ExportAttempts(ctx context.Context, caseID, scenarioID model.ID) (model.HistoryExport, error) {
	info, err := s.GetArchiveInfo(ctx)
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("get archive info: %w", err)
	}

	attempts, err := s.ListAttempts(ctx, caseID, scenarioID)
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	return model.HistoryExport{
		GeneratedAt: time.Now().UTC(),
		Archive:     info,
		Count:       len(attempts),
		Attempts:    attempts,
	}, nil
}
