// Package widget implements the embedded mode, where assessments are taken
// inside a host product and persisted in its key/value storage rather than
// in the relational database.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/kvstore"
	"github.com/terra-clan/maturity-engine/internal/models"
	"github.com/terra-clan/maturity-engine/internal/scoring"
)

// KeyHistory holds the submitted assessments of a scope
const KeyHistory = "dmm_assessments_history"

// HistoryLimit caps the stored entries per scope
const HistoryLimit = 50

// HistoryEntry is one submitted widget assessment
type HistoryEntry struct {
	ID            string                `json:"id"`
	TeamName      string                `json:"team_name"`
	Date          time.Time             `json:"date"`
	FrameworkID   string                `json:"framework_id"`
	FrameworkName string                `json:"framework_name"`
	OverallScore  float64               `json:"overall_score"`
	MaturityLevel int                   `json:"maturity_level"`
	MaturityName  string                `json:"maturity_name"`
	DomainScores  map[string]int        `json:"domain_scores"`
	Responses     map[string]int        `json:"responses"`
	Result        *models.ScoringResult `json:"result,omitempty"`
}

// ActiveFrameworks resolves the framework in effect for a scope
type ActiveFrameworks interface {
	Active(ctx context.Context, scope string) (*models.Framework, bool, error)
}

// Service scores widget submissions and keeps their history
type Service struct {
	store      kvstore.Store
	frameworks ActiveFrameworks
	engine     *scoring.Engine
	now        func() time.Time

	// serializes read-modify-write of history lists
	mu sync.Mutex
}

// NewService creates a widget service
func NewService(store kvstore.Store, frameworks ActiveFrameworks, engine *scoring.Engine) *Service {
	if engine == nil {
		engine = scoring.NewEngine()
	}
	return &Service{
		store:      store,
		frameworks: frameworks,
		engine:     engine,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit scores a fully answered set of responses against the active
// framework of scope and prepends the result to its history.
func (s *Service) Submit(ctx context.Context, scope, teamName string, responses []models.Response) (*HistoryEntry, error) {
	team := strings.TrimSpace(teamName)
	if team == "" {
		return nil, fmt.Errorf("%w: team_name is required", assessment.ErrInvalidInput)
	}

	fw, _, err := s.frameworks.Active(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve framework: %w", err)
	}

	if err := assessment.CheckResponses(fw, responses); err != nil {
		return nil, err
	}
	if missing := assessment.Missing(fw, responses); len(missing) > 0 {
		return nil, &assessment.IncompleteError{Missing: missing}
	}

	result := s.engine.Score(fw, responses)
	entry := HistoryEntry{
		ID:            uuid.New().String(),
		TeamName:      team,
		Date:          s.now(),
		FrameworkID:   fw.ID,
		FrameworkName: fw.Name,
		OverallScore:  result.OverallScore,
		MaturityLevel: result.MaturityLevel,
		MaturityName:  result.MaturityName,
		DomainScores:  make(map[string]int, len(result.DomainScores)),
		Responses:     make(map[string]int, len(responses)),
		Result:        &result,
	}
	for _, ds := range result.DomainScores {
		entry.DomainScores[ds.DomainID] = ds.DisplayScore
	}
	for _, r := range responses {
		entry.Responses[r.QuestionID] = r.Score
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	history = append([]HistoryEntry{entry}, history...)
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.store.Put(ctx, scope, KeyHistory, raw); err != nil {
		return nil, fmt.Errorf("failed to store history: %w", err)
	}

	slog.Info("widget assessment submitted", "scope", scope, "team", team,
		"framework", fw.ID, "overall_score", result.OverallScore)
	return &entry, nil
}

// History returns the submitted assessments of scope, newest first
func (s *Service) History(ctx context.Context, scope string) ([]HistoryEntry, error) {
	return s.load(ctx, scope)
}

// Entry returns one history entry by ID, or nil
func (s *Service) Entry(ctx context.Context, scope, id string) (*HistoryEntry, error) {
	history, err := s.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].ID == id {
			return &history[i], nil
		}
	}
	return nil, nil
}

func (s *Service) load(ctx context.Context, scope string) ([]HistoryEntry, error) {
	raw, err := s.store.Get(ctx, scope, KeyHistory)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return []HistoryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var history []HistoryEntry
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return history, nil
}
