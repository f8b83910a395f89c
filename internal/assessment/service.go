package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/maturity-engine/internal/events"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/models"
	"github.com/terra-clan/maturity-engine/internal/report"
	"github.com/terra-clan/maturity-engine/internal/scoring"
)

// Common errors
var (
	ErrAssessmentNotFound   = errors.New("assessment not found")
	ErrAssessmentCompleted  = errors.New("assessment is already completed")
	ErrNotCompleted         = errors.New("assessment is not completed")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnknownQuestion      = errors.New("unknown question")
	ErrScoreOutOfRange      = errors.New("score out of range")
	ErrIncompleteSubmission = errors.New("assessment has unanswered questions")
)

// IncompleteError lists the questions blocking a submission
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("assessment has %d unanswered questions", len(e.Missing))
}

// Is makes errors.Is(err, ErrIncompleteSubmission) match
func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteSubmission
}

// Manager defines the assessment lifecycle
type Manager interface {
	Create(ctx context.Context, req models.CreateAssessmentRequest, createdBy string) (*models.Assessment, error)
	Get(ctx context.Context, id string) (*models.Assessment, error)
	List(ctx context.Context, filters models.ListFilters) ([]*models.Assessment, error)
	Update(ctx context.Context, id string, req models.UpdateAssessmentRequest) (*models.Assessment, error)
	Delete(ctx context.Context, id string) error
	SaveResponses(ctx context.Context, id string, responses []models.Response) (*models.Assessment, error)
	GetResponses(ctx context.Context, id string) ([]models.Response, error)
	Progress(ctx context.Context, id string) (*models.Progress, error)
	Submit(ctx context.Context, id string) (*models.Assessment, error)
	Report(ctx context.Context, id string) (*report.Report, error)
	Analytics(ctx context.Context, organizationID string) (*models.AnalyticsSummary, error)
}

// Repository is the persistence the service needs
type Repository interface {
	CreateAssessment(ctx context.Context, a *models.Assessment) error
	GetAssessment(ctx context.Context, id string) (*models.Assessment, error)
	UpdateAssessment(ctx context.Context, a *models.Assessment) error
	DeleteAssessment(ctx context.Context, id string) error
	ListAssessments(ctx context.Context, filters models.ListFilters) ([]*models.Assessment, error)
	CompleteAssessment(ctx context.Context, a *models.Assessment) error
	SaveResponses(ctx context.Context, assessmentID string, responses []models.Response) error
	GetResponses(ctx context.Context, assessmentID string) ([]models.Response, error)
}

// Frameworks resolves framework IDs
type Frameworks interface {
	Get(ctx context.Context, id string) (*models.Framework, error)
}

// Service implements Manager
type Service struct {
	repo       Repository
	frameworks Frameworks
	engine     *scoring.Engine
	publisher  events.Publisher
	now        func() time.Time
}

// NewService creates an assessment service. publisher may be nil.
func NewService(repo Repository, frameworks Frameworks, engine *scoring.Engine, publisher events.Publisher) *Service {
	if engine == nil {
		engine = scoring.NewEngine()
	}
	return &Service{
		repo:       repo,
		frameworks: frameworks,
		engine:     engine,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create starts a draft assessment
func (s *Service) Create(ctx context.Context, req models.CreateAssessmentRequest, createdBy string) (*models.Assessment, error) {
	team := strings.TrimSpace(req.TeamName)
	if team == "" {
		return nil, fmt.Errorf("%w: team_name is required", ErrInvalidInput)
	}

	frameworkID := req.FrameworkID
	if frameworkID == "" {
		frameworkID = framework.DefaultID
	}
	fw, err := s.frameworks.Get(ctx, frameworkID)
	if err != nil {
		return nil, err
	}
	if fw.OrganizationID != "" && fw.OrganizationID != req.OrganizationID {
		return nil, framework.ErrFrameworkNotFound
	}

	now := s.now()
	a := &models.Assessment{
		ID:             uuid.New().String(),
		OrganizationID: req.OrganizationID,
		TeamName:       team,
		FrameworkID:    fw.ID,
		Status:         models.StatusDraft,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	slog.Info("assessment created", "id", a.ID, "team", a.TeamName, "framework", a.FrameworkID)
	return a, nil
}

// Get returns an assessment by ID
func (s *Service) Get(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := s.repo.GetAssessment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if a == nil {
		return nil, ErrAssessmentNotFound
	}
	return a, nil
}

// List returns assessments matching filters
func (s *Service) List(ctx context.Context, filters models.ListFilters) ([]*models.Assessment, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filters.Status)
	}
	list, err := s.repo.ListAssessments(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return list, nil
}

// Update renames an assessment that has not been submitted
func (s *Service) Update(ctx context.Context, id string, req models.UpdateAssessmentRequest) (*models.Assessment, error) {
	team := strings.TrimSpace(req.TeamName)
	if team == "" {
		return nil, fmt.Errorf("%w: team_name is required", ErrInvalidInput)
	}

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, ErrAssessmentCompleted
	}

	a.TeamName = team
	a.UpdatedAt = s.now()
	if err := s.repo.UpdateAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update assessment: %w", err)
	}
	return a, nil
}

// Delete removes an assessment with its responses and scores
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteAssessment(ctx, id); err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	slog.Info("assessment deleted", "id", id)
	return nil
}

// SaveResponses upserts answers by question ID. The first save moves a draft to in_progress.
func (s *Service) SaveResponses(ctx context.Context, id string, responses []models.Response) (*models.Assessment, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w: responses must not be empty", ErrInvalidInput)
	}

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, ErrAssessmentCompleted
	}

	fw, err := s.frameworks.Get(ctx, a.FrameworkID)
	if err != nil {
		return nil, err
	}
	if err := CheckResponses(fw, responses); err != nil {
		return nil, err
	}
	now := s.now()

	// Last write wins within a batch as well as across batches
	position := make(map[string]int, len(responses))
	batch := make([]models.Response, 0, len(responses))
	for _, r := range responses {
		r.UpdatedAt = now
		if i, seen := position[r.QuestionID]; seen {
			batch[i] = r
			continue
		}
		position[r.QuestionID] = len(batch)
		batch = append(batch, r)
	}

	if err := s.repo.SaveResponses(ctx, id, batch); err != nil {
		return nil, fmt.Errorf("failed to save responses: %w", err)
	}

	if a.Status == models.StatusDraft {
		a.Status = models.StatusInProgress
		a.StartedAt = &now
	}
	a.UpdatedAt = now
	if err := s.repo.UpdateAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update assessment: %w", err)
	}

	slog.Debug("responses saved", "id", id, "count", len(batch))
	return a, nil
}

// GetResponses returns the saved answers of an assessment
func (s *Service) GetResponses(ctx context.Context, id string) ([]models.Response, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	responses, err := s.repo.GetResponses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get responses: %w", err)
	}
	return responses, nil
}

// Progress reports answered/total questions. It does not score.
func (s *Service) Progress(ctx context.Context, id string) (*models.Progress, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fw, responses, err := s.load(ctx, a)
	if err != nil {
		return nil, err
	}

	index := fw.QuestionIndex()
	answered := make(map[string]struct{}, len(responses))
	for _, r := range responses {
		if _, ok := index[r.QuestionID]; ok {
			answered[r.QuestionID] = struct{}{}
		}
	}

	p := &models.Progress{Answered: len(answered), Total: len(index)}
	if p.Total > 0 {
		p.Percent = scoring.Round(float64(p.Answered)*100/float64(p.Total), 2)
	}
	return p, nil
}

// Submit scores a fully answered assessment and completes it
func (s *Service) Submit(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, ErrAssessmentCompleted
	}

	fw, responses, err := s.load(ctx, a)
	if err != nil {
		return nil, err
	}

	if missing := Missing(fw, responses); len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing}
	}

	result := s.engine.Score(fw, responses)
	now := s.now()
	a.Status = models.StatusCompleted
	a.OverallScore = &result.OverallScore
	a.MaturityLevel = &result.MaturityLevel
	a.CompletedAt = &now
	a.UpdatedAt = now
	a.DomainScores = result.DomainScores
	if a.StartedAt == nil {
		a.StartedAt = &now
	}

	if err := s.repo.CompleteAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to complete assessment: %w", err)
	}

	slog.Info("assessment completed",
		"id", a.ID,
		"team", a.TeamName,
		"overall_score", result.OverallScore,
		"maturity_level", result.MaturityLevel,
	)
	s.publishCompleted(ctx, a, result)
	return a, nil
}

// Report builds the report of a completed assessment
func (s *Service) Report(ctx context.Context, id string) (*report.Report, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != models.StatusCompleted || a.OverallScore == nil || a.MaturityLevel == nil {
		return nil, ErrNotCompleted
	}

	// Scores come from the submit-time result; the framework only adds gate detail
	result := models.ScoringResult{
		FrameworkID:   a.FrameworkID,
		DomainScores:  make([]models.DomainScore, len(a.DomainScores)),
		OverallScore:  *a.OverallScore,
		MaturityLevel: *a.MaturityLevel,
		MaturityName:  scoring.Level(*a.MaturityLevel).Name,
	}
	copy(result.DomainScores, a.DomainScores)

	fw, err := s.frameworks.Get(ctx, a.FrameworkID)
	switch {
	case errors.Is(err, framework.ErrFrameworkNotFound):
		slog.Warn("framework of completed assessment is gone, reporting stored scores", "id", a.ID, "framework", a.FrameworkID)
		fw = &models.Framework{ID: a.FrameworkID, Name: a.FrameworkID}
	case err != nil:
		return nil, err
	default:
		if err := s.attachAnswers(ctx, a.ID, fw, result.DomainScores); err != nil {
			return nil, err
		}
	}

	meta := report.Meta{AssessmentID: a.ID, TeamName: a.TeamName, CompletedAt: a.CompletedAt}
	return report.Build(meta, fw, result), nil
}

// attachAnswers fills the per-question answers of stored domain scores that lack them.
// Domains missing from the current framework stay without answers.
func (s *Service) attachAnswers(ctx context.Context, id string, fw *models.Framework, scores []models.DomainScore) error {
	responses, err := s.repo.GetResponses(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get responses: %w", err)
	}

	answers := make(map[string][]models.QuestionScore, len(fw.Domains))
	for _, ds := range s.engine.Score(fw, responses).DomainScores {
		answers[ds.DomainID] = ds.Answers
	}
	for i := range scores {
		if len(scores[i].Answers) == 0 {
			scores[i].Answers = answers[scores[i].DomainID]
		}
	}
	return nil
}

// Analytics aggregates the assessments of an organization. An empty ID covers all of them.
func (s *Service) Analytics(ctx context.Context, organizationID string) (*models.AnalyticsSummary, error) {
	list, err := s.repo.ListAssessments(ctx, models.ListFilters{OrganizationID: organizationID})
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	summary := &models.AnalyticsSummary{LevelDistribution: make(map[int]int)}
	var scoreSum float64
	var levelSum int
	for _, a := range list {
		summary.TotalAssessments++
		switch a.Status {
		case models.StatusInProgress:
			summary.InProgress++
		case models.StatusCompleted:
			if a.OverallScore == nil || a.MaturityLevel == nil {
				continue
			}
			summary.CompletedAssessments++
			scoreSum += *a.OverallScore
			levelSum += *a.MaturityLevel
			summary.LevelDistribution[*a.MaturityLevel]++
		}
	}

	if summary.CompletedAssessments > 0 {
		n := float64(summary.CompletedAssessments)
		summary.AverageScore = scoring.Round(scoreSum/n, 2)
		summary.AverageMaturityLevel = scoring.Round(float64(levelSum)/n, 2)
	}
	return summary, nil
}

// Missing returns the IDs of unanswered questions in framework order
func Missing(fw *models.Framework, responses []models.Response) []string {
	answered := make(map[string]struct{}, len(responses))
	for _, r := range responses {
		answered[r.QuestionID] = struct{}{}
	}

	var missing []string
	for _, ref := range fw.Refs() {
		if _, ok := answered[ref.Question.ID]; !ok {
			missing = append(missing, ref.Question.ID)
		}
	}
	return missing
}

// load fetches the framework and the responses of an assessment concurrently
func (s *Service) load(ctx context.Context, a *models.Assessment) (*models.Framework, []models.Response, error) {
	var (
		fw        *models.Framework
		responses []models.Response
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fw, err = s.frameworks.Get(gctx, a.FrameworkID)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = s.repo.GetResponses(gctx, a.ID)
		if err != nil {
			return fmt.Errorf("failed to get responses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return fw, responses, nil
}

type completedPayload struct {
	AssessmentID  string  `json:"assessment_id"`
	TeamName      string  `json:"team_name"`
	FrameworkID   string  `json:"framework_id"`
	OverallScore  float64 `json:"overall_score"`
	MaturityLevel int     `json:"maturity_level"`
	MaturityName  string  `json:"maturity_name"`
}

func (s *Service) publishCompleted(ctx context.Context, a *models.Assessment, result models.ScoringResult) {
	if s.publisher == nil {
		return
	}
	evt, err := models.NewEvent(models.EventAssessmentCompleted, a.OrganizationID, "", completedPayload{
		AssessmentID:  a.ID,
		TeamName:      a.TeamName,
		FrameworkID:   a.FrameworkID,
		OverallScore:  result.OverallScore,
		MaturityLevel: result.MaturityLevel,
		MaturityName:  result.MaturityName,
	})
	if err != nil {
		slog.Error("failed to build event", "id", a.ID, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		slog.Error("failed to publish event", "id", a.ID, "error", err)
	}
}
