package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/maturity-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Set pool configuration
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the connection pool for components sharing it
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Organizations ---

// CreateOrganization creates a new organization record
func (r *PostgresRepository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, slug, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		org.ID,
		org.Name,
		org.Slug,
		nullString(org.Description),
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// GetOrganization retrieves an organization by ID
func (r *PostgresRepository) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, description, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	org, err := scanOrganization(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// ListOrganizations returns every organization ordered by name
func (r *PostgresRepository) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT id, name, slug, description, created_at, updated_at
		FROM organizations
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// UpdateOrganization updates an existing organization
func (r *PostgresRepository) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, slug = $3, description = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, org.ID, org.Name, org.Slug, nullString(org.Description), org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("organization not found: %s", org.ID)
	}

	return nil
}

// DeleteOrganization deletes an organization and everything it owns
func (r *PostgresRepository) DeleteOrganization(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("organization not found: %s", id)
	}

	return nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	var description sql.NullString

	if err := row.Scan(&org.ID, &org.Name, &org.Slug, &description, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	org.Description = description.String

	return &org, nil
}

// --- Frameworks ---

// CreateFramework stores an organization-owned framework
func (r *PostgresRepository) CreateFramework(ctx context.Context, fw *models.Framework) error {
	definition, err := json.Marshal(fw)
	if err != nil {
		return fmt.Errorf("failed to marshal framework: %w", err)
	}

	query := `
		INSERT INTO frameworks (id, organization_id, name, version, definition, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.pool.Exec(ctx, query,
		fw.ID,
		nullString(fw.OrganizationID),
		fw.Name,
		fw.Version,
		definition,
		fw.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create framework: %w", err)
	}

	return nil
}

// GetFramework retrieves a stored framework by ID
func (r *PostgresRepository) GetFramework(ctx context.Context, id string) (*models.Framework, error) {
	query := `
		SELECT id, organization_id, definition, created_at
		FROM frameworks
		WHERE id = $1
	`

	fw, err := scanFramework(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get framework: %w", err)
	}

	return fw, nil
}

// ListFrameworks returns stored frameworks of an organization, or all of them for an empty ID
func (r *PostgresRepository) ListFrameworks(ctx context.Context, organizationID string) ([]*models.Framework, error) {
	query := `
		SELECT id, organization_id, definition, created_at
		FROM frameworks
	`
	args := make([]interface{}, 0)

	if organizationID != "" {
		query += " WHERE organization_id = $1"
		args = append(args, organizationID)
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list frameworks: %w", err)
	}
	defer rows.Close()

	var frameworks []*models.Framework
	for rows.Next() {
		fw, err := scanFramework(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan framework: %w", err)
		}
		frameworks = append(frameworks, fw)
	}

	return frameworks, rows.Err()
}

// DeleteFramework deletes a stored framework
func (r *PostgresRepository) DeleteFramework(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM frameworks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete framework: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("framework not found: %s", id)
	}

	return nil
}

// FrameworkInUse reports whether any assessment references the framework
func (r *PostgresRepository) FrameworkInUse(ctx context.Context, id string) (bool, error) {
	var inUse bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assessments WHERE framework_id = $1)`, id).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("failed to check framework usage: %w", err)
	}
	return inUse, nil
}

func scanFramework(row pgx.Row) (*models.Framework, error) {
	var id string
	var organizationID sql.NullString
	var definition []byte
	var createdAt time.Time

	if err := row.Scan(&id, &organizationID, &definition, &createdAt); err != nil {
		return nil, err
	}

	var fw models.Framework
	if err := json.Unmarshal(definition, &fw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal framework %s: %w", id, err)
	}
	fw.ID = id
	fw.OrganizationID = organizationID.String
	fw.CreatedAt = createdAt
	fw.Builtin = false

	return &fw, nil
}

// --- Assessments ---

const assessmentColumns = `id, organization_id, team_name, framework_id, status, overall_score, maturity_level,
		created_by, created_at, updated_at, started_at, completed_at`

// CreateAssessment creates a new assessment record
func (r *PostgresRepository) CreateAssessment(ctx context.Context, a *models.Assessment) error {
	query := `
		INSERT INTO assessments (` + assessmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		nullString(a.OrganizationID),
		a.TeamName,
		a.FrameworkID,
		string(a.Status),
		a.OverallScore,
		a.MaturityLevel,
		nullString(a.CreatedBy),
		a.CreatedAt,
		a.UpdatedAt,
		nullTime(a.StartedAt),
		nullTime(a.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}

	return nil
}

// GetAssessment retrieves an assessment with its domain scores
func (r *PostgresRepository) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if a.Status == models.StatusCompleted {
		scores, err := r.getDomainScores(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get domain scores: %w", err)
		}
		a.DomainScores = scores
	}

	return a, nil
}

// UpdateAssessment updates the mutable fields of an assessment
func (r *PostgresRepository) UpdateAssessment(ctx context.Context, a *models.Assessment) error {
	query := `
		UPDATE assessments
		SET team_name = $2, status = $3, updated_at = $4, started_at = $5
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		a.ID,
		a.TeamName,
		string(a.Status),
		a.UpdatedAt,
		nullTime(a.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("assessment not found: %s", a.ID)
	}

	return nil
}

// DeleteAssessment deletes an assessment; responses and scores cascade
func (r *PostgresRepository) DeleteAssessment(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("assessment not found: %s", id)
	}

	return nil
}

// ListAssessments returns assessments matching filters, newest first
func (r *PostgresRepository) ListAssessments(ctx context.Context, filters models.ListFilters) ([]*models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.OrganizationID != "" {
		query += fmt.Sprintf(" AND organization_id = $%d", argNum)
		args = append(args, filters.OrganizationID)
		argNum++
	}

	if filters.FrameworkID != "" {
		query += fmt.Sprintf(" AND framework_id = $%d", argNum)
		args = append(args, filters.FrameworkID)
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var assessments []*models.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		assessments = append(assessments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessments: %w", err)
	}

	return assessments, nil
}

// CompleteAssessment stores the scoring outcome of an assessment in one transaction.
// It fails if the assessment is missing or already completed.
func (r *PostgresRepository) CompleteAssessment(ctx context.Context, a *models.Assessment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE assessments
		SET status = $2, overall_score = $3, maturity_level = $4, updated_at = $5, started_at = $6, completed_at = $7
		WHERE id = $1 AND status <> 'completed'
	`

	result, err := tx.Exec(ctx, query,
		a.ID,
		string(a.Status),
		a.OverallScore,
		a.MaturityLevel,
		a.UpdatedAt,
		nullTime(a.StartedAt),
		nullTime(a.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to complete assessment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("assessment not found or already completed: %s", a.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM domain_scores WHERE assessment_id = $1`, a.ID); err != nil {
		return fmt.Errorf("failed to clear domain scores: %w", err)
	}

	insert := `
		INSERT INTO domain_scores (assessment_id, domain_id, position, name, weight, score, display_score,
			maturity_level, current_total, max_total, strengths, gaps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for i, ds := range a.DomainScores {
		strengthsJSON, err := json.Marshal(nonNil(ds.Strengths))
		if err != nil {
			return fmt.Errorf("failed to marshal strengths: %w", err)
		}
		gapsJSON, err := json.Marshal(nonNil(ds.Gaps))
		if err != nil {
			return fmt.Errorf("failed to marshal gaps: %w", err)
		}

		_, err = tx.Exec(ctx, insert,
			a.ID,
			ds.DomainID,
			i,
			ds.Name,
			ds.Weight,
			ds.Score,
			ds.DisplayScore,
			ds.MaturityLevel,
			ds.Current,
			ds.Max,
			strengthsJSON,
			gapsJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert domain score %s: %w", ds.DomainID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit assessment: %w", err)
	}

	return nil
}

func (r *PostgresRepository) getDomainScores(ctx context.Context, assessmentID string) ([]models.DomainScore, error) {
	query := `
		SELECT domain_id, name, weight, score, display_score, maturity_level, current_total, max_total, strengths, gaps
		FROM domain_scores
		WHERE assessment_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []models.DomainScore
	for rows.Next() {
		var ds models.DomainScore
		var strengthsJSON, gapsJSON []byte

		err := rows.Scan(
			&ds.DomainID,
			&ds.Name,
			&ds.Weight,
			&ds.Score,
			&ds.DisplayScore,
			&ds.MaturityLevel,
			&ds.Current,
			&ds.Max,
			&strengthsJSON,
			&gapsJSON,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(strengthsJSON, &ds.Strengths); err != nil {
			return nil, fmt.Errorf("failed to unmarshal strengths: %w", err)
		}
		if err := json.Unmarshal(gapsJSON, &ds.Gaps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gaps: %w", err)
		}

		scores = append(scores, ds)
	}

	return scores, rows.Err()
}

func scanAssessment(row pgx.Row) (*models.Assessment, error) {
	var a models.Assessment
	var statusStr string
	var organizationID, createdBy sql.NullString
	var overallScore sql.NullFloat64
	var maturityLevel sql.NullInt32
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&organizationID,
		&a.TeamName,
		&a.FrameworkID,
		&statusStr,
		&overallScore,
		&maturityLevel,
		&createdBy,
		&a.CreatedAt,
		&a.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = models.AssessmentStatus(statusStr)
	a.OrganizationID = organizationID.String
	a.CreatedBy = createdBy.String

	if overallScore.Valid {
		a.OverallScore = &overallScore.Float64
	}
	if maturityLevel.Valid {
		level := int(maturityLevel.Int32)
		a.MaturityLevel = &level
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}

	return &a, nil
}

// --- Responses ---

// SaveResponses upserts responses by question ID in one transaction
func (r *PostgresRepository) SaveResponses(ctx context.Context, assessmentID string, responses []models.Response) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO responses (assessment_id, question_id, score, notes, evidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assessment_id, question_id)
		DO UPDATE SET score = EXCLUDED.score, notes = EXCLUDED.notes, evidence = EXCLUDED.evidence, updated_at = EXCLUDED.updated_at
	`

	for _, resp := range responses {
		evidenceJSON, err := json.Marshal(nonNil(resp.Evidence))
		if err != nil {
			return fmt.Errorf("failed to marshal evidence: %w", err)
		}

		_, err = tx.Exec(ctx, query,
			assessmentID,
			resp.QuestionID,
			resp.Score,
			nullString(resp.Notes),
			evidenceJSON,
			resp.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save response %s: %w", resp.QuestionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit responses: %w", err)
	}

	return nil
}

// GetResponses returns the responses of an assessment ordered by question ID
func (r *PostgresRepository) GetResponses(ctx context.Context, assessmentID string) ([]models.Response, error) {
	query := `
		SELECT question_id, score, notes, evidence, updated_at
		FROM responses
		WHERE assessment_id = $1
		ORDER BY question_id
	`

	rows, err := r.pool.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get responses: %w", err)
	}
	defer rows.Close()

	responses := make([]models.Response, 0)
	for rows.Next() {
		var resp models.Response
		var notes sql.NullString
		var evidenceJSON []byte

		if err := rows.Scan(&resp.QuestionID, &resp.Score, &notes, &evidenceJSON, &resp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		resp.Notes = notes.String

		if evidenceJSON != nil {
			if err := json.Unmarshal(evidenceJSON, &resp.Evidence); err != nil {
				return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
			}
		}

		responses = append(responses, resp)
	}

	return responses, rows.Err()
}

// --- API Clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, organization_id, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var organizationID sql.NullString
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&organizationID,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	client.OrganizationID = organizationID.String
	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	// Parse permissions JSON array
	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	// Parse metadata JSON object
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	_, err := r.pool.Exec(ctx, query, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
