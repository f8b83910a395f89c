package storage

import (
	"context"

	"github.com/terra-clan/maturity-engine/internal/models"
)

// Repository defines the interface for assessment persistence.
// Lookups return (nil, nil) when the record does not exist.
type Repository interface {
	// Organizations
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	DeleteOrganization(ctx context.Context, id string) error

	// Frameworks
	CreateFramework(ctx context.Context, fw *models.Framework) error
	GetFramework(ctx context.Context, id string) (*models.Framework, error)
	ListFrameworks(ctx context.Context, organizationID string) ([]*models.Framework, error)
	DeleteFramework(ctx context.Context, id string) error
	FrameworkInUse(ctx context.Context, id string) (bool, error)

	// Assessments
	CreateAssessment(ctx context.Context, a *models.Assessment) error
	GetAssessment(ctx context.Context, id string) (*models.Assessment, error)
	UpdateAssessment(ctx context.Context, a *models.Assessment) error
	DeleteAssessment(ctx context.Context, id string) error
	ListAssessments(ctx context.Context, filters models.ListFilters) ([]*models.Assessment, error)
	CompleteAssessment(ctx context.Context, a *models.Assessment) error

	// Responses
	SaveResponses(ctx context.Context, assessmentID string, responses []models.Response) error
	GetResponses(ctx context.Context, assessmentID string) ([]models.Response, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
