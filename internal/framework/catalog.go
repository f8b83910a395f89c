package framework

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/maturity-engine/internal/models"
)

var (
	ErrFrameworkNotFound = errors.New("framework not found")
	ErrInvalidFramework  = errors.New("framework document is invalid")
	ErrBuiltinReadOnly   = errors.New("built-in frameworks cannot be modified")
	ErrFrameworkInUse    = errors.New("framework is referenced by assessments")
)

// Store persists organization-owned frameworks
type Store interface {
	CreateFramework(ctx context.Context, fw *models.Framework) error
	GetFramework(ctx context.Context, id string) (*models.Framework, error)
	ListFrameworks(ctx context.Context, organizationID string) ([]*models.Framework, error)
	DeleteFramework(ctx context.Context, id string) error
	FrameworkInUse(ctx context.Context, id string) (bool, error)
}

// Catalog resolves frameworks from the built-in loader and the store
type Catalog struct {
	loader *Loader
	store  Store
}

// NewCatalog creates a catalog. store may be nil when only built-in frameworks are served.
func NewCatalog(loader *Loader, store Store) *Catalog {
	return &Catalog{loader: loader, store: store}
}

// Get returns the framework with the given ID
func (c *Catalog) Get(ctx context.Context, id string) (*models.Framework, error) {
	if fw := c.loader.Get(id); fw != nil {
		return fw, nil
	}
	if c.store == nil {
		return nil, ErrFrameworkNotFound
	}

	fw, err := c.store.GetFramework(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get framework: %w", err)
	}
	if fw == nil {
		return nil, ErrFrameworkNotFound
	}
	return fw, nil
}

// List returns built-in frameworks followed by the organization's own.
// An empty organizationID lists every stored framework.
func (c *Catalog) List(ctx context.Context, organizationID string) ([]models.FrameworkSummary, error) {
	var summaries []models.FrameworkSummary
	for _, fw := range c.loader.List() {
		summaries = append(summaries, fw.Summary())
	}

	if c.store == nil {
		return summaries, nil
	}

	stored, err := c.store.ListFrameworks(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list frameworks: %w", err)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Name < stored[j].Name })
	for _, fw := range stored {
		summaries = append(summaries, fw.Summary())
	}
	return summaries, nil
}

// Register validates a raw document and stores it for the organization.
// On validation failure the result is returned together with ErrInvalidFramework.
func (c *Catalog) Register(ctx context.Context, organizationID string, data []byte) (*models.Framework, Result, error) {
	fw, result := Parse(data)
	if !result.Valid {
		return nil, result, ErrInvalidFramework
	}
	if c.store == nil {
		return nil, result, fmt.Errorf("framework store is not configured")
	}

	// Document IDs are not trusted to be unique across tenants
	fw.ID = uuid.New().String()
	fw.OrganizationID = organizationID
	fw.CreatedAt = time.Now().UTC()

	if err := c.store.CreateFramework(ctx, fw); err != nil {
		return nil, result, fmt.Errorf("failed to store framework: %w", err)
	}
	return fw, result, nil
}

// Delete removes a stored framework that no assessment references
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if c.loader.Get(id) != nil {
		return ErrBuiltinReadOnly
	}
	if _, err := c.Get(ctx, id); err != nil {
		return err
	}
	inUse, err := c.store.FrameworkInUse(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check framework usage: %w", err)
	}
	if inUse {
		return ErrFrameworkInUse
	}
	if err := c.store.DeleteFramework(ctx, id); err != nil {
		return fmt.Errorf("failed to delete framework: %w", err)
	}
	return nil
}

// Structure describes the domain/gate/question tree of a framework
type Structure struct {
	FrameworkID    string            `json:"framework_id"`
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	TotalQuestions int               `json:"total_questions"`
	TotalWeight    float64           `json:"total_weight"`
	Domains        []DomainStructure `json:"domains"`
}

// DomainStructure is one domain node of a Structure
type DomainStructure struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Weight        float64         `json:"weight"`
	QuestionCount int             `json:"question_count"`
	QuestionIDs   []string        `json:"question_ids,omitempty"`
	Gates         []GateStructure `json:"gates,omitempty"`
}

// GateStructure is one gate node of a Structure
type GateStructure struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	QuestionIDs []string `json:"question_ids"`
}

// Structure returns the question tree of the framework with the given ID
func (c *Catalog) Structure(ctx context.Context, id string) (*Structure, error) {
	fw, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return StructureOf(fw), nil
}

// StructureOf builds the question tree of a framework
func StructureOf(fw *models.Framework) *Structure {
	s := &Structure{
		FrameworkID:    fw.ID,
		Name:           fw.Name,
		Version:        fw.Version,
		TotalQuestions: fw.QuestionCount(),
		TotalWeight:    fw.TotalWeight(),
	}

	for _, d := range fw.Domains {
		ds := DomainStructure{
			ID:            d.ID,
			Name:          d.Name,
			Weight:        d.Weight,
			QuestionCount: d.QuestionCount(),
		}
		for _, q := range d.Questions {
			ds.QuestionIDs = append(ds.QuestionIDs, q.ID)
		}
		for _, g := range d.Gates {
			gs := GateStructure{ID: g.ID, Name: g.Name, QuestionIDs: []string{}}
			for _, q := range g.Questions {
				gs.QuestionIDs = append(gs.QuestionIDs, q.ID)
			}
			ds.Gates = append(ds.Gates, gs)
		}
		s.Domains = append(s.Domains, ds)
	}

	return s
}
