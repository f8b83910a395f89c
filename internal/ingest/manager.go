// Package ingest implements the administrative upload flow for custom frameworks.
//
// A scope (one host product installation) moves through
//
//	NoCustomFramework -> PendingUpload -> Previewing -> Active -> NoCustomFramework
//
// where PendingUpload only exists while an upload is being parsed. A rejected
// upload never touches persisted state, so the previously active framework
// (custom or default) stays in effect.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/terra-clan/maturity-engine/internal/events"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/kvstore"
	"github.com/terra-clan/maturity-engine/internal/models"
)

// Storage keys inside a scope
const (
	KeyActive  = "custom_framework"
	KeyPending = "pending_framework"
)

// DefaultPreviewTTL bounds how long an unconfirmed upload is kept
const DefaultPreviewTTL = 30 * time.Minute

// State is the ingestion state of a scope
type State string

const (
	StateNoCustomFramework State = "no_custom_framework"
	StatePendingUpload     State = "pending_upload"
	StatePreviewing        State = "previewing"
	StateActive            State = "active"
)

var (
	ErrRejected          = errors.New("framework upload rejected")
	ErrNoPendingUpload   = errors.New("no pending upload")
	ErrPreviewExpired    = errors.New("pending upload has expired")
	ErrNoCustomFramework = errors.New("no custom framework is active")
)

// Scope names the storage scope of a host product. Products of an organization
// are stored under the organization ID, so two tenants never share a scope.
func Scope(organizationID, product string) string {
	if organizationID == "" {
		return product
	}
	return organizationID + "/" + product
}

// ScopeOrganization returns the organization a scope built by Scope belongs to
func ScopeOrganization(scope string) string {
	if i := strings.IndexByte(scope, '/'); i >= 0 {
		return scope[:i]
	}
	return ""
}

// RejectedError carries the validation result of a rejected upload
type RejectedError struct {
	Result framework.Result
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("framework upload rejected: %s", strings.Join(e.Result.Errors, "; "))
}

// Is makes errors.Is(err, ErrRejected) match
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Preview describes a validated upload awaiting confirmation
type Preview struct {
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	DomainCount   int       `json:"domain_count"`
	QuestionCount int       `json:"question_count"`
	TotalWeight   float64   `json:"total_weight"`
	Warnings      []string  `json:"warnings"`
	Diff          string    `json:"diff,omitempty"`
	UploadedAt    time.Time `json:"uploaded_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ActiveFramework describes the custom framework in effect
type ActiveFramework struct {
	models.FrameworkSummary
	ActivatedAt time.Time `json:"activated_at"`
}

// Status is the observable ingestion state of a scope
type Status struct {
	State   State            `json:"state"`
	Active  *ActiveFramework `json:"active,omitempty"`
	Pending *Preview         `json:"pending,omitempty"`
}

type pendingRecord struct {
	Framework *models.Framework `json:"framework"`
	Preview   Preview           `json:"preview"`
}

type activeRecord struct {
	Framework   *models.Framework `json:"framework"`
	ActivatedAt time.Time         `json:"activated_at"`
}

// Manager runs the ingestion state machine on top of host key/value storage
type Manager struct {
	store     kvstore.Store
	publisher events.Publisher
	ttl       time.Duration
	now       func() time.Time
}

// NewManager creates an ingestion manager. publisher may be nil.
func NewManager(store kvstore.Store, publisher events.Publisher, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &Manager{
		store:     store,
		publisher: publisher,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Status reports the current state of scope
func (m *Manager) Status(ctx context.Context, scope string) (*Status, error) {
	status := &Status{State: StateNoCustomFramework}

	active, err := m.loadActive(ctx, scope)
	if err != nil {
		return nil, err
	}
	if active != nil {
		status.State = StateActive
		status.Active = &ActiveFramework{
			FrameworkSummary: active.Framework.Summary(),
			ActivatedAt:      active.ActivatedAt,
		}
	}

	pending, err := m.loadPending(ctx, scope)
	if err != nil {
		return nil, err
	}
	if pending != nil && !m.expired(pending) {
		status.State = StatePreviewing
		status.Pending = &pending.Preview
	}

	return status, nil
}

// Active returns the framework in effect for scope: the confirmed custom
// framework if there is one, otherwise the built-in default.
func (m *Manager) Active(ctx context.Context, scope string) (*models.Framework, bool, error) {
	active, err := m.loadActive(ctx, scope)
	if err != nil {
		return nil, false, err
	}
	if active == nil {
		return framework.Default(), false, nil
	}
	return active.Framework, true, nil
}

// Upload parses and validates raw, storing it as the pending upload of scope.
// An invalid document returns a *RejectedError and leaves scope unchanged.
func (m *Manager) Upload(ctx context.Context, scope string, raw []byte) (*Preview, error) {
	slog.Info("framework upload received", "scope", scope, "state", StatePendingUpload, "bytes", len(raw))

	fw, result := framework.Parse(raw)
	if !result.Valid {
		slog.Info("framework upload rejected", "scope", scope, "errors", len(result.Errors))
		return nil, &RejectedError{Result: result}
	}

	current, _, err := m.Active(ctx, scope)
	if err != nil {
		return nil, err
	}
	diff, err := documentDiff(current, fw)
	if err != nil {
		return nil, err
	}

	now := m.now()
	summary := fw.Summary()
	record := pendingRecord{
		Framework: fw,
		Preview: Preview{
			Name:          fw.Name,
			Version:       fw.Version,
			DomainCount:   summary.DomainCount,
			QuestionCount: summary.QuestionCount,
			TotalWeight:   summary.TotalWeight,
			Warnings:      result.Warnings,
			Diff:          diff,
			UploadedAt:    now,
			ExpiresAt:     now.Add(m.ttl),
		},
	}

	if err := m.put(ctx, scope, KeyPending, record); err != nil {
		return nil, err
	}

	slog.Info("framework upload previewing", "scope", scope, "name", fw.Name,
		"domains", summary.DomainCount, "questions", summary.QuestionCount, "warnings", len(result.Warnings))
	return &record.Preview, nil
}

// Confirm activates the pending upload of scope
func (m *Manager) Confirm(ctx context.Context, scope string) (*models.Framework, error) {
	pending, err := m.loadPending(ctx, scope)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, ErrNoPendingUpload
	}
	if m.expired(pending) {
		if err := m.store.Delete(ctx, scope, KeyPending); err != nil {
			slog.Warn("failed to delete expired upload", "scope", scope, "error", err)
		}
		return nil, ErrPreviewExpired
	}

	record := activeRecord{Framework: pending.Framework, ActivatedAt: m.now()}
	if err := m.put(ctx, scope, KeyActive, record); err != nil {
		return nil, err
	}
	if err := m.store.Delete(ctx, scope, KeyPending); err != nil {
		return nil, fmt.Errorf("failed to remove pending upload: %w", err)
	}

	slog.Info("custom framework activated", "scope", scope, "name", record.Framework.Name)
	m.publish(ctx, models.EventFrameworkActivated, scope, record.Framework.Summary())
	return record.Framework, nil
}

// Cancel discards the pending upload of scope
func (m *Manager) Cancel(ctx context.Context, scope string) error {
	pending, err := m.loadPending(ctx, scope)
	if err != nil {
		return err
	}
	if pending == nil {
		return ErrNoPendingUpload
	}
	if err := m.store.Delete(ctx, scope, KeyPending); err != nil {
		return fmt.Errorf("failed to cancel upload: %w", err)
	}
	return nil
}

// Clear removes the custom framework of scope, reverting to the default
func (m *Manager) Clear(ctx context.Context, scope string) error {
	active, err := m.loadActive(ctx, scope)
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoCustomFramework
	}

	if err := m.store.Delete(ctx, scope, KeyActive); err != nil {
		return fmt.Errorf("failed to clear framework: %w", err)
	}
	if err := m.store.Delete(ctx, scope, KeyPending); err != nil {
		slog.Warn("failed to clear pending upload", "scope", scope, "error", err)
	}

	slog.Info("custom framework cleared", "scope", scope, "name", active.Framework.Name)
	m.publish(ctx, models.EventFrameworkCleared, scope, active.Framework.Summary())
	return nil
}

// PurgeExpired deletes pending uploads past their expiry and returns how many were removed
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	scopes, err := m.store.Scopes(ctx, KeyPending)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending uploads: %w", err)
	}

	purged := 0
	for _, scope := range scopes {
		pending, err := m.loadPending(ctx, scope)
		if err != nil {
			slog.Warn("failed to load pending upload", "scope", scope, "error", err)
			continue
		}
		if pending == nil || !m.expired(pending) {
			continue
		}
		if err := m.store.Delete(ctx, scope, KeyPending); err != nil {
			slog.Error("failed to purge pending upload", "scope", scope, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}

func (m *Manager) expired(p *pendingRecord) bool {
	return !m.now().Before(p.Preview.ExpiresAt)
}

func (m *Manager) loadActive(ctx context.Context, scope string) (*activeRecord, error) {
	var record activeRecord
	found, err := m.get(ctx, scope, KeyActive, &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

func (m *Manager) loadPending(ctx context.Context, scope string) (*pendingRecord, error) {
	var record pendingRecord
	found, err := m.get(ctx, scope, KeyPending, &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

func (m *Manager) get(ctx context.Context, scope, key string, v any) (bool, error) {
	raw, err := m.store.Get(ctx, scope, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(ctx context.Context, scope, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := m.store.Put(ctx, scope, key, raw); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, t models.EventType, scope string, payload any) {
	if m.publisher == nil {
		return
	}
	evt, err := models.NewEvent(t, ScopeOrganization(scope), scope, payload)
	if err != nil {
		slog.Error("failed to build event", "type", t, "error", err)
		return
	}
	if err := m.publisher.Publish(ctx, evt); err != nil {
		slog.Error("failed to publish event", "type", t, "error", err)
	}
}

// documentDiff renders a unified diff between the canonical documents of two frameworks
func documentDiff(from, to *models.Framework) (string, error) {
	a, err := framework.MarshalDocument(from)
	if err != nil {
		return "", fmt.Errorf("failed to render active framework: %w", err)
	}
	b, err := framework.MarshalDocument(to)
	if err != nil {
		return "", fmt.Errorf("failed to render uploaded framework: %w", err)
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "active/" + from.ID + ".json",
		ToFile:   "uploaded/" + to.ID + ".json",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to diff frameworks: %w", err)
	}
	return text, nil
}
