package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/ingest"
	"github.com/terra-clan/maturity-engine/internal/models"
	"github.com/terra-clan/maturity-engine/internal/report"
	"github.com/terra-clan/maturity-engine/internal/widget"
)

// Client is a Go SDK for the maturity-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new maturity-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error response of the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Data holds error details, such as validation results or missing question IDs
	Data json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Code, e.Message)
}

// Missing returns the unanswered question IDs of an incomplete_submission error
func (e *APIError) Missing() []string {
	var details struct {
		Missing []string `json:"missing"`
	}
	if e.Code != "incomplete_submission" || json.Unmarshal(e.Data, &details) != nil {
		return nil
	}
	return details.Missing
}

// ValidationResult returns the validation result of a validation_failed error
func (e *APIError) ValidationResult() *framework.Result {
	var result framework.Result
	if e.Code != "validation_failed" || json.Unmarshal(e.Data, &result) != nil {
		return nil
	}
	return &result
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ListOptions contains options for listing assessments
type ListOptions struct {
	OrganizationID string
	FrameworkID    string
	Status         string
	Limit          int
	Offset         int
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

// ListFrameworks retrieves the frameworks visible to the client
func (c *Client) ListFrameworks(ctx context.Context) ([]models.FrameworkSummary, error) {
	var result struct {
		Frameworks []models.FrameworkSummary `json:"frameworks"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/frameworks", nil, &result); err != nil {
		return nil, err
	}
	return result.Frameworks, nil
}

// GetFramework retrieves a framework definition by ID
func (c *Client) GetFramework(ctx context.Context, id string) (*models.Framework, error) {
	var fw models.Framework
	if err := c.call(ctx, http.MethodGet, "/api/v1/frameworks/"+url.PathEscape(id), nil, &fw); err != nil {
		return nil, err
	}
	return &fw, nil
}

// ValidateFramework validates a JSON or YAML framework document on the server
func (c *Client) ValidateFramework(ctx context.Context, document []byte) (*framework.Result, error) {
	var result framework.Result
	if err := c.call(ctx, http.MethodPost, "/api/v1/frameworks/validate", bytes.NewReader(document), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateFramework registers a custom framework for the client's organization
func (c *Client) CreateFramework(ctx context.Context, document []byte) (*models.FrameworkSummary, error) {
	var result struct {
		Framework models.FrameworkSummary `json:"framework"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/frameworks", bytes.NewReader(document), &result); err != nil {
		return nil, err
	}
	return &result.Framework, nil
}

// CreateAssessment starts a draft assessment
func (c *Client) CreateAssessment(ctx context.Context, req models.CreateAssessmentRequest) (*models.Assessment, error) {
	var a models.Assessment
	if err := c.callJSON(ctx, http.MethodPost, "/api/v1/assessments", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAssessment retrieves an assessment by ID
func (c *Client) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	var a models.Assessment
	if err := c.call(ctx, http.MethodGet, assessmentPath(id, ""), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssessments retrieves assessments with optional filters
func (c *Client) ListAssessments(ctx context.Context, opts ListOptions) ([]*models.Assessment, error) {
	q := url.Values{}
	if opts.OrganizationID != "" {
		q.Set("organization_id", opts.OrganizationID)
	}
	if opts.FrameworkID != "" {
		q.Set("framework_id", opts.FrameworkID)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/assessments"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result struct {
		Assessments []*models.Assessment `json:"assessments"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Assessments, nil
}

// SaveResponses upserts answers of an assessment
func (c *Client) SaveResponses(ctx context.Context, id string, responses []models.Response) (*models.Assessment, error) {
	var a models.Assessment
	req := models.SaveResponsesRequest{Responses: responses}
	if err := c.callJSON(ctx, http.MethodPut, assessmentPath(id, "/responses"), req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Progress reports answered/total questions of an assessment
func (c *Client) Progress(ctx context.Context, id string) (*models.Progress, error) {
	var p models.Progress
	if err := c.call(ctx, http.MethodGet, assessmentPath(id, "/progress"), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Submit scores and completes an assessment. An incomplete assessment fails
// with an *APIError whose Missing method lists the unanswered questions.
func (c *Client) Submit(ctx context.Context, id string) (*models.Assessment, error) {
	var a models.Assessment
	if err := c.call(ctx, http.MethodPost, assessmentPath(id, "/submit"), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetReport retrieves the structured report of a completed assessment
func (c *Client) GetReport(ctx context.Context, id string) (*report.Report, error) {
	var r report.Report
	if err := c.call(ctx, http.MethodGet, assessmentPath(id, "/report"), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RenderReport retrieves the report rendered as text or markdown
func (c *Client) RenderReport(ctx context.Context, id string, format report.Format) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, assessmentPath(id, "/report")+"?format="+url.QueryEscape(string(format)), nil)
	if err != nil {
		return "", err
	}
	return string(resp), nil
}

// Analytics retrieves the assessment summary of an organization
func (c *Client) Analytics(ctx context.Context, organizationID string) (*models.AnalyticsSummary, error) {
	path := "/api/v1/analytics/summary"
	if organizationID != "" {
		path += "?organization_id=" + url.QueryEscape(organizationID)
	}
	var s models.AnalyticsSummary
	if err := c.call(ctx, http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UploadFramework stages a custom framework for a product and returns its preview
func (c *Client) UploadFramework(ctx context.Context, productID string, document []byte) (*ingest.Preview, error) {
	var p ingest.Preview
	if err := c.call(ctx, http.MethodPost, productPath(productID, "/framework/upload"), bytes.NewReader(document), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ConfirmFramework activates the staged framework of a product
func (c *Client) ConfirmFramework(ctx context.Context, productID string) (*models.FrameworkSummary, error) {
	var s models.FrameworkSummary
	if err := c.call(ctx, http.MethodPost, productPath(productID, "/framework/confirm"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SubmitWidgetAssessment scores responses against the active framework of a product
func (c *Client) SubmitWidgetAssessment(ctx context.Context, productID, teamName string, responses []models.Response) (*widget.HistoryEntry, error) {
	req := struct {
		TeamName  string            `json:"team_name"`
		Responses []models.Response `json:"responses"`
	}{teamName, responses}

	var entry widget.HistoryEntry
	if err := c.callJSON(ctx, http.MethodPost, productPath(productID, "/assessments"), req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func assessmentPath(id, suffix string) string {
	return "/api/v1/assessments/" + url.PathEscape(id) + suffix
}

func productPath(productID, suffix string) string {
	return "/api/v1/products/" + url.PathEscape(productID) + suffix
}

// callJSON marshals body and performs call
func (c *Client) callJSON(ctx context.Context, method, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.call(ctx, method, path, bytes.NewReader(raw), out)
}

// call performs a request and decodes the data of the response envelope into out
func (c *Client) call(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var result envelope
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !result.Success {
		return &APIError{StatusCode: http.StatusOK, Code: "unknown", Message: "request was not successful"}
	}
	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "http_error", Message: string(respBody)}
		var result envelope
		if json.Unmarshal(respBody, &result) == nil && result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
			apiErr.Data = result.Data
		}
		return nil, apiErr
	}

	return respBody, nil
}
