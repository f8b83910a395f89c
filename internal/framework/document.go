package framework

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/maturity-engine/internal/models"
)

// ErrEmptyDocument is returned when there is nothing to decode
var ErrEmptyDocument = errors.New("framework document is empty")

// Document is the canonical exchange shape of a framework
type Document struct {
	Meta    Meta             `json:"meta" yaml:"meta"`
	Domains []models.Domain `json:"domains" yaml:"domains"`
}

// Meta holds the descriptive header of a document
type Meta struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Decode parses raw JSON or YAML into a generic document tree
func Decode(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyDocument
	}

	var doc map[string]any
	if trimmed[0] == '{' || trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return doc, nil
	}

	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if doc == nil {
		return nil, ErrEmptyDocument
	}
	return doc, nil
}

// ValidateBytes decodes and validates a raw document.
// Decoding failures are reported as validation errors.
func ValidateBytes(data []byte) Result {
	doc, err := Decode(data)
	if err != nil {
		return Result{Valid: false, Errors: []string{err.Error()}, Warnings: []string{}}
	}
	return Validate(doc)
}

// Parse decodes, validates and builds a framework.
// The framework is nil unless the result is valid.
func Parse(data []byte) (*models.Framework, Result) {
	doc, err := Decode(data)
	if err != nil {
		return nil, Result{Valid: false, Errors: []string{err.Error()}, Warnings: []string{}}
	}

	result := Validate(doc)
	if !result.Valid {
		return nil, result
	}
	return build(doc), result
}

// ValidateFramework runs the document checks against an already typed framework
func ValidateFramework(fw *models.Framework) Result {
	raw, err := json.Marshal(ToDocument(fw))
	if err != nil {
		return Result{Valid: false, Errors: []string{err.Error()}, Warnings: []string{}}
	}
	return ValidateBytes(raw)
}

// ToDocument converts a framework into its canonical exchange shape
func ToDocument(fw *models.Framework) Document {
	return Document{
		Meta: Meta{
			ID:          fw.ID,
			Name:        fw.Name,
			Description: fw.Description,
			Version:     fw.Version,
		},
		Domains: fw.Domains,
	}
}

// MarshalDocument renders a framework as indented canonical JSON
func MarshalDocument(fw *models.Framework) ([]byte, error) {
	return json.MarshalIndent(ToDocument(fw), "", "  ")
}

// build converts a validated document tree into a framework
func build(doc map[string]any) *models.Framework {
	fw := &models.Framework{}

	meta, _ := doc["meta"].(map[string]any)
	fw.ID = firstNonEmpty(stringField(meta, "id"), stringField(doc, "id"))
	fw.Name = firstNonEmpty(stringField(meta, "name"), stringField(doc, "name"))
	fw.Description = firstNonEmpty(stringField(meta, "description"), stringField(doc, "description"))
	fw.Version = firstNonEmpty(versionField(meta), versionField(doc), "1.0")
	if fw.ID == "" {
		fw.ID = Slug(fw.Name)
	}

	domains, _ := doc["domains"].([]any)
	for _, rawDomain := range domains {
		d, _ := rawDomain.(map[string]any)
		weight, _ := toNumber(d["weight"])
		domain := models.Domain{
			ID:          stringField(d, "id"),
			Name:        stringField(d, "name"),
			Description: stringField(d, "description"),
			Weight:      weight,
			Order:       intField(d, "order"),
			Questions:   buildQuestions(d["questions"]),
		}

		gates, _ := d["gates"].([]any)
		for _, rawGate := range gates {
			g, _ := rawGate.(map[string]any)
			domain.Gates = append(domain.Gates, models.Gate{
				ID:          firstNonEmpty(stringField(g, "id"), Slug(stringField(g, "name"))),
				Name:        firstNonEmpty(stringField(g, "name"), stringField(g, "id")),
				Description: stringField(g, "description"),
				Order:       intField(g, "order"),
				Questions:   buildQuestions(g["questions"]),
			})
		}

		fw.Domains = append(fw.Domains, domain)
	}

	return fw
}

func buildQuestions(raw any) []models.Question {
	list, _ := raw.([]any)
	if len(list) == 0 {
		return nil
	}

	questions := make([]models.Question, 0, len(list))
	for _, rawQ := range list {
		q, _ := rawQ.(map[string]any)
		question := models.Question{
			ID:       stringField(q, "id"),
			Text:     stringField(q, "text"),
			Guidance: stringField(q, "guidance"),
			Order:    intField(q, "order"),
		}
		options, _ := q["options"].([]any)
		for _, rawOpt := range options {
			o, _ := rawOpt.(map[string]any)
			score, _ := toNumber(o["score"])
			question.Options = append(question.Options, models.Option{
				Score: int(math.Round(score)),
				Text:  stringField(o, "text"),
			})
		}
		questions = append(questions, question)
	}
	return questions
}

func intField(m map[string]any, key string) int {
	n, ok := toNumber(m[key])
	if !ok {
		return 0
	}
	return int(n)
}

// versionField accepts both "1.0" and a bare YAML/JSON number
func versionField(m map[string]any) string {
	if s := stringField(m, "version"); s != "" {
		return s
	}
	if n, ok := toNumber(m["version"]); ok {
		return fmt.Sprintf("%g", n)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a display name into an identifier
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
