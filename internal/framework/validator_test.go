package framework

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `{
  "meta": {"name": "Platform Review", "version": "1.0"},
  "domains": [
    {"id": "build", "name": "Build", "weight": 0.5, "questions": [
      {"id": "q1", "text": "Are builds reproducible?"},
      {"id": "q2", "text": "How are builds cached?", "options": [
        {"score": 0, "text": "Not at all"},
        {"score": 5, "text": "Remote cache"}
      ]}
    ]},
    {"id": "run", "name": "Run", "weight": 0.5, "gates": [
      {"id": "g1", "name": "Alerting", "questions": [
        {"id": "q3", "text": "Is paging automated?"}
      ]}
    ]}
  ]
}`

func mustDecode(t *testing.T, raw string) map[string]any {
	t.Helper()
	doc, err := Decode([]byte(raw))
	require.NoError(t, err)
	return doc
}

func containsMessage(messages []string, parts ...string) bool {
	for _, m := range messages {
		matched := true
		for _, p := range parts {
			if !strings.Contains(m, p) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func TestValidateAcceptsValidDocument(t *testing.T) {
	result := Validate(mustDecode(t, validDocument))
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateMissingDomains(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}}`))
	assert.False(t, result.Valid)
	assert.True(t, containsMessage(result.Errors, "domains"), "errors: %v", result.Errors)
}

func TestValidateDomainsNotArray(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": {"id": "d1"}}`))
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"domains must be an array"}, result.Errors)
}

func TestValidateEmptyDomains(t *testing.T) {
	result := Validate(mustDecode(t, `{"name": "x", "domains": []}`))
	assert.False(t, result.Valid)
	assert.True(t, containsMessage(result.Errors, "domains", "at least one"))
}

func TestValidateMissingName(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "  "}, "domains": [
		{"id": "d", "name": "D", "weight": 1, "questions": [{"id": "q", "text": "t"}]}
	]}`))
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"meta.name is required"}, result.Errors)
}

func TestValidateTopLevelName(t *testing.T) {
	result := Validate(mustDecode(t, `{"name": "Flat", "domains": [
		{"id": "d", "name": "D", "weight": 1, "questions": [{"id": "q", "text": "t"}]}
	]}`))
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidateDuplicateQuestionAcrossDomains(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": [
		{"id": "d1", "name": "One", "weight": 0.5, "questions": [{"id": "shared", "text": "a"}]},
		{"id": "d2", "name": "Two", "weight": 0.5, "questions": [{"id": "shared", "text": "b"}]}
	]}`))
	assert.False(t, result.Valid)
	assert.True(t, containsMessage(result.Errors, "domains[1].questions[0].id", `"shared"`), "errors: %v", result.Errors)
}

func TestValidateDuplicateQuestionInsideGates(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": [
		{"id": "d1", "name": "One", "weight": 1, "questions": [{"id": "q1", "text": "a"}],
		 "gates": [{"id": "g", "name": "G", "questions": [{"id": "q1", "text": "b"}]}]}
	]}`))
	assert.False(t, result.Valid)
	assert.True(t, containsMessage(result.Errors, "domains[0].gates[0].questions[0].id", `"q1"`))
}

func TestValidateDuplicateDomain(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": [
		{"id": "d1", "name": "One", "weight": 0.5, "questions": [{"id": "q1", "text": "a"}]},
		{"id": "d1", "name": "Two", "weight": 0.5, "questions": [{"id": "q2", "text": "b"}]}
	]}`))
	assert.False(t, result.Valid)
	assert.Equal(t, []string{`domains[1].id "d1" duplicates domains[0].id`}, result.Errors)
}

func TestValidateCollectsEveryError(t *testing.T) {
	result := Validate(mustDecode(t, `{"domains": [
		{"weight": "heavy", "questions": [{"text": "no id"}, {"id": "q2"}]},
		{"id": "empty", "name": "Empty", "weight": 0.5, "questions": []}
	]}`))

	assert.False(t, result.Valid)
	want := []string{
		"meta.name is required",
		"domains[0].id is required",
		"domains[0].name is required",
		"domains[0].weight must be a number",
		"domains[0].questions[0].id is required",
		"domains[0].questions[1].text is required",
		`domains[1] ("empty") has no questions`,
	}
	assert.Equal(t, want, result.Errors)
	// The only parsed weight is 0.5
	assert.True(t, containsMessage(result.Warnings, "0.50"), "warnings: %v", result.Warnings)
}

func TestValidateMissingWeight(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": [
		{"id": "d1", "name": "One", "questions": [{"id": "q1", "text": "a"}]}
	]}`))
	assert.Equal(t, []string{"domains[0].weight is required"}, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateOptions(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": [
		{"id": "d1", "name": "One", "weight": 1, "questions": [
			{"id": "q1", "text": "few", "options": [{"score": 1, "text": "only"}]},
			{"id": "q2", "text": "bad", "options": [
				{"score": "3", "text": "string score"},
				{"score": 2.5, "text": "fraction"},
				{"score": 4, "text": ""},
				"not an object"
			]},
			{"id": "q3", "text": "shape", "options": {"score": 1}}
		]}
	]}`))

	assert.False(t, result.Valid)
	want := []string{
		"domains[0].questions[0].options must contain at least 2 entries, got 1",
		"domains[0].questions[1].options[0].score must be a number",
		"domains[0].questions[1].options[1].score must be a whole number",
		"domains[0].questions[1].options[2].text is required",
		"domains[0].questions[1].options[3] must be an object",
		"domains[0].questions[2].options must be an array",
	}
	assert.Equal(t, want, result.Errors)
}

func TestValidateWeightSumWarning(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": [
		{"id": "d1", "name": "One", "weight": 0.35, "questions": [{"id": "q1", "text": "a"}]},
		{"id": "d2", "name": "Two", "weight": 0.35, "questions": [{"id": "q2", "text": "b"}]},
		{"id": "d3", "name": "Three", "weight": 0.27, "questions": [{"id": "q3", "text": "c"}]}
	]}`))

	assert.True(t, result.Valid, "errors: %v", result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "0.97")
}

func TestValidateWeightSumWithinTolerance(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": [
		{"id": "d1", "name": "One", "weight": 0.5, "questions": [{"id": "q1", "text": "a"}]},
		{"id": "d2", "name": "Two", "weight": 0.49, "questions": [{"id": "q2", "text": "b"}]}
	]}`))
	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidateLargeWeightSumIsStillAWarning(t *testing.T) {
	result := Validate(mustDecode(t, `{"meta": {"name": "x"}, "domains": [
		{"id": "d1", "name": "One", "weight": 3.5, "questions": [{"id": "q1", "text": "a"}]}
	]}`))
	assert.True(t, result.Valid)
	assert.True(t, containsMessage(result.Warnings, "3.50"))
}

func TestValidateNilDocument(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateBytesReportsSyntaxErrors(t *testing.T) {
	result := ValidateBytes([]byte(`{"meta": `))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid JSON")
	assert.NotNil(t, result.Warnings)
}
