package framework

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// WeightTolerance is the accepted deviation of the domain weight sum from 1.0
const WeightTolerance = 0.01

// MinOptions is the minimum number of options of an option-list question
const MinOptions = 2

// Result is the outcome of validating a framework document.
// Errors make the document unusable; warnings are informational.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks an untrusted framework document for structural soundness.
// Every check runs; the result lists all problems found.
func Validate(doc map[string]any) Result {
	v := &validator{
		questionIDs: make(map[string]string),
	}
	v.run(doc)

	return Result{
		Valid:    len(v.errors) == 0,
		Errors:   v.errors,
		Warnings: v.warnings,
	}
}

type validator struct {
	errors      []string
	warnings    []string
	questionIDs map[string]string // id -> path of first definition
}

func (v *validator) errorf(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) run(doc map[string]any) {
	// Non-nil slices so the JSON form is [] rather than null
	v.errors = []string{}
	v.warnings = []string{}

	if doc == nil {
		v.errorf("document must be a JSON object")
		return
	}

	v.checkName(doc)

	raw, ok := doc["domains"]
	if !ok || raw == nil {
		v.errorf("domains is required")
		return
	}
	domains, ok := raw.([]any)
	if !ok {
		v.errorf("domains must be an array")
		return
	}
	if len(domains) == 0 {
		v.errorf("domains must contain at least one domain")
		return
	}

	var weightSum float64
	weighted := 0
	domainIDs := make(map[string]int)

	for i, rawDomain := range domains {
		path := fmt.Sprintf("domains[%d]", i)
		domain, ok := rawDomain.(map[string]any)
		if !ok {
			v.errorf("%s must be an object", path)
			continue
		}

		id := stringField(domain, "id")
		if id == "" {
			v.errorf("%s.id is required", path)
		} else if first, dup := domainIDs[id]; dup {
			v.errorf("%s.id %q duplicates domains[%d].id", path, id, first)
		} else {
			domainIDs[id] = i
		}

		if stringField(domain, "name") == "" {
			v.errorf("%s.name is required", path)
		}

		if w, present := domain["weight"]; !present || w == nil {
			v.errorf("%s.weight is required", path)
		} else if n, numeric := toNumber(w); !numeric {
			v.errorf("%s.weight must be a number", path)
		} else {
			weightSum += n
			weighted++
		}

		if v.checkDomainQuestions(path, domain) == 0 {
			v.errorf("%s (%s) has no questions", path, domainLabel(domain, i))
		}
	}

	if weighted > 0 && math.Abs(weightSum-1.0) > WeightTolerance+1e-9 {
		v.warnf("domain weights sum to %.2f, expected 1.00 (±%.2f)", weightSum, WeightTolerance)
	}
}

func (v *validator) checkName(doc map[string]any) {
	if meta, ok := doc["meta"].(map[string]any); ok {
		if stringField(meta, "name") != "" {
			return
		}
	}
	if stringField(doc, "name") != "" {
		return
	}
	v.errorf("meta.name is required")
}

// checkDomainQuestions validates direct and gate questions, returning how many there are
func (v *validator) checkDomainQuestions(path string, domain map[string]any) int {
	count := 0

	if raw, ok := domain["questions"]; ok && raw != nil {
		questions, ok := raw.([]any)
		if !ok {
			v.errorf("%s.questions must be an array", path)
		} else {
			for j, q := range questions {
				v.checkQuestion(fmt.Sprintf("%s.questions[%d]", path, j), q)
			}
			count += len(questions)
		}
	}

	if raw, ok := domain["gates"]; ok && raw != nil {
		gates, ok := raw.([]any)
		if !ok {
			v.errorf("%s.gates must be an array", path)
			return count
		}
		for g, rawGate := range gates {
			gatePath := fmt.Sprintf("%s.gates[%d]", path, g)
			gate, ok := rawGate.(map[string]any)
			if !ok {
				v.errorf("%s must be an object", gatePath)
				continue
			}
			if stringField(gate, "name") == "" && stringField(gate, "id") == "" {
				v.errorf("%s.name is required", gatePath)
			}
			rawQuestions, ok := gate["questions"]
			if !ok || rawQuestions == nil {
				continue
			}
			questions, ok := rawQuestions.([]any)
			if !ok {
				v.errorf("%s.questions must be an array", gatePath)
				continue
			}
			for j, q := range questions {
				v.checkQuestion(fmt.Sprintf("%s.questions[%d]", gatePath, j), q)
			}
			count += len(questions)
		}
	}

	return count
}

func (v *validator) checkQuestion(path string, raw any) {
	q, ok := raw.(map[string]any)
	if !ok {
		v.errorf("%s must be an object", path)
		return
	}

	id := stringField(q, "id")
	if id == "" {
		v.errorf("%s.id is required", path)
	} else if first, dup := v.questionIDs[id]; dup {
		v.errorf("%s.id %q is a duplicate question id (first defined at %s)", path, id, first)
	} else {
		v.questionIDs[id] = path
	}

	if stringField(q, "text") == "" {
		v.errorf("%s.text is required", path)
	}

	rawOptions, ok := q["options"]
	if !ok {
		return
	}
	options, ok := rawOptions.([]any)
	if !ok {
		v.errorf("%s.options must be an array", path)
		return
	}
	if len(options) < MinOptions {
		v.errorf("%s.options must contain at least %d entries, got %d", path, MinOptions, len(options))
	}
	for k, rawOpt := range options {
		optPath := fmt.Sprintf("%s.options[%d]", path, k)
		opt, ok := rawOpt.(map[string]any)
		if !ok {
			v.errorf("%s must be an object", optPath)
			continue
		}
		score, numeric := toNumber(opt["score"])
		switch {
		case !numeric:
			v.errorf("%s.score must be a number", optPath)
		case score != math.Trunc(score):
			v.errorf("%s.score must be a whole number", optPath)
		}
		if stringField(opt, "text") == "" {
			v.errorf("%s.text is required", optPath)
		}
	}
}

func domainLabel(domain map[string]any, index int) string {
	if id := stringField(domain, "id"); id != "" {
		return fmt.Sprintf("%q", id)
	}
	if name := stringField(domain, "name"); name != "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("#%d", index)
}

// stringField returns the trimmed string value of key, or "" when absent or not a string
func stringField(m map[string]any, key string) string {
	s, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
