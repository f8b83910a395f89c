package models

import "time"

// DefaultMaxScore is the maximum score of a question without explicit options
const DefaultMaxScore = 5

// Framework is a named, versioned assessment definition
type Framework struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	Version        string    `json:"version" yaml:"version"`
	Domains        []Domain  `json:"domains" yaml:"domains"`
	Builtin        bool      `json:"builtin" yaml:"-"`
	OrganizationID string    `json:"organization_id,omitempty" yaml:"-"`
	CreatedAt      time.Time `json:"created_at,omitempty" yaml:"-"`
}

// Domain is a weighted top-level category of a framework
type Domain struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Weight      float64    `json:"weight" yaml:"weight"`
	Order       int        `json:"order,omitempty" yaml:"order,omitempty"`
	Gates       []Gate     `json:"gates,omitempty" yaml:"gates,omitempty"`
	Questions   []Question `json:"questions,omitempty" yaml:"questions,omitempty"`
}

// Gate groups questions inside a domain for display. It carries no weight.
type Gate struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Order       int        `json:"order,omitempty" yaml:"order,omitempty"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// Question is a single scoring item
type Question struct {
	ID       string   `json:"id" yaml:"id"`
	Text     string   `json:"text" yaml:"text"`
	Guidance string   `json:"guidance,omitempty" yaml:"guidance,omitempty"`
	Order    int      `json:"order,omitempty" yaml:"order,omitempty"`
	Options  []Option `json:"options,omitempty" yaml:"options,omitempty"`
}

// Option is one selectable answer of an option-list question
type Option struct {
	Score int    `json:"score" yaml:"score"`
	Text  string `json:"text" yaml:"text"`
}

// QuestionRef locates a question inside a framework
type QuestionRef struct {
	Question Question
	DomainID string
	GateID   string
	GateName string
}

// MaxScore returns the highest score the question can receive
func (q Question) MaxScore() int {
	if len(q.Options) == 0 {
		return DefaultMaxScore
	}
	max := q.Options[0].Score
	for _, opt := range q.Options[1:] {
		if opt.Score > max {
			max = opt.Score
		}
	}
	return max
}

// AcceptsScore reports whether score is a legal answer for the question
func (q Question) AcceptsScore(score int) bool {
	if len(q.Options) == 0 {
		return score >= 0 && score <= DefaultMaxScore
	}
	for _, opt := range q.Options {
		if opt.Score == score {
			return true
		}
	}
	return false
}

// OptionLabel returns the text of the option matching score, if any
func (q Question) OptionLabel(score int) (string, bool) {
	for _, opt := range q.Options {
		if opt.Score == score {
			return opt.Text, true
		}
	}
	return "", false
}

// Refs returns every question of the domain in display order,
// direct questions first, then gate questions.
func (d Domain) Refs() []QuestionRef {
	refs := make([]QuestionRef, 0, len(d.Questions))
	for _, q := range d.Questions {
		refs = append(refs, QuestionRef{Question: q, DomainID: d.ID})
	}
	for _, g := range d.Gates {
		for _, q := range g.Questions {
			refs = append(refs, QuestionRef{Question: q, DomainID: d.ID, GateID: g.ID, GateName: g.Name})
		}
	}
	return refs
}

// QuestionCount returns the number of questions reachable from the domain
func (d Domain) QuestionCount() int {
	n := len(d.Questions)
	for _, g := range d.Gates {
		n += len(g.Questions)
	}
	return n
}

// Refs returns every question of the framework in display order
func (f *Framework) Refs() []QuestionRef {
	var refs []QuestionRef
	for _, d := range f.Domains {
		refs = append(refs, d.Refs()...)
	}
	return refs
}

// QuestionIndex maps question IDs to their location
func (f *Framework) QuestionIndex() map[string]QuestionRef {
	index := make(map[string]QuestionRef)
	for _, ref := range f.Refs() {
		index[ref.Question.ID] = ref
	}
	return index
}

// QuestionCount returns the total number of questions
func (f *Framework) QuestionCount() int {
	n := 0
	for _, d := range f.Domains {
		n += d.QuestionCount()
	}
	return n
}

// TotalWeight returns the sum of all domain weights
func (f *Framework) TotalWeight() float64 {
	var sum float64
	for _, d := range f.Domains {
		sum += d.Weight
	}
	return sum
}

// Domain returns the domain with the given ID, or nil
func (f *Framework) Domain(id string) *Domain {
	for i := range f.Domains {
		if f.Domains[i].ID == id {
			return &f.Domains[i]
		}
	}
	return nil
}

// FrameworkSummary is the list view of a framework
type FrameworkSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Version        string  `json:"version"`
	Builtin        bool    `json:"builtin"`
	OrganizationID string  `json:"organization_id,omitempty"`
	DomainCount    int     `json:"domain_count"`
	QuestionCount  int     `json:"question_count"`
	TotalWeight    float64 `json:"total_weight"`
}

// Summary returns the list view of the framework
func (f *Framework) Summary() FrameworkSummary {
	return FrameworkSummary{
		ID:             f.ID,
		Name:           f.Name,
		Description:    f.Description,
		Version:        f.Version,
		Builtin:        f.Builtin,
		OrganizationID: f.OrganizationID,
		DomainCount:    len(f.Domains),
		QuestionCount:  f.QuestionCount(),
		TotalWeight:    f.TotalWeight(),
	}
}
