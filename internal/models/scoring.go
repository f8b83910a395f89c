package models

// MaturityLevel is a discrete 1-5 classification of a score
type MaturityLevel struct {
	Level       int    `json:"level"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// QuestionScore is the answered score of a single question
type QuestionScore struct {
	QuestionID  string `json:"question_id"`
	Text        string `json:"text"`
	GateID      string `json:"gate_id,omitempty"`
	GateName    string `json:"gate_name,omitempty"`
	Score       int    `json:"score"`
	MaxScore    int    `json:"max_score"`
	OptionLabel string `json:"option_label,omitempty"`
}

// Ratio returns score/max in [0,1], or 0 when max is not positive
func (q QuestionScore) Ratio() float64 {
	if q.MaxScore <= 0 {
		return 0
	}
	return float64(q.Score) / float64(q.MaxScore)
}

// DomainScore is the computed result of one domain
type DomainScore struct {
	DomainID      string          `json:"domain_id"`
	Name          string          `json:"name"`
	Weight        float64         `json:"weight"`
	Score         float64         `json:"score"`
	DisplayScore  int             `json:"display_score"`
	MaturityLevel int             `json:"maturity_level"`
	Current       int             `json:"current"`
	Max           int             `json:"max"`
	Answers       []QuestionScore `json:"answers,omitempty"`
	Strengths     []string        `json:"strengths"`
	Gaps          []string        `json:"gaps"`
}

// ScoringResult is the derived outcome of scoring a set of responses
type ScoringResult struct {
	FrameworkID   string        `json:"framework_id"`
	DomainScores  []DomainScore `json:"domain_scores"`
	OverallScore  float64       `json:"overall_score"`
	MaturityLevel int           `json:"maturity_level"`
	MaturityName  string        `json:"maturity_name"`
}

// Domain returns the score of the given domain, or nil
func (r *ScoringResult) Domain(id string) *DomainScore {
	for i := range r.DomainScores {
		if r.DomainScores[i].DomainID == id {
			return &r.DomainScores[i]
		}
	}
	return nil
}
