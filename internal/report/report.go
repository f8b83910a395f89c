package report

import (
	"fmt"
	"time"

	"github.com/terra-clan/maturity-engine/internal/models"
	"github.com/terra-clan/maturity-engine/internal/scoring"
)

const (
	// TopItems is the number of strengths and gaps listed across the whole report
	TopItems = 10
	// GapRecommendations is the number of gaps turned into recommendations
	GapRecommendations = 5
)

// Meta identifies the assessment a report belongs to
type Meta struct {
	AssessmentID string
	TeamName     string
	CompletedAt  *time.Time
}

// Report is the presentation view of a scored assessment
type Report struct {
	AssessmentID    string               `json:"assessment_id,omitempty"`
	TeamName        string               `json:"team_name,omitempty"`
	FrameworkID     string               `json:"framework_id"`
	FrameworkName   string               `json:"framework_name"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	OverallScore    float64              `json:"overall_score"`
	MaturityLevel   models.MaturityLevel `json:"maturity_level"`
	Domains         []DomainSection      `json:"domains"`
	GateScores      []GateScore          `json:"gate_scores"`
	TopStrengths    []string             `json:"top_strengths"`
	TopGaps         []string             `json:"top_gaps"`
	Recommendations []string             `json:"recommendations"`
}

// DomainSection is one domain row of a report
type DomainSection struct {
	DomainID      string   `json:"domain_id"`
	Name          string   `json:"name"`
	Weight        float64  `json:"weight"`
	Score         float64  `json:"score"`
	DisplayScore  int      `json:"display_score"`
	MaturityLevel int      `json:"maturity_level"`
	Strengths     []string `json:"strengths"`
	Gaps          []string `json:"gaps"`
}

// GateScore is the answered total of one gate
type GateScore struct {
	DomainID   string  `json:"domain_id"`
	GateID     string  `json:"gate_id"`
	Name       string  `json:"name"`
	Score      int     `json:"score"`
	MaxScore   int     `json:"max_score"`
	Percentage float64 `json:"percentage"`
}

var levelGuidance = map[int]string{
	1: "Establish the foundations: version control everywhere, a basic CI pipeline and written runbooks.",
	2: "Standardize the automation that exists so every team builds, tests and deploys the same way.",
	3: "Start measuring delivery performance and use the metrics to pick the next automation targets.",
	4: "Shift toward self-service platforms and continuous experimentation to remove remaining toil.",
	5: "Keep feedback loops short and share practices across the organization to sustain the level.",
}

// Build assembles a report from a scoring result
func Build(meta Meta, fw *models.Framework, result models.ScoringResult) *Report {
	r := &Report{
		AssessmentID:    meta.AssessmentID,
		TeamName:        meta.TeamName,
		CompletedAt:     meta.CompletedAt,
		FrameworkID:     fw.ID,
		FrameworkName:   fw.Name,
		OverallScore:    result.OverallScore,
		MaturityLevel:   scoring.Level(result.MaturityLevel),
		Domains:         make([]DomainSection, 0, len(result.DomainScores)),
		GateScores:      []GateScore{},
		TopStrengths:    []string{},
		TopGaps:         []string{},
		Recommendations: []string{},
	}

	for _, ds := range result.DomainScores {
		r.Domains = append(r.Domains, DomainSection{
			DomainID:      ds.DomainID,
			Name:          ds.Name,
			Weight:        ds.Weight,
			Score:         ds.Score,
			DisplayScore:  ds.DisplayScore,
			MaturityLevel: ds.MaturityLevel,
			Strengths:     ds.Strengths,
			Gaps:          ds.Gaps,
		})
		r.GateScores = append(r.GateScores, gateScores(ds)...)
		r.TopStrengths = appendLimited(r.TopStrengths, ds.Strengths, TopItems)
		r.TopGaps = appendLimited(r.TopGaps, ds.Gaps, TopItems)
	}

	r.Recommendations = recommendations(r)
	return r
}

func gateScores(ds models.DomainScore) []GateScore {
	var out []GateScore
	index := make(map[string]int)

	for _, a := range ds.Answers {
		if a.GateID == "" {
			continue
		}
		i, ok := index[a.GateID]
		if !ok {
			i = len(out)
			index[a.GateID] = i
			out = append(out, GateScore{DomainID: ds.DomainID, GateID: a.GateID, Name: a.GateName})
		}
		out[i].Score += a.Score
		out[i].MaxScore += a.MaxScore
	}

	for i := range out {
		if out[i].MaxScore > 0 {
			out[i].Percentage = scoring.Round(float64(out[i].Score)*100/float64(out[i].MaxScore), 2)
		}
	}
	return out
}

func recommendations(r *Report) []string {
	var out []string

	for i, gap := range r.TopGaps {
		if i == GapRecommendations {
			break
		}
		out = append(out, "Address identified gap: "+gap)
	}

	if weakest := weakestDomain(r.Domains); weakest != nil && weakest.DisplayScore < 100 {
		out = append(out, fmt.Sprintf("Prioritize %s, the lowest scoring domain at %d%%.", weakest.Name, weakest.DisplayScore))
	}

	if guidance, ok := levelGuidance[r.MaturityLevel.Level]; ok {
		out = append(out, guidance)
	}
	return out
}

func weakestDomain(domains []DomainSection) *DomainSection {
	var weakest *DomainSection
	for i := range domains {
		if domains[i].Weight <= 0 {
			continue
		}
		if weakest == nil || domains[i].Score < weakest.Score {
			weakest = &domains[i]
		}
	}
	return weakest
}

func appendLimited(dst, src []string, limit int) []string {
	for _, s := range src {
		if len(dst) >= limit {
			break
		}
		dst = append(dst, s)
	}
	return dst
}
