package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/terra-clan/maturity-engine/internal/models"
)

// Banding decides which answered questions are surfaced as strengths or gaps.
// Ratios are relative to the question's max score.
type Banding struct {
	StrengthRatio float64
	GapRatio      float64
	Limit         int // per domain, 0 means unlimited
}

// DefaultBanding marks 4/5 and above as strengths and 2/5 and below as gaps
var DefaultBanding = Banding{StrengthRatio: 0.8, GapRatio: 0.4, Limit: 5}

const ratioEpsilon = 1e-9

// Engine converts responses into a ScoringResult. It holds no state
// between calls and is safe for concurrent use.
type Engine struct {
	banding Banding
}

// Option configures an Engine
type Option func(*Engine)

// WithBanding overrides the strength/gap banding
func WithBanding(b Banding) Option {
	return func(e *Engine) {
		e.banding = b
	}
}

// NewEngine creates a scoring engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{banding: DefaultBanding}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Score scores responses with the default engine
func Score(fw *models.Framework, responses []models.Response) models.ScoringResult {
	return defaultEngine.Score(fw, responses)
}

// Score computes domain scores, the weighted overall score and the maturity level.
// Only answered questions count toward a domain's current and max totals.
// Responses to unknown questions are ignored; the last response per question wins.
func (e *Engine) Score(fw *models.Framework, responses []models.Response) models.ScoringResult {
	result := models.ScoringResult{
		FrameworkID:  fw.ID,
		DomainScores: make([]models.DomainScore, 0, len(fw.Domains)),
	}

	answers := make(map[string]int, len(responses))
	for _, r := range responses {
		answers[r.QuestionID] = r.Score
	}

	var overall float64
	for _, d := range fw.Domains {
		ds := models.DomainScore{
			DomainID:  d.ID,
			Name:      d.Name,
			Weight:    d.Weight,
			Strengths: []string{},
			Gaps:      []string{},
		}

		for _, ref := range d.Refs() {
			score, ok := answers[ref.Question.ID]
			if !ok {
				continue
			}
			qs := models.QuestionScore{
				QuestionID: ref.Question.ID,
				Text:       ref.Question.Text,
				GateID:     ref.GateID,
				GateName:   ref.GateName,
				Score:      score,
				MaxScore:   ref.Question.MaxScore(),
			}
			qs.OptionLabel, _ = ref.Question.OptionLabel(score)

			ds.Current += qs.Score
			ds.Max += qs.MaxScore
			ds.Answers = append(ds.Answers, qs)
		}

		raw := 0.0
		if ds.Max > 0 {
			raw = float64(ds.Current) * 100 / float64(ds.Max)
		}
		ds.Score = Round(raw, 2)
		ds.DisplayScore = int(math.Round(raw))
		ds.MaturityLevel = LevelFor(ds.Score)
		ds.Strengths, ds.Gaps = e.band(ds.Answers)

		overall += raw * d.Weight
		result.DomainScores = append(result.DomainScores, ds)
	}

	result.OverallScore = Round(overall, 2)
	result.MaturityLevel = LevelFor(result.OverallScore)
	result.MaturityName = Level(result.MaturityLevel).Name
	return result
}

func (e *Engine) band(answers []models.QuestionScore) (strengths, gaps []string) {
	var high, low []models.QuestionScore
	for _, a := range answers {
		if a.MaxScore <= 0 {
			continue
		}
		ratio := a.Ratio()
		if ratio >= e.banding.StrengthRatio-ratioEpsilon {
			high = append(high, a)
		} else if ratio <= e.banding.GapRatio+ratioEpsilon {
			low = append(low, a)
		}
	}

	sort.SliceStable(high, func(i, j int) bool { return high[i].Ratio() > high[j].Ratio() })
	sort.SliceStable(low, func(i, j int) bool { return low[i].Ratio() < low[j].Ratio() })

	return e.labels(high), e.labels(low)
}

func (e *Engine) labels(answers []models.QuestionScore) []string {
	if e.banding.Limit > 0 && len(answers) > e.banding.Limit {
		answers = answers[:e.banding.Limit]
	}
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		out = append(out, Label(a))
	}
	return out
}

// Label renders an answered question as "gate - question: answer"
func Label(a models.QuestionScore) string {
	answer := a.OptionLabel
	if answer == "" {
		answer = fmt.Sprintf("Score %d/%d", a.Score, a.MaxScore)
	}
	if a.GateName != "" {
		return fmt.Sprintf("%s - %s: %s", a.GateName, a.Text, answer)
	}
	return fmt.Sprintf("%s: %s", a.Text, answer)
}

// Round rounds x half away from zero to the given number of decimal places
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
