package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/maturity-engine/internal/models"
)

// ParseResponses reads a response set from JSON or YAML. Three shapes are accepted:
// a list of responses, an object with a "responses" list, or a map of question ID to score.
func ParseResponses(data []byte) ([]models.Response, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: responses document is empty", ErrInvalidInput)
	}

	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: failed to parse responses: %v", ErrInvalidInput, err)
	}
	normalized, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse responses: %v", ErrInvalidInput, err)
	}

	switch v := tree.(type) {
	case []any:
		var list []models.Response
		if err := json.Unmarshal(normalized, &list); err != nil {
			return nil, fmt.Errorf("%w: invalid response list: %v", ErrInvalidInput, err)
		}
		return list, nil

	case map[string]any:
		if _, ok := v["responses"]; ok {
			var req models.SaveResponsesRequest
			if err := json.Unmarshal(normalized, &req); err != nil {
				return nil, fmt.Errorf("%w: invalid response list: %v", ErrInvalidInput, err)
			}
			return req.Responses, nil
		}

		var scores map[string]int
		if err := json.Unmarshal(normalized, &scores); err != nil {
			return nil, fmt.Errorf("%w: scores must be integers: %v", ErrInvalidInput, err)
		}
		list := make([]models.Response, 0, len(scores))
		for id, score := range scores {
			list = append(list, models.Response{QuestionID: id, Score: score})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].QuestionID < list[j].QuestionID })
		return list, nil
	}

	return nil, fmt.Errorf("%w: responses must be a list or an object", ErrInvalidInput)
}

// CheckResponses verifies that every response targets a question of fw with an accepted score
func CheckResponses(fw *models.Framework, responses []models.Response) error {
	index := fw.QuestionIndex()
	for _, r := range responses {
		ref, ok := index[r.QuestionID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownQuestion, r.QuestionID)
		}
		if !ref.Question.AcceptsScore(r.Score) {
			return fmt.Errorf("%w: question %q does not accept score %d (max %d)",
				ErrScoreOutOfRange, r.QuestionID, r.Score, ref.Question.MaxScore())
		}
	}
	return nil
}
