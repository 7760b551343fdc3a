package records

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

// CategoryCustom requires a free-text query.
const CategoryCustom = "Custom"

// Categories lists the forecast areas on offer.
var Categories = []string{
	"Workload",
	"Project Timeline",
	"Team Performance",
	"Market Trends",
	"Resource Needs",
	"Risk Assessment",
	CategoryCustom,
}

var defaultRecommendations = []string{"Monitor trends closely", "Prepare contingency plans", "Stay informed"}

const (
	defaultConfidence = 70
	defaultTimeframe  = "Next quarter"
)

// TextGenerator is the one-shot completion call used for forecasts.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// PredictionBook generates and stores forecasts per user.
type PredictionBook struct {
	list        list[domain.Prediction]
	llm         TextGenerator
	temperature float32
	logger      zerolog.Logger
	now         func() time.Time
}

// NewPredictionBook creates a prediction book over store.
func NewPredictionBook(store Store, llm TextGenerator, temperature float32, logger zerolog.Logger) *PredictionBook {
	return &PredictionBook{
		list:        list[domain.Prediction]{store: store, key: predictionsKey},
		llm:         llm,
		temperature: temperature,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns the user's predictions, newest first. An empty or "all"
// category matches everything.
func (b *PredictionBook) List(ctx context.Context, user, category string) ([]domain.Prediction, error) {
	items, err := b.list.read(ctx, user)
	if err != nil {
		return nil, err
	}
	if category == "" || category == StatusAll {
		return items, nil
	}
	return slices.DeleteFunc(items, func(p domain.Prediction) bool { return p.Category != category }), nil
}

// Generate asks the model for a forecast and stores it. Model failures are
// returned to the caller; malformed replies fall back to defaults.
func (b *PredictionBook) Generate(ctx context.Context, caller domain.User, category, query string) (domain.Prediction, error) {
	category = strings.TrimSpace(category)
	query = strings.TrimSpace(query)
	if !slices.Contains(Categories, category) {
		return domain.Prediction{}, domain.NewValidationError("category", "unknown category")
	}
	if category == CategoryCustom && query == "" {
		return domain.Prediction{}, domain.NewValidationError("query", "a custom prediction needs a query")
	}

	text, err := b.llm.Generate(ctx, BuildPredictionPrompt(caller, category, query), b.temperature)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("failed to generate prediction: %w", err)
	}

	p := ParsePrediction(text, category, b.logger)
	p.ID = newID()
	p.CreatedAt = b.now()

	err = b.list.update(ctx, caller.Name, func(items []domain.Prediction) ([]domain.Prediction, error) {
		return append([]domain.Prediction{p}, items...), nil
	})
	return p, err
}

// Delete removes prediction id.
func (b *PredictionBook) Delete(ctx context.Context, user, id string) error {
	return b.list.update(ctx, user, func(items []domain.Prediction) ([]domain.Prediction, error) {
		n := len(items)
		items = slices.DeleteFunc(items, func(p domain.Prediction) bool { return p.ID == id })
		if len(items) == n {
			return nil, domain.ErrRecordNotFound
		}
		return items, nil
	})
}

// BuildPredictionPrompt renders the forecast request.
func BuildPredictionPrompt(caller domain.User, category, query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a strategic AI advisor. Based on current trends and data patterns, provide future predictions for the following area: %s.\n\n", category)
	if query != "" {
		fmt.Fprintf(&sb, "Specific query: %s\n", query)
	}
	sb.WriteString(`
Please provide:
1. A clear prediction title
2. A detailed description of what might happen
3. A confidence level (0-100)
4. The timeframe (e.g., "Next 3 months", "Q2 2024")
5. The potential impact (low, medium, or high)
6. 3-5 actionable recommendations

Format your response as JSON with this structure:
{
  "title": "Prediction title",
  "description": "Detailed description",
  "confidence": 75,
  "timeframe": "Next 3 months",
  "impact": "high",
  "recommendations": ["Recommendation 1", "Recommendation 2", "Recommendation 3"]
}

`)
	fmt.Fprintf(&sb, "User context: %s (%s)", caller.Name, caller.Role)
	return sb.String()
}

// ParsePrediction extracts the JSON object from a model reply, repairing
// it when needed. Missing or unusable fields take default values.
func ParsePrediction(text, category string, logger zerolog.Logger) domain.Prediction {
	p := domain.Prediction{
		Category:        category,
		Title:           "Future Insights: " + category,
		Description:     text,
		Confidence:      defaultConfidence,
		Timeframe:       defaultTimeframe,
		Impact:          domain.PriorityMedium,
		Recommendations: append([]string(nil), defaultRecommendations...),
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return p
	}
	raw := text[start : end+1]

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			logger.Debug().Err(rerr).Msg("prediction reply is not repairable JSON")
			return p
		}
		if err := json.Unmarshal([]byte(repaired), &fields); err != nil {
			logger.Debug().Err(err).Msg("repaired prediction reply did not decode")
			return p
		}
	}

	if s, ok := fields["title"].(string); ok && strings.TrimSpace(s) != "" {
		p.Title = s
	}
	if s, ok := fields["description"].(string); ok && strings.TrimSpace(s) != "" {
		p.Description = s
	}
	if n, ok := fields["confidence"].(float64); ok && n != 0 {
		p.Confidence = clamp(int(n), 0, 100)
	}
	if s, ok := fields["timeframe"].(string); ok && strings.TrimSpace(s) != "" {
		p.Timeframe = s
	}
	if s, ok := fields["impact"].(string); ok {
		if impact := domain.Priority(strings.ToLower(strings.TrimSpace(s))); impact.Valid() {
			p.Impact = impact
		}
	}
	if recs, ok := fields["recommendations"].([]any); ok {
		var out []string
		for _, r := range recs {
			if s, ok := r.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			p.Recommendations = out
		}
	}
	return p
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
