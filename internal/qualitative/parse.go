package qualitative

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wonny/winrate/internal/contracts"
)

var (
	// ErrNoJSON means the answer contained no {...} block
	ErrNoJSON = errors.New("no json object in response")
	// ErrMissingScore means the JSON had no usable win_rate_score
	ErrMissingScore = errors.New("win_rate_score missing")
)

type rawFactor struct {
	Factor      string  `json:"factor"`
	Impact      string  `json:"impact"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

type rawReport struct {
	WinRateScore           *float64        `json:"win_rate_score"`
	ConfidenceInterval     string          `json:"confidence_interval"`
	InfluencingFactors     []rawFactor     `json:"influencing_factors"`
	CompetitorAnalysis     json.RawMessage `json:"competitor_analysis"`
	ImprovementSuggestions json.RawMessage `json:"improvement_suggestions"`
	Narrative              string          `json:"narrative"`
}

// ExtractJSON returns the substring between the first '{' and the last '}'
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// ParseReport 모델 응답 텍스트에서 정성 분석 결과 추출
// JSON 앞뒤의 설명 문구는 무시
func ParseReport(text string) (*contracts.QualitativeReport, error) {
	body, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var raw rawReport
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("decode analysis json: %w", err)
	}
	if raw.WinRateScore == nil || math.IsNaN(*raw.WinRateScore) {
		return nil, ErrMissingScore
	}

	score := int(math.Round(clampFloat(*raw.WinRateScore, 0, 100)))
	report := &contracts.QualitativeReport{
		WinRateScore:           score,
		ConfidenceInterval:     strings.TrimSpace(raw.ConfidenceInterval),
		InfluencingFactors:     make([]contracts.InfluencingFactor, 0, len(raw.InfluencingFactors)),
		CompetitorAnalysis:     parseCompetitorAnalysis(raw.CompetitorAnalysis),
		ImprovementSuggestions: parseSuggestions(raw.ImprovementSuggestions),
		Narrative:              strings.TrimSpace(raw.Narrative),
		Source:                 contracts.SourceLLM,
	}
	if report.ConfidenceInterval == "" {
		report.ConfidenceInterval = confidenceInterval(score)
	}

	for _, f := range raw.InfluencingFactors {
		if strings.TrimSpace(f.Factor) == "" {
			continue
		}
		report.InfluencingFactors = append(report.InfluencingFactors, contracts.InfluencingFactor{
			Factor:      f.Factor,
			Impact:      strings.ToLower(strings.TrimSpace(f.Impact)),
			Score:       int(math.Round(clampFloat(f.Score, 1, 10))),
			Description: f.Description,
		})
	}

	return report, nil
}

// parseCompetitorAnalysis accepts an object or a plain string
func parseCompetitorAnalysis(raw json.RawMessage) contracts.CompetitorAnalysis {
	var ca contracts.CompetitorAnalysis
	if len(raw) == 0 {
		return ca
	}
	if err := json.Unmarshal(raw, &ca); err == nil {
		return ca
	}
	ca = contracts.CompetitorAnalysis{}
	var summary string
	if err := json.Unmarshal(raw, &summary); err == nil {
		ca.Summary = summary
	}
	return ca
}

// parseSuggestions accepts a list of objects or a list of strings
func parseSuggestions(raw json.RawMessage) []contracts.ImprovementSuggestion {
	out := []contracts.ImprovementSuggestion{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err == nil {
		if out == nil {
			out = []contracts.ImprovementSuggestion{}
		}
		return out
	}

	out = []contracts.ImprovementSuggestion{}
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		for _, s := range plain {
			out = append(out, contracts.ImprovementSuggestion{Area: "general", Action: s})
		}
	}
	return out
}

// confidenceInterval formats "{s-5}-{s+5}%"
func confidenceInterval(score int) string {
	return fmt.Sprintf("%d-%d%%", score-5, score+5)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
