package coding

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

const (
	OriginDecoded  = "decoded"
	OriginFallback = "fallback"
)

// DecodedCategory mirrors the structured category object the analysis
// collaborator is asked to emit.
type DecodedCategory struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Properties  []string `json:"properties"`
	Dimension   string   `json:"dimension"`
}

type CategoriesResult struct {
	Origin     string
	Categories []DecodedCategory
}

type QuestionsResult struct {
	Origin    string
	Questions []string
}

type DecodedPattern struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
}

type PatternsResult struct {
	Origin   string
	Patterns []DecodedPattern
}

// Decoder turns free-text responses that should contain one embedded JSON
// object into validated results. It never returns an error: undecodable
// input yields a curated fallback catalog so the pipeline cannot stall.
type Decoder struct {
	logger *zap.Logger
}

func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

func (d *Decoder) DecodeCategories(response string) CategoriesResult {
	var payload struct {
		Categories []DecodedCategory `json:"categories"`
	}

	if err := json.Unmarshal([]byte(stripCodeFences(response)), &payload); err != nil || len(payload.Categories) == 0 {
		d.logger.Warn("Falling back to template categories", zap.Error(err))
		return CategoriesResult{Origin: OriginFallback, Categories: fallbackCategories()}
	}

	for i := range payload.Categories {
		if payload.Categories[i].Properties == nil {
			payload.Categories[i].Properties = []string{}
		}
	}

	return CategoriesResult{Origin: OriginDecoded, Categories: payload.Categories}
}

func (d *Decoder) DecodeQuestions(response string) QuestionsResult {
	var payload struct {
		Questions []string `json:"questions"`
	}

	if err := json.Unmarshal([]byte(stripCodeFences(response)), &payload); err != nil || len(payload.Questions) == 0 {
		d.logger.Warn("Falling back to template research questions", zap.Error(err))
		return QuestionsResult{Origin: OriginFallback, Questions: fallbackQuestions()}
	}

	return QuestionsResult{Origin: OriginDecoded, Questions: payload.Questions}
}

func (d *Decoder) DecodePatterns(response string) PatternsResult {
	var payload struct {
		Patterns []DecodedPattern `json:"patterns"`
	}

	if err := json.Unmarshal([]byte(stripCodeFences(response)), &payload); err != nil || len(payload.Patterns) == 0 {
		d.logger.Warn("Falling back to template patterns", zap.Error(err))
		return PatternsResult{Origin: OriginFallback, Patterns: fallbackPatterns()}
	}

	for i := range payload.Patterns {
		if payload.Patterns[i].Categories == nil {
			payload.Patterns[i].Categories = []string{}
		}
	}

	return PatternsResult{Origin: OriginDecoded, Patterns: payload.Patterns}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func fallbackCategories() []DecodedCategory {
	return []DecodedCategory{
		{
			Name:        "Communication",
			Description: "How information flows between participants",
			Properties:  []string{"frequency", "channel", "direction"},
			Dimension:   "formal to informal",
		},
		{
			Name:        "Decision Making",
			Description: "How choices are reached and by whom",
			Properties:  []string{"participation", "speed", "transparency"},
			Dimension:   "top-down to consensus",
		},
		{
			Name:        "Challenges",
			Description: "Obstacles and friction reported by participants",
			Properties:  []string{"severity", "recurrence"},
			Dimension:   "minor to blocking",
		},
		{
			Name:        "Resources",
			Description: "Availability and use of tools, time, and support",
			Properties:  []string{"availability", "adequacy"},
			Dimension:   "scarce to abundant",
		},
	}
}

func fallbackQuestions() []string {
	return []string{
		"What recurring themes appear across the collected material?",
		"How do participants describe their working relationships?",
		"Which obstacles do participants mention most often?",
	}
}

func fallbackPatterns() []DecodedPattern {
	return []DecodedPattern{
		{
			Name:        "Communication breakdown under pressure",
			Description: "Information flow degrades when deadlines tighten",
			Categories:  []string{"Communication", "Challenges"},
		},
		{
			Name:        "Resource constraints shape decisions",
			Description: "Scarcity narrows the options participants consider",
			Categories:  []string{"Resources", "Decision Making"},
		},
	}
}
