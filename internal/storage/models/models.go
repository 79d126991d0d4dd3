package models

import "time"

const (
	OriginManual    = "manual"
	OriginGenerated = "generated"

	// UnknownCategory is the placeholder name resolved for codings whose
	// category has been deleted since they were created.
	UnknownCategory = "unknown"
)

type Document struct {
	ID        string
	Name      string
	Text      string
	WordCount int
	CreatedAt time.Time
}

type Category struct {
	ID             string
	Name           string
	Description    string
	Origin         string
	Properties     []string
	Dimension      string
	TemplateSource string
	CreatedAt      time.Time
}

type Coding struct {
	ID         string
	DocumentID string
	CategoryID string
	Passage    string
	Rationale  string
	// Source locator: document name plus the chunk index the passage came from.
	SourceDocument string
	ChunkIndex     int
	CreatedAt      time.Time
}

type ResearchQuestion struct {
	ID        string
	Question  string
	Origin    string
	CreatedAt time.Time
}

type Pattern struct {
	ID          string
	Name        string
	Description string
	Categories  []string
	Origin      string
	CreatedAt   time.Time
}

type Interpretation struct {
	ID        string
	Text      string
	CreatedAt time.Time
}

// CoderSubmission holds a private copy of one coder's codings and the
// category set they coded against, frozen at import time.
type CoderSubmission struct {
	ID            string
	CoderName     string
	Codings       []Coding
	Categories    []Category
	ImportedAt    time.Time
	TotalCodings  int
	DocumentCount int
	CategoryCount int
}

type Disagreement struct {
	Passage   string
	CoderA    string
	CoderB    string
	CategoryA string
	CategoryB string
}

type ReliabilityReport struct {
	ID                string
	Agreement         float64
	Kappa             float64
	Quality           string
	TotalComparisons  int
	AgreementCount    int
	DisagreementCount int
	Disagreements     []Disagreement
	CoderCount        int
	Strategy          string
	CreatedAt         time.Time
}

const (
	MetricStatusExcellent        = "excellent"
	MetricStatusGood             = "good"
	MetricStatusAcceptable       = "acceptable"
	MetricStatusLow              = "low"
	MetricStatusNeedsImprovement = "needs_improvement"
	MetricStatusNotAvailable     = "not_available"
)

type MetricResult struct {
	Name      string
	Value     float64
	Benchmark float64
	Status    string
	// Evenness is populated for the saturation metric only.
	Evenness float64
}

type Recommendation struct {
	Severity string
	Category string
	Message  string
	Action   string
}

type QualityReport struct {
	ID              string
	Density         MetricResult
	Saturation      MetricResult
	Reliability     MetricResult
	Completeness    MetricResult
	OverallScore    int
	Grade           string
	Status          string
	Recommendations []Recommendation
	GeneratedAt     time.Time
}

// ProjectSnapshot is the read-only view of project state the reliability,
// quality, and co-occurrence engines consume.
type ProjectSnapshot struct {
	Documents         []Document
	Categories        []Category
	Codings           []Coding
	ResearchQuestions []ResearchQuestion
	Patterns          []Pattern
	Interpretations   []Interpretation
	Submissions       []CoderSubmission
	Reliability       *ReliabilityReport
}

// CategoryName resolves a category id against the submission's own frozen
// category copy. Deleted or renamed categories resolve to "unknown".
func (s *CoderSubmission) CategoryName(categoryID string) string {
	for _, c := range s.Categories {
		if c.ID == categoryID {
			return c.Name
		}
	}
	return UnknownCategory
}

func (p *ProjectSnapshot) CategoryName(categoryID string) string {
	for _, c := range p.Categories {
		if c.ID == categoryID {
			return c.Name
		}
	}
	return UnknownCategory
}

func (p *ProjectSnapshot) TotalWords() int {
	total := 0
	for _, d := range p.Documents {
		total += d.WordCount
	}
	return total
}
