package coding

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	// MinPassageLen is the content threshold below which a parsed passage is
	// discarded instead of emitted.
	MinPassageLen = 15

	DefaultRationale = "No rationale provided"
)

const (
	// ModeLenient resolves unmatched category labels to the first known
	// category and logs the fallback.
	ModeLenient = "lenient"
	// ModeStrict drops records whose category label matches nothing.
	ModeStrict = "strict"
)

var (
	passageMarker   = regexp.MustCompile(`(?i)^\s*(?:[-*]\s*)?(?:passage|quote|text\s*passage)(?:\s*\d+)?\s*[:\-]\s*(.+)$`)
	categoryMarker  = regexp.MustCompile(`(?i)^\s*(?:[-*]\s*)?(?:category|code)(?:\s*\d+)?\s*[:\-]\s*(.+)$`)
	rationaleMarker = regexp.MustCompile(`(?i)^\s*(?:[-*]\s*)?(?:rationale|reasoning|justification)(?:\s*\d+)?\s*[:\-]\s*(.*)$`)
)

// Candidate is a coding parsed from free-text analysis output, before the
// caller attaches identifiers and document linkage.
type Candidate struct {
	Passage      string
	CategoryName string
	Rationale    string
}

type Parser struct {
	mode       string
	minPassage int
	logger     *zap.Logger
}

func NewParser(mode string, logger *zap.Logger) *Parser {
	if mode == "" {
		mode = ModeLenient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		mode:       mode,
		minPassage: MinPassageLen,
		logger:     logger,
	}
}

// ParseCodings scans one analysis response line by line and returns the
// codings it could assemble. The response carries no structural guarantee;
// unrecognized lines are ignored and a trailing partial record is dropped.
func (p *Parser) ParseCodings(response string, categories []string) []Candidate {
	var candidates []Candidate

	var passage, categoryLabel, rationale string

	for _, line := range strings.Split(response, "\n") {
		if m := passageMarker.FindStringSubmatch(line); m != nil {
			passage = stripQuotes(m[1])
			continue
		}

		if m := categoryMarker.FindStringSubmatch(line); m != nil {
			categoryLabel = strings.TrimSpace(m[1])
			continue
		}

		if m := rationaleMarker.FindStringSubmatch(line); m != nil {
			rationale = strings.TrimSpace(m[1])

			resolved, ok := p.resolveCategory(categoryLabel, categories)
			if ok && len(passage) > p.minPassage {
				if rationale == "" {
					rationale = DefaultRationale
				}
				candidates = append(candidates, Candidate{
					Passage:      passage,
					CategoryName: resolved,
					Rationale:    rationale,
				})
			}

			passage, categoryLabel, rationale = "", "", ""
		}
	}

	return candidates
}

// resolveCategory matches a label against the known categories by
// case-insensitive containment in either direction. In lenient mode an
// unmatched label falls back to the first known category; strict mode
// rejects the record instead.
func (p *Parser) resolveCategory(label string, categories []string) (string, bool) {
	if len(categories) == 0 {
		return "", false
	}

	needle := strings.ToLower(strings.TrimSpace(label))
	if needle != "" {
		for _, cat := range categories {
			known := strings.ToLower(cat)
			if strings.Contains(known, needle) || strings.Contains(needle, known) {
				return cat, true
			}
		}
	}

	if p.mode == ModeStrict {
		p.logger.Debug("Dropping coding with unresolved category",
			zap.String("label", label),
		)
		return "", false
	}

	p.logger.Warn("Category label did not match, falling back to first category",
		zap.String("label", label),
		zap.String("fallback", categories[0]),
	)
	return categories[0], true
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimPrefix(s, "“")
	s = strings.TrimSuffix(s, "”")
	return strings.TrimSpace(s)
}
