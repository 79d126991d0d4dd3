package ingestion

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/metrics"
	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/pkg/logger"
)

var whitespace = regexp.MustCompile(`\s+`)

// DocumentStore persists ingested documents.
type DocumentStore interface {
	InsertDocument(doc *models.Document) error
}

type Processor struct {
	db DocumentStore
}

func NewProcessor(db DocumentStore) *Processor {
	return &Processor{db: db}
}

// IngestText stores a plain-text document. Word count is the number of
// whitespace-separated tokens.
func (p *Processor) IngestText(name, text string) (*models.Document, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("document is empty")
	}

	doc := &models.Document{
		ID:        uuid.New().String(),
		Name:      name,
		Text:      text,
		WordCount: len(strings.Fields(text)),
		CreatedAt: time.Now(),
	}

	if err := p.db.InsertDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	metrics.DocumentsIngested.Inc()
	logger.Info("Document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("name", doc.Name),
		zap.Int("words", doc.WordCount),
	)

	return doc, nil
}

// IngestHTML strips markup from an HTML transcript and stores the text. The
// page title is used as the document name when the caller passes none.
func (p *Processor) IngestHTML(name, htmlContent string) (*models.Document, error) {
	text := cleanHTML(htmlContent)
	if text == "" {
		return nil, fmt.Errorf("no content extracted from HTML")
	}

	if name == "" {
		name = extractTitle(htmlContent)
	}

	return p.IngestText(name, text)
}

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()

	text = whitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return text
}

func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "Untitled"
	}

	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}

	if title == "" {
		title = "Untitled"
	}

	return strings.TrimSpace(title)
}
