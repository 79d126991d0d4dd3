package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		text TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		origin TEXT NOT NULL,
		properties TEXT,
		dimension TEXT,
		template_source TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_categories_name ON categories(name);

	CREATE TABLE IF NOT EXISTS codings (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		passage TEXT NOT NULL,
		rationale TEXT,
		source_document TEXT,
		chunk_index INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_codings_document ON codings(document_id);
	CREATE INDEX IF NOT EXISTS idx_codings_category ON codings(category_id);

	CREATE TABLE IF NOT EXISTS research_questions (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		origin TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		categories TEXT,
		origin TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interpretations (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS coder_submissions (
		id TEXT PRIMARY KEY,
		coder_name TEXT NOT NULL,
		codings TEXT NOT NULL,
		categories TEXT NOT NULL,
		total_codings INTEGER NOT NULL,
		document_count INTEGER NOT NULL,
		category_count INTEGER NOT NULL,
		imported_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_coder ON coder_submissions(coder_name);

	CREATE TABLE IF NOT EXISTS reliability_reports (
		id TEXT PRIMARY KEY,
		agreement REAL NOT NULL,
		kappa REAL NOT NULL,
		quality TEXT NOT NULL,
		total_comparisons INTEGER NOT NULL,
		agreement_count INTEGER NOT NULL,
		disagreement_count INTEGER NOT NULL,
		disagreements TEXT,
		coder_count INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reliability_created ON reliability_reports(created_at);

	CREATE TABLE IF NOT EXISTS quality_reports (
		id TEXT PRIMARY KEY,
		report TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		grade TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quality_created ON quality_reports(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (id, name, text, word_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			text = excluded.text,
			word_count = excluded.word_count
	`

	_, err := c.db.Exec(query, doc.ID, doc.Name, doc.Text, doc.WordCount, doc.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("name", doc.Name))
	return nil
}

func (c *Client) GetDocument(id string) (*models.Document, error) {
	query := `SELECT id, name, text, word_count, created_at FROM documents WHERE id = ?`

	var doc models.Document
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(&doc.ID, &doc.Name, &doc.Text, &doc.WordCount, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.CreatedAt = time.Unix(createdAt, 0)
	return &doc, nil
}

func (c *Client) ListDocuments() ([]models.Document, error) {
	query := `SELECT id, name, text, word_count, created_at FROM documents ORDER BY created_at`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var createdAt int64

		err := rows.Scan(&d.ID, &d.Name, &d.Text, &d.WordCount, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		d.CreatedAt = time.Unix(createdAt, 0)
		docs = append(docs, d)
	}

	return docs, nil
}

func (c *Client) DeleteDocument(id string) error {
	_, err := c.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (c *Client) InsertCategory(cat *models.Category) error {
	propsJSON, _ := json.Marshal(cat.Properties)

	query := `
		INSERT INTO categories (id, name, description, origin, properties, dimension, template_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			properties = excluded.properties,
			dimension = excluded.dimension
	`

	_, err := c.db.Exec(
		query,
		cat.ID,
		cat.Name,
		cat.Description,
		cat.Origin,
		string(propsJSON),
		cat.Dimension,
		cat.TemplateSource,
		cat.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}

	logger.Debug("Category inserted", zap.String("category_id", cat.ID), zap.String("name", cat.Name))
	return nil
}

func (c *Client) ListCategories() ([]models.Category, error) {
	query := `SELECT id, name, description, origin, properties, dimension, template_source, created_at FROM categories ORDER BY created_at`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var cat models.Category
		var propsJSON string
		var createdAt int64

		err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.Origin, &propsJSON, &cat.Dimension, &cat.TemplateSource, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(propsJSON), &cat.Properties)
		cat.CreatedAt = time.Unix(createdAt, 0)
		cats = append(cats, cat)
	}

	return cats, nil
}

// DeleteCategory removes the category only. Codings that reference it stay
// and resolve to the unknown placeholder on read.
func (c *Client) DeleteCategory(id string) error {
	_, err := c.db.Exec(`DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (c *Client) InsertCoding(coding *models.Coding) error {
	query := `
		INSERT INTO codings (id, document_id, category_id, passage, rationale, source_document, chunk_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		coding.ID,
		coding.DocumentID,
		coding.CategoryID,
		coding.Passage,
		coding.Rationale,
		coding.SourceDocument,
		coding.ChunkIndex,
		coding.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert coding: %w", err)
	}

	return nil
}

func (c *Client) ListCodings() ([]models.Coding, error) {
	return c.queryCodings(`SELECT id, document_id, category_id, passage, rationale, source_document, chunk_index, created_at FROM codings ORDER BY created_at`)
}

func (c *Client) ListCodingsByDocument(documentID string) ([]models.Coding, error) {
	return c.queryCodings(`SELECT id, document_id, category_id, passage, rationale, source_document, chunk_index, created_at FROM codings WHERE document_id = ? ORDER BY chunk_index`, documentID)
}

func (c *Client) queryCodings(query string, args ...any) ([]models.Coding, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list codings: %w", err)
	}
	defer rows.Close()

	var codings []models.Coding
	for rows.Next() {
		var cd models.Coding
		var createdAt int64

		err := rows.Scan(&cd.ID, &cd.DocumentID, &cd.CategoryID, &cd.Passage, &cd.Rationale, &cd.SourceDocument, &cd.ChunkIndex, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		cd.CreatedAt = time.Unix(createdAt, 0)
		codings = append(codings, cd)
	}

	return codings, nil
}

func (c *Client) DeleteCoding(id string) error {
	_, err := c.db.Exec(`DELETE FROM codings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete coding: %w", err)
	}
	return nil
}

func (c *Client) InsertResearchQuestion(q *models.ResearchQuestion) error {
	query := `INSERT INTO research_questions (id, question, origin, created_at) VALUES (?, ?, ?, ?)`

	_, err := c.db.Exec(query, q.ID, q.Question, q.Origin, q.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert research question: %w", err)
	}

	return nil
}

func (c *Client) ListResearchQuestions() ([]models.ResearchQuestion, error) {
	query := `SELECT id, question, origin, created_at FROM research_questions ORDER BY created_at`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list research questions: %w", err)
	}
	defer rows.Close()

	var questions []models.ResearchQuestion
	for rows.Next() {
		var q models.ResearchQuestion
		var createdAt int64

		err := rows.Scan(&q.ID, &q.Question, &q.Origin, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		q.CreatedAt = time.Unix(createdAt, 0)
		questions = append(questions, q)
	}

	return questions, nil
}

func (c *Client) InsertPattern(p *models.Pattern) error {
	categoriesJSON, _ := json.Marshal(p.Categories)

	query := `INSERT INTO patterns (id, name, description, categories, origin, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.Exec(query, p.ID, p.Name, p.Description, string(categoriesJSON), p.Origin, p.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert pattern: %w", err)
	}

	return nil
}

func (c *Client) ListPatterns() ([]models.Pattern, error) {
	query := `SELECT id, name, description, categories, origin, created_at FROM patterns ORDER BY created_at`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []models.Pattern
	for rows.Next() {
		var p models.Pattern
		var categoriesJSON string
		var createdAt int64

		err := rows.Scan(&p.ID, &p.Name, &p.Description, &categoriesJSON, &p.Origin, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(categoriesJSON), &p.Categories)
		p.CreatedAt = time.Unix(createdAt, 0)
		patterns = append(patterns, p)
	}

	return patterns, nil
}

func (c *Client) InsertInterpretation(it *models.Interpretation) error {
	query := `INSERT INTO interpretations (id, text, created_at) VALUES (?, ?, ?)`

	_, err := c.db.Exec(query, it.ID, it.Text, it.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert interpretation: %w", err)
	}

	return nil
}

func (c *Client) ListInterpretations() ([]models.Interpretation, error) {
	query := `SELECT id, text, created_at FROM interpretations ORDER BY created_at`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list interpretations: %w", err)
	}
	defer rows.Close()

	var items []models.Interpretation
	for rows.Next() {
		var it models.Interpretation
		var createdAt int64

		err := rows.Scan(&it.ID, &it.Text, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		it.CreatedAt = time.Unix(createdAt, 0)
		items = append(items, it)
	}

	return items, nil
}

// InsertSubmission stores the coder's codings and category set as frozen JSON
// copies so later edits to the live project cannot change past comparisons.
func (c *Client) InsertSubmission(sub *models.CoderSubmission) error {
	codingsJSON, err := json.Marshal(sub.Codings)
	if err != nil {
		return fmt.Errorf("failed to encode codings: %w", err)
	}
	categoriesJSON, err := json.Marshal(sub.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	query := `
		INSERT INTO coder_submissions (id, coder_name, codings, categories, total_codings, document_count, category_count, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		sub.ID,
		sub.CoderName,
		string(codingsJSON),
		string(categoriesJSON),
		sub.TotalCodings,
		sub.DocumentCount,
		sub.CategoryCount,
		sub.ImportedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	logger.Info("Coder submission stored",
		zap.String("submission_id", sub.ID),
		zap.String("coder", sub.CoderName),
		zap.Int("codings", sub.TotalCodings),
	)

	return nil
}

func (c *Client) ListSubmissions() ([]models.CoderSubmission, error) {
	query := `SELECT id, coder_name, codings, categories, total_codings, document_count, category_count, imported_at FROM coder_submissions ORDER BY imported_at`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.CoderSubmission
	for rows.Next() {
		var sub models.CoderSubmission
		var codingsJSON, categoriesJSON string
		var importedAt int64

		err := rows.Scan(&sub.ID, &sub.CoderName, &codingsJSON, &categoriesJSON, &sub.TotalCodings, &sub.DocumentCount, &sub.CategoryCount, &importedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(codingsJSON), &sub.Codings); err != nil {
			return nil, fmt.Errorf("failed to decode codings: %w", err)
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &sub.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}

		sub.ImportedAt = time.Unix(importedAt, 0)
		subs = append(subs, sub)
	}

	return subs, nil
}

func (c *Client) DeleteSubmission(id string) error {
	_, err := c.db.Exec(`DELETE FROM coder_submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	return nil
}

func (c *Client) InsertReliabilityReport(report *models.ReliabilityReport) error {
	disagreementsJSON, _ := json.Marshal(report.Disagreements)

	query := `
		INSERT INTO reliability_reports (id, agreement, kappa, quality, total_comparisons, agreement_count,
			disagreement_count, disagreements, coder_count, strategy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		report.ID,
		report.Agreement,
		report.Kappa,
		report.Quality,
		report.TotalComparisons,
		report.AgreementCount,
		report.DisagreementCount,
		string(disagreementsJSON),
		report.CoderCount,
		report.Strategy,
		report.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert reliability report: %w", err)
	}

	logger.Info("Reliability report stored",
		zap.String("report_id", report.ID),
		zap.Float64("kappa", report.Kappa),
		zap.String("quality", report.Quality),
	)

	return nil
}

func (c *Client) LatestReliabilityReport() (*models.ReliabilityReport, error) {
	query := `
		SELECT id, agreement, kappa, quality, total_comparisons, agreement_count,
			disagreement_count, disagreements, coder_count, strategy, created_at
		FROM reliability_reports
		ORDER BY created_at DESC
		LIMIT 1
	`

	var report models.ReliabilityReport
	var disagreementsJSON string
	var createdAt int64

	err := c.db.QueryRow(query).Scan(
		&report.ID,
		&report.Agreement,
		&report.Kappa,
		&report.Quality,
		&report.TotalComparisons,
		&report.AgreementCount,
		&report.DisagreementCount,
		&disagreementsJSON,
		&report.CoderCount,
		&report.Strategy,
		&createdAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reliability report: %w", err)
	}

	json.Unmarshal([]byte(disagreementsJSON), &report.Disagreements)
	report.CreatedAt = time.Unix(createdAt, 0)
	return &report, nil
}

func (c *Client) InsertQualityReport(report *models.QualityReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode quality report: %w", err)
	}

	query := `INSERT INTO quality_reports (id, report, overall_score, grade, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err = c.db.Exec(query, report.ID, string(reportJSON), report.OverallScore, report.Grade, report.GeneratedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert quality report: %w", err)
	}

	return nil
}

func (c *Client) LatestQualityReport() (*models.QualityReport, error) {
	query := `SELECT report FROM quality_reports ORDER BY created_at DESC LIMIT 1`

	var reportJSON string
	err := c.db.QueryRow(query).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quality report: %w", err)
	}

	var report models.QualityReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to decode quality report: %w", err)
	}

	return &report, nil
}

// LoadSnapshot assembles the read-only project view the analysis engines
// consume. The latest reliability report is attached when one exists.
func (c *Client) LoadSnapshot() (*models.ProjectSnapshot, error) {
	docs, err := c.ListDocuments()
	if err != nil {
		return nil, err
	}
	cats, err := c.ListCategories()
	if err != nil {
		return nil, err
	}
	codings, err := c.ListCodings()
	if err != nil {
		return nil, err
	}
	questions, err := c.ListResearchQuestions()
	if err != nil {
		return nil, err
	}
	patterns, err := c.ListPatterns()
	if err != nil {
		return nil, err
	}
	interpretations, err := c.ListInterpretations()
	if err != nil {
		return nil, err
	}
	subs, err := c.ListSubmissions()
	if err != nil {
		return nil, err
	}
	reliability, err := c.LatestReliabilityReport()
	if err != nil {
		return nil, err
	}

	return &models.ProjectSnapshot{
		Documents:         docs,
		Categories:        cats,
		Codings:           codings,
		ResearchQuestions: questions,
		Patterns:          patterns,
		Interpretations:   interpretations,
		Submissions:       subs,
		Reliability:       reliability,
	}, nil
}
