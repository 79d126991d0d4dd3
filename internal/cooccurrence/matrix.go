package cooccurrence

import (
	"sort"

	"github.com/qda-agent/backend/internal/storage/models"
)

// Matrix is a symmetric category-by-category co-occurrence count, keyed by
// category name.
type Matrix struct {
	Categories []string
	Counts     map[string]map[string]int
}

func (m Matrix) Value(a, b string) int {
	row, ok := m.Counts[a]
	if !ok {
		return 0
	}
	return row[b]
}

// Build counts, for every document, how many ordered pairs of distinct
// codings land in each category pair. The diagonal counts a category against
// itself once per ordered pair of same-document codings in that category.
// This quadratic, non-deduplicated convention is the frozen contract; use
// DistinctPairs for the per-document deduplicated view.
func Build(snapshot *models.ProjectSnapshot) Matrix {
	m := newMatrix(snapshot)

	for _, doc := range snapshot.Documents {
		inDoc := codingsIn(snapshot, doc.ID)
		for i := range inDoc {
			for j := range inDoc {
				if i == j {
					continue
				}
				a := snapshot.CategoryName(inDoc[i].CategoryID)
				b := snapshot.CategoryName(inDoc[j].CategoryID)
				m.Counts[a][b]++
			}
		}
	}

	return m
}

// DistinctPairs counts each unordered category pair at most once per
// document.
func DistinctPairs(snapshot *models.ProjectSnapshot) Matrix {
	m := newMatrix(snapshot)

	for _, doc := range snapshot.Documents {
		seen := make(map[string]bool)
		inDoc := codingsIn(snapshot, doc.ID)
		for i := range inDoc {
			for j := i + 1; j < len(inDoc); j++ {
				a := snapshot.CategoryName(inDoc[i].CategoryID)
				b := snapshot.CategoryName(inDoc[j].CategoryID)
				if a > b {
					a, b = b, a
				}
				key := a + "\x00" + b
				if seen[key] {
					continue
				}
				seen[key] = true
				m.Counts[a][b]++
				if a != b {
					m.Counts[b][a]++
				}
			}
		}
	}

	return m
}

func newMatrix(snapshot *models.ProjectSnapshot) Matrix {
	names := make([]string, 0, len(snapshot.Categories))
	counts := make(map[string]map[string]int, len(snapshot.Categories))

	add := func(name string) {
		if _, ok := counts[name]; ok {
			return
		}
		names = append(names, name)
		counts[name] = make(map[string]int)
	}

	for _, cat := range snapshot.Categories {
		add(cat.Name)
	}
	// Codings whose category was deleted still count, under "unknown".
	for _, c := range snapshot.Codings {
		add(snapshot.CategoryName(c.CategoryID))
	}

	sort.Strings(names)
	return Matrix{Categories: names, Counts: counts}
}

func codingsIn(snapshot *models.ProjectSnapshot, documentID string) []models.Coding {
	var out []models.Coding
	for _, c := range snapshot.Codings {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out
}
