package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Store is the interface through which notes are saved and searched. It is
// implemented by [Index] and by [IndexGuard].
type Store interface {
	// Save indexes a single note.
	Save(note Note) error

	// SaveAll indexes a batch of notes.
	SaveAll(notes []Note) error

	// Search runs a full-text query with optional exact-match filters.
	Search(req SearchRequest) ([]Result, error)

	// Count returns the number of indexed notes.
	Count() (uint64, error)

	// Close releases index resources.
	Close() error
}

// SearchRequest describes one note search. Query is matched against title,
// content and tags; the remaining fields are exact-match filters. An empty
// Query matches all notes, so a filter-only search lists a learner's notes.
type SearchRequest struct {
	Query     string
	Category  string
	Language  string
	LearnerID string

	// Limit caps the number of results. Zero means 10.
	Limit int
}

// Result is one search hit with its relevance score.
type Result struct {
	Note  Note
	Score float64
}

// Index is a Bleve full-text index over study notes, using the scorch
// backend either in memory or on disk.
//
// All methods are safe for concurrent use.
type Index struct {
	mu  sync.RWMutex
	idx bleve.Index
}

// Compile-time check that Index satisfies Store.
var _ Store = (*Index)(nil)

// NewMemoryIndex creates an in-memory note index. Notes are lost on restart;
// suitable for tests and for deployments that treat notes as per-run.
func NewMemoryIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("notes: create index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// NewDiskIndex opens or creates a persistent note index at path.
func NewDiskIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("notes: create index directory: %w", err)
	}

	idx, err := bleve.NewUsing(path, buildIndexMapping(), scorch.Name, scorch.Name, nil)
	if err != nil {
		// Index already exists on disk; open it instead.
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("notes: open index: %w", err)
		}
	}
	return &Index{idx: idx}, nil
}

// buildIndexMapping defines how note documents are analysed. Title, content
// and tags get full-text treatment; category, language and the ID fields use
// the keyword analyzer so term filters match them exactly.
func buildIndexMapping() mapping.IndexMapping {
	noteMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	noteMapping.AddFieldMappingsAt("title", textField)
	noteMapping.AddFieldMappingsAt("content", textField)
	noteMapping.AddFieldMappingsAt("tags", textField)

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	noteMapping.AddFieldMappingsAt("category", keywordField)
	noteMapping.AddFieldMappingsAt("language", keywordField)

	// IDs are filterable but kept out of the catch-all field so they never
	// match free-text queries.
	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.IncludeInAll = false
	noteMapping.AddFieldMappingsAt("learner_id", idField)
	noteMapping.AddFieldMappingsAt("session_id", idField)

	priorityField := bleve.NewNumericFieldMapping()
	priorityField.IncludeInAll = false
	noteMapping.AddFieldMappingsAt("priority", priorityField)

	// Stored for retrieval only.
	createdField := bleve.NewTextFieldMapping()
	createdField.Index = false
	createdField.IncludeInAll = false
	noteMapping.AddFieldMappingsAt("created_at", createdField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", noteMapping)
	return indexMapping
}

// Save indexes a single note.
func (ix *Index) Save(note Note) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.idx.Index(note.ID, docFromNote(note)); err != nil {
		return fmt.Errorf("notes: index note %s: %w", note.ID, err)
	}
	return nil
}

// SaveAll indexes a batch of notes in one commit.
func (ix *Index) SaveAll(notes []Note) error {
	if len(notes) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := ix.idx.NewBatch()
	for _, note := range notes {
		if err := batch.Index(note.ID, docFromNote(note)); err != nil {
			return fmt.Errorf("notes: batch note %s: %w", note.ID, err)
		}
	}
	if err := ix.idx.Batch(batch); err != nil {
		return fmt.Errorf("notes: commit batch: %w", err)
	}
	return nil
}

// Search runs the request against the index and returns scored hits.
func (ix *Index) Search(req SearchRequest) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	searchRequest := bleve.NewSearchRequestOptions(buildQuery(req), limit, 0, false)
	searchRequest.Fields = []string{
		"title", "content", "category", "priority", "tags",
		"language", "learner_id", "session_id", "created_at",
	}

	results, err := ix.idx.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("notes: search: %w", err)
	}

	out := make([]Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		out = append(out, Result{
			Note:  noteFromFields(hit.ID, hit.Fields),
			Score: hit.Score,
		})
	}
	return out, nil
}

// Count returns the number of indexed notes.
func (ix *Index) Count() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n, err := ix.idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("notes: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.idx == nil {
		return nil
	}
	err := ix.idx.Close()
	ix.idx = nil
	if err != nil {
		return fmt.Errorf("notes: close index: %w", err)
	}
	return nil
}

// buildQuery combines the free-text match with exact-match term filters.
func buildQuery(req SearchRequest) query.Query {
	var base query.Query
	if q := strings.TrimSpace(req.Query); q != "" {
		base = bleve.NewMatchQuery(q)
	} else {
		base = bleve.NewMatchAllQuery()
	}

	filters := []query.Query{base}
	if req.Category != "" {
		tq := bleve.NewTermQuery(req.Category)
		tq.SetField("category")
		filters = append(filters, tq)
	}
	if req.Language != "" {
		tq := bleve.NewTermQuery(req.Language)
		tq.SetField("language")
		filters = append(filters, tq)
	}
	if req.LearnerID != "" {
		tq := bleve.NewTermQuery(req.LearnerID)
		tq.SetField("learner_id")
		filters = append(filters, tq)
	}

	if len(filters) == 1 {
		return base
	}
	return bleve.NewConjunctionQuery(filters...)
}

// docFromNote flattens a note into the map shape the index mapping expects.
func docFromNote(note Note) map[string]interface{} {
	return map[string]interface{}{
		"title":      note.Title,
		"content":    note.Content,
		"category":   note.Category,
		"priority":   note.Priority,
		"tags":       strings.Join(note.Tags, " "),
		"language":   note.Language,
		"learner_id": note.LearnerID,
		"session_id": note.SessionID,
		"created_at": note.CreatedAt.Format(time.RFC3339),
	}
}

// noteFromFields rebuilds a note from the stored fields of a search hit.
func noteFromFields(id string, fields map[string]interface{}) Note {
	note := Note{ID: id}
	note.Title, _ = fields["title"].(string)
	note.Content, _ = fields["content"].(string)
	note.Category, _ = fields["category"].(string)
	note.Language, _ = fields["language"].(string)
	note.LearnerID, _ = fields["learner_id"].(string)
	note.SessionID, _ = fields["session_id"].(string)

	if p, ok := fields["priority"].(float64); ok {
		note.Priority = int(p)
	}
	if tags, ok := fields["tags"].(string); ok && tags != "" {
		note.Tags = strings.Fields(tags)
	}
	if raw, ok := fields["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			note.CreatedAt = t
		}
	}
	return note
}
