package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/Wayline/internal/knowledge"
	"github.com/josephgoksu/Wayline/internal/utils"
)

// SetGoal records the user's active goal, replacing any previous one.
func (s *SQLiteStore) SetGoal(userID, text string) error {
	_, err := s.db.Exec(`
		INSERT INTO goals (user_id, text, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at
	`, userID, text, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set goal: %w", err)
	}
	return nil
}

// GetGoal returns the active goal text, or ErrNotFound.
func (s *SQLiteStore) GetGoal(userID string) (string, error) {
	var text string
	err := s.db.QueryRow(`SELECT text FROM goals WHERE user_id = ?`, userID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("goal for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query goal: %w", err)
	}
	return text, nil
}

// AddDocument stores a reference document and indexes it for search.
func (s *SQLiteStore) AddDocument(d *knowledge.Document) error {
	if d.ID == "" {
		d.ID = "doc-" + uuid.New().String()[:8]
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO documents (id, user_id, title, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Title, d.Body, formatTime(d.CreatedAt)); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO documents_fts (id, title, body) VALUES (?, ?, ?)`, d.ID, d.Title, d.Body); err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	return tx.Commit()
}

// ListDocuments returns a user's documents, newest first.
func (s *SQLiteStore) ListDocuments(userID string) ([]knowledge.Document, error) {
	rows, err := s.db.Query(`SELECT id, user_id, title, body, created_at FROM documents WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []knowledge.Document
	for rows.Next() {
		var d knowledge.Document
		var createdAt string
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		docs = append(docs, d)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// SearchDocuments finds the user's documents matching any query term,
// ranked by BM25. Each hit carries the body excerpt around the first match.
func (s *SQLiteStore) SearchDocuments(userID, query string, limit int) ([]knowledge.Snippet, error) {
	if limit <= 0 {
		limit = 3
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT d.id, d.title, d.body, bm25(documents_fts) AS rank
		FROM documents_fts f
		JOIN documents d ON f.id = d.id
		WHERE documents_fts MATCH ? AND d.user_id = ?
		ORDER BY rank
		LIMIT ?
	`, match, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	terms := utils.Tokenize(query)
	var out []knowledge.Snippet
	for rows.Next() {
		var id, title, body string
		var rank float64
		if err := rows.Scan(&id, &title, &body, &rank); err != nil {
			return nil, fmt.Errorf("scan document hit: %w", err)
		}
		out = append(out, knowledge.Snippet{
			DocumentID: id,
			Title:      title,
			Text:       excerpt(body, terms, 400),
			Score:      -rank, // bm25 is lower-is-better
		})
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return out, nil
}

// ftsQuery turns free text into an OR of quoted FTS5 terms. Stop words and
// FTS operators are dropped.
func ftsQuery(query string) string {
	var quoted []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(utils.Fold(query)) {
		w = strings.Trim(w, `"^:(){}[]-+?!.,;*'`)
		if len(w) < 2 || stopWords[w] || seen[w] {
			continue
		}
		switch strings.ToUpper(w) {
		case "OR", "AND", "NOT", "NEAR":
			continue
		}
		seen[w] = true
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, "")+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// excerpt returns up to n characters of body starting a little before the
// first matching term.
func excerpt(body string, terms []string, n int) string {
	runes := []rune(body)
	if len(runes) <= n {
		return body
	}
	lower := strings.ToLower(body)
	start := 0
	for _, t := range terms {
		if i := strings.Index(lower, t); i >= 0 {
			start = len([]rune(lower[:i]))
			break
		}
	}
	start -= n / 4
	if start < 0 {
		start = 0
	}
	end := start + n
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-n)
	}
	return strings.TrimSpace(string(runes[start:end]))
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "this": true,
	"that": true, "these": true, "those": true, "it": true, "its": true,
	"of": true, "for": true, "with": true, "about": true, "into": true,
	"before": true, "after": true, "to": true, "from": true, "in": true,
	"on": true, "and": true, "or": true, "by": true, "at": true,
}
