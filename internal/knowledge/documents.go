package knowledge

import "time"

// Document is user-supplied reference text (notes, briefs, specs).
type Document struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Snippet is the part of a document that matched a lookup.
type Snippet struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// DocumentSource finds document text relevant to a query.
type DocumentSource interface {
	SearchDocuments(userID, query string, limit int) ([]Snippet, error)
}
