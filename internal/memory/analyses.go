package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/task"
)

// Analysis is one gap-and-candidate pass over a session's plan. Candidates
// that have been accepted are removed from it.
type Analysis struct {
	ID        string         `json:"analysis_id"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	Result    *bridge.Result `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewAnalysisID returns a fresh analysis id.
func NewAnalysisID() string {
	return "an-" + uuid.New().String()[:8]
}

// SaveAnalysis stores an analysis and its candidates. The analysis is
// deleted with its session.
func (s *SQLiteStore) SaveAnalysis(a *Analysis) error {
	if a.ID == "" {
		a.ID = NewAnalysisID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res := a.Result
	if res == nil {
		res = &bridge.Result{}
	}

	// Candidates live in their own rows; the gap list keeps only the gaps.
	gapRows := make([]bridge.GapResult, len(res.Gaps))
	for i, g := range res.Gaps {
		g.Candidates = nil
		gapRows[i] = g
	}
	gapsText, err := jsonText(gapRows)
	if err != nil {
		return fmt.Errorf("encode gaps: %w", err)
	}
	dropped, err := jsonText(res.Dropped)
	if err != nil {
		return fmt.Errorf("encode dropped: %w", err)
	}
	warnings, err := jsonText(res.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO analyses (id, user_id, session_id, gaps, semantic_error, dropped, degraded, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.SessionID, gapsText, res.SemanticError, dropped, boolInt(res.Degraded), warnings,
		formatTime(a.CreatedAt)); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	for i, c := range res.Candidates() {
		payload, err := jsonText(c)
		if err != nil {
			return fmt.Errorf("encode candidate: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO candidates (id, analysis_id, position, lane, payload) VALUES (?, ?, ?, ?, ?)`,
			c.ID, a.ID, i, string(c.Lane), payload); err != nil {
			return fmt.Errorf("insert candidate %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// GetAnalysis loads an analysis with its remaining candidates.
func (s *SQLiteStore) GetAnalysis(id string) (*Analysis, error) {
	a := Analysis{Result: &bridge.Result{}}
	var gapsText, createdAt string
	var semErr, dropped, warnings sql.NullString
	var degraded int
	err := s.db.QueryRow(`
		SELECT id, user_id, session_id, gaps, semantic_error, dropped, degraded, warnings, created_at
		FROM analyses WHERE id = ?
	`, id).Scan(&a.ID, &a.UserID, &a.SessionID, &gapsText, &semErr, &dropped, &degraded, &warnings, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	a.Result.SemanticError = nullString(semErr)
	a.Result.Degraded = degraded == 1
	if err := json.Unmarshal([]byte(gapsText), &a.Result.Gaps); err != nil {
		return nil, fmt.Errorf("decode gaps: %w", err)
	}
	if dropped.Valid {
		_ = json.Unmarshal([]byte(dropped.String), &a.Result.Dropped)
	}
	if warnings.Valid {
		_ = json.Unmarshal([]byte(warnings.String), &a.Result.Warnings)
	}

	cands, err := s.listCandidates(a.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range cands {
		if c.Lane == bridge.LaneStructural && c.GapIndex >= 0 && c.GapIndex < len(a.Result.Gaps) {
			a.Result.Gaps[c.GapIndex].Candidates = append(a.Result.Gaps[c.GapIndex].Candidates, c)
			continue
		}
		a.Result.Semantic = append(a.Result.Semantic, c)
	}
	return &a, nil
}

func (s *SQLiteStore) listCandidates(analysisID string) ([]bridge.Candidate, error) {
	rows, err := s.db.Query(`SELECT payload FROM candidates WHERE analysis_id = ? ORDER BY position`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []bridge.Candidate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		var c bridge.Candidate
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, fmt.Errorf("decode candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return out, nil
}

// AcceptCandidates removes the accepted candidates from their analysis and
// commits the merge plan built by plan in one transaction, so a candidate
// becomes a task at most once and the plan sees the graph it is written to.
func (s *SQLiteStore) AcceptCandidates(userID, analysisID string, candidateIDs []string, plan Planner) (*task.MergePlan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range candidateIDs {
		res, err := tx.Exec(`DELETE FROM candidates WHERE id = ? AND analysis_id = ?`, id, analysisID)
		if err != nil {
			return nil, fmt.Errorf("consume candidate %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
		}
	}
	p, err := planInTx(tx, userID, plan)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit acceptance: %w", err)
	}
	return p, nil
}
