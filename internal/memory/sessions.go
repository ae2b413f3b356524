package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/josephgoksu/Wayline/internal/reasoning"
)

// ReplaceSession stores sess as the user's only session. The previous
// session, its trace and its analyses are deleted in the same transaction,
// so concurrent starts leave exactly one session behind.
func (s *SQLiteStore) ReplaceSession(sess *reasoning.Session) error {
	taskIDs, err := jsonText(sess.TaskIDs)
	if err != nil {
		return fmt.Errorf("encode task ids: %w", err)
	}
	meta, err := jsonText(sess.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	var plan any
	if sess.Plan != nil {
		p, err := jsonText(sess.Plan)
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		plan = p
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM sessions WHERE user_id = ? OR id = ?`, sess.UserID, sess.ID); err != nil {
		return fmt.Errorf("delete previous session: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO sessions (id, user_id, goal, task_ids, status, plan, metadata, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.UserID, sess.Goal, taskIDs, string(sess.Status), plan, meta, sess.Error,
		formatTime(sess.CreatedAt), nullTime(sess.CompletedAt)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for _, st := range sess.Trace {
		if _, err := tx.Exec(`
			INSERT INTO trace_steps (session_id, step_number, tool_name, tool_input, tool_output, thought, duration_ms, status, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sess.ID, st.Number, string(st.Tool), rawText(st.Input), rawText(st.Output), st.Thought,
			st.DurationMS, string(st.Status), st.Error); err != nil {
			return fmt.Errorf("insert trace step %d: %w", st.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, goal, task_ids, status, plan, metadata, error, created_at, completed_at`

// GetSession returns a session with its trace, or ErrNotFound if it was
// superseded or expired.
func (s *SQLiteStore) GetSession(id string) (*reasoning.Session, error) {
	return s.loadSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id), id)
}

// CurrentSession returns the user's session, or ErrNotFound.
func (s *SQLiteStore) CurrentSession(userID string) (*reasoning.Session, error) {
	return s.loadSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ?`, userID), userID)
}

func (s *SQLiteStore) loadSession(row *sql.Row, key string) (*reasoning.Session, error) {
	var sess reasoning.Session
	var taskIDs, status, meta, createdAt string
	var plan, errText, completedAt sql.NullString
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Goal, &taskIDs, &status, &plan, &meta, &errText, &createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	sess.Status = reasoning.Status(status)
	sess.Error = nullString(errText)
	sess.CreatedAt = parseTime(createdAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		sess.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(taskIDs), &sess.TaskIDs); err != nil {
		return nil, fmt.Errorf("decode task ids: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if plan.Valid {
		sess.Plan = &reasoning.Plan{}
		if err := json.Unmarshal([]byte(plan.String), sess.Plan); err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
	}

	trace, err := s.listTrace(sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Trace = trace
	return &sess, nil
}

func (s *SQLiteStore) listTrace(sessionID string) ([]reasoning.Step, error) {
	rows, err := s.db.Query(`
		SELECT step_number, tool_name, tool_input, tool_output, thought, duration_ms, status, error
		FROM trace_steps WHERE session_id = ? ORDER BY step_number
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []reasoning.Step
	for rows.Next() {
		var st reasoning.Step
		var tool, input, output, thought, errText sql.NullString
		var status string
		if err := rows.Scan(&st.Number, &tool, &input, &output, &thought, &st.DurationMS, &status, &errText); err != nil {
			return nil, fmt.Errorf("scan trace step: %w", err)
		}
		st.Tool = reasoning.ToolName(nullString(tool))
		st.Thought = nullString(thought)
		st.Status = reasoning.StepStatus(status)
		st.Error = nullString(errText)
		if input.Valid && input.String != "" {
			st.Input = json.RawMessage(input.String)
		}
		if output.Valid && output.String != "" {
			st.Output = json.RawMessage(output.String)
		}
		steps = append(steps, st)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list trace: %w", err)
	}
	return steps, nil
}

func rawText(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
