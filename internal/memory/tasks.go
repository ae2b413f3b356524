package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/Wayline/internal/task"
)

const taskColumns = `id, user_id, text, estimated_effort, cognition_level, is_manual,
	confidence, quality_score, source, archived, created_at, updated_at`

func insertTask(x execer, t *task.Task) error {
	var quality any
	if t.QualityScore != nil {
		quality = *t.QualityScore
	}
	_, err := x.Exec(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Text, t.EstimatedEffort, string(t.CognitionLevel), boolInt(t.IsManual),
		t.Confidence, quality, string(t.Source), boolInt(t.Archived),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

func insertEdge(x execer, userID string, e task.Edge) error {
	method := e.DetectionMethod
	if method == "" {
		method = task.DetectionStored
	}
	_, err := x.Exec(`
		INSERT INTO edges (user_id, from_id, to_id, relationship, confidence, detection_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, relationship) DO UPDATE SET confidence = excluded.confidence
	`, userID, e.FromID, e.ToID, string(e.Relationship), e.Confidence, string(method), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("insert edge %s: %w", e.Key(), err)
	}
	return nil
}

func stampTask(t *task.Task) {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = task.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// CreateTask inserts one task. Callers validate before calling.
func (s *SQLiteStore) CreateTask(t *task.Task) error {
	stampTask(t)
	return insertTask(s.db, t)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (task.Task, error) {
	var t task.Task
	var cognition, source, createdAt, updatedAt string
	var isManual, archived int
	var quality sql.NullFloat64
	if err := r.Scan(&t.ID, &t.UserID, &t.Text, &t.EstimatedEffort, &cognition, &isManual,
		&t.Confidence, &quality, &source, &archived, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	t.CognitionLevel = task.CognitionLevel(cognition)
	t.Source = task.Source(source)
	t.IsManual = isManual == 1
	t.Archived = archived == 1
	if quality.Valid {
		q := quality.Float64
		t.QualityScore = &q
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// GetTask returns a task by id.
func (s *SQLiteStore) GetTask(id string) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return &t, nil
}

// ListTasks returns every task of a user, archived included, oldest first.
func (s *SQLiteStore) ListTasks(userID string) ([]task.Task, error) {
	return listTasks(s.db, userID)
}

func listTasks(q querier, userID string) ([]task.Task, error) {
	rows, err := q.Query(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ArchiveTask flags a task as archived. Rows are never deleted.
func (s *SQLiteStore) ArchiveTask(userID, id string) error {
	res, err := s.db.Exec(`UPDATE tasks SET archived = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		formatTime(time.Now()), id, userID)
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListEdges returns every edge of a user's graph.
func (s *SQLiteStore) ListEdges(userID string) ([]task.Edge, error) {
	return listEdges(s.db, userID)
}

func listEdges(q querier, userID string) ([]task.Edge, error) {
	rows, err := q.Query(`
		SELECT from_id, to_id, relationship, confidence, detection_method
		FROM edges WHERE user_id = ? ORDER BY created_at, from_id, to_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []task.Edge
	for rows.Next() {
		var e task.Edge
		var rel, method string
		if err := rows.Scan(&e.FromID, &e.ToID, &rel, &e.Confidence, &method); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Relationship = task.Relationship(rel)
		e.DetectionMethod = task.DetectionMethod(method)
		edges = append(edges, e)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return edges, nil
}

// Planner turns the user's current graph into a verified merge plan.
type Planner func(tasks []task.Task, edges []task.Edge) (*task.MergePlan, error)

// MutateGraph reads the user's graph, plans and commits inside one
// transaction, so the plan is always checked against the graph it is
// written to. A planner error rolls back and is returned unwrapped.
func (s *SQLiteStore) MutateGraph(userID string, plan Planner) (*task.MergePlan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := planInTx(tx, userID, plan)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge: %w", err)
	}
	return p, nil
}

// planInTx runs plan over the graph as seen by tx and applies the result.
func planInTx(tx *sql.Tx, userID string, plan Planner) (*task.MergePlan, error) {
	tasks, err := listTasks(tx, userID)
	if err != nil {
		return nil, err
	}
	edges, err := listEdges(tx, userID)
	if err != nil {
		return nil, err
	}
	p, err := plan(tasks, edges)
	if err != nil {
		return nil, err
	}
	if err := applyMerge(tx, userID, p); err != nil {
		return nil, err
	}
	return p, nil
}

func applyMerge(x execer, userID string, plan *task.MergePlan) error {
	for i := range plan.NewTasks {
		t := &plan.NewTasks[i]
		t.UserID = userID
		stampTask(t)
		if err := insertTask(x, t); err != nil {
			return err
		}
	}
	for _, e := range plan.RemoveEdges {
		if _, err := x.Exec(`DELETE FROM edges WHERE user_id = ? AND from_id = ? AND to_id = ? AND relationship = ?`,
			userID, e.FromID, e.ToID, string(e.Relationship)); err != nil {
			return fmt.Errorf("remove edge %s: %w", e.Key(), err)
		}
	}
	for _, e := range plan.AddEdges {
		if err := insertEdge(x, userID, e); err != nil {
			return err
		}
	}
	return nil
}
