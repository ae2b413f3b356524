package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/Wayline/internal/reflection"
)

// SaveReflection inserts or updates a reflection. Changing the text of an
// existing reflection keeps its intent row; the interpreter notices the
// hash mismatch and reclassifies.
func (s *SQLiteStore) SaveReflection(r *reflection.Reflection) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT INTO reflections (id, user_id, text, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, active = excluded.active, updated_at = excluded.updated_at
	`, r.ID, r.UserID, r.Text, boolInt(r.Active), formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save reflection: %w", err)
	}
	return nil
}

const reflectionColumns = `id, user_id, text, active, created_at, updated_at`

func scanReflection(r rowScanner) (reflection.Reflection, error) {
	var out reflection.Reflection
	var active int
	var createdAt, updatedAt string
	if err := r.Scan(&out.ID, &out.UserID, &out.Text, &active, &createdAt, &updatedAt); err != nil {
		return out, err
	}
	out.Active = active == 1
	out.CreatedAt = parseTime(createdAt)
	out.UpdatedAt = parseTime(updatedAt)
	return out, nil
}

// GetReflection returns a reflection by id.
func (s *SQLiteStore) GetReflection(id string) (*reflection.Reflection, error) {
	r, err := scanReflection(s.db.QueryRow(`SELECT `+reflectionColumns+` FROM reflections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reflection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query reflection: %w", err)
	}
	return &r, nil
}

// ListReflections returns a user's reflections, oldest first.
func (s *SQLiteStore) ListReflections(userID string) ([]reflection.Reflection, error) {
	rows, err := s.db.Query(`SELECT `+reflectionColumns+` FROM reflections WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reflections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []reflection.Reflection
	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		out = append(out, r)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list reflections: %w", err)
	}
	return out, nil
}

// SetReflectionActive flips a reflection on or off.
func (s *SQLiteStore) SetReflectionActive(id string, active bool) error {
	res, err := s.db.Exec(`UPDATE reflections SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set reflection active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reflection %s: %w", id, ErrNotFound)
	}
	return nil
}

const intentColumns = `reflection_id, user_id, text_hash, type, subtype, strength, polarity,
	keywords, duration, summary, degraded, created_at`

func scanIntent(r rowScanner) (*reflection.Intent, error) {
	var in reflection.Intent
	var typ, subtype, strength, polarity, keywords, createdAt string
	var duration sql.NullString
	var degraded int
	if err := r.Scan(&in.ReflectionID, &in.UserID, &in.TextHash, &typ, &subtype, &strength, &polarity,
		&keywords, &duration, &in.Summary, &degraded, &createdAt); err != nil {
		return nil, err
	}
	in.Type = reflection.Type(typ)
	in.Subtype = reflection.Subtype(subtype)
	in.Strength = reflection.Strength(strength)
	in.Polarity = reflection.Polarity(polarity)
	in.Degraded = degraded == 1
	in.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(keywords), &in.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if duration.Valid && duration.String != "" {
		in.Duration = &reflection.Duration{}
		if err := json.Unmarshal([]byte(duration.String), in.Duration); err != nil {
			return nil, fmt.Errorf("decode duration: %w", err)
		}
	}
	return &in, nil
}

// LookupIntent returns the cached intent of a reflection, or nil if none.
func (s *SQLiteStore) LookupIntent(reflectionID string) (*reflection.Intent, error) {
	in, err := scanIntent(s.db.QueryRow(`SELECT `+intentColumns+` FROM intents WHERE reflection_id = ?`, reflectionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query intent: %w", err)
	}
	return in, nil
}

// LookupIntentByHash returns a non-degraded intent of the user classified
// from the same normalized text, or nil if none.
func (s *SQLiteStore) LookupIntentByHash(userID, textHash string) (*reflection.Intent, error) {
	in, err := scanIntent(s.db.QueryRow(`
		SELECT `+intentColumns+` FROM intents
		WHERE user_id = ? AND text_hash = ? AND degraded = 0
		ORDER BY created_at DESC LIMIT 1
	`, userID, textHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query intent by hash: %w", err)
	}
	return in, nil
}

// SaveIntent stores the intent of a reflection, replacing any previous one.
func (s *SQLiteStore) SaveIntent(in *reflection.Intent) error {
	keywords, err := jsonText(in.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	var duration any
	if in.Duration != nil {
		d, err := jsonText(in.Duration)
		if err != nil {
			return fmt.Errorf("encode duration: %w", err)
		}
		duration = d
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(`
		INSERT INTO intents (`+intentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reflection_id) DO UPDATE SET
			text_hash = excluded.text_hash, type = excluded.type, subtype = excluded.subtype,
			strength = excluded.strength, polarity = excluded.polarity, keywords = excluded.keywords,
			duration = excluded.duration, summary = excluded.summary, degraded = excluded.degraded,
			created_at = excluded.created_at
	`, in.ReflectionID, in.UserID, in.TextHash, string(in.Type), string(in.Subtype), string(in.Strength),
		string(in.Polarity), keywords, duration, in.Summary, boolInt(in.Degraded), formatTime(in.CreatedAt))
	if err != nil {
		return fmt.Errorf("save intent: %w", err)
	}
	return nil
}

// ReplaceTaskEffects swaps the user's whole effect set in one transaction.
func (s *SQLiteStore) ReplaceTaskEffects(userID string, effects []reflection.Effect) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM task_effects WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear effects: %w", err)
	}
	for _, e := range effects {
		if _, err := tx.Exec(`
			INSERT INTO task_effects (user_id, task_id, reflection_id, effect, magnitude, reason, warning)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, userID, e.TaskID, e.ReflectionID, string(e.Effect), e.Magnitude, e.Reason, boolInt(e.Warning)); err != nil {
			return fmt.Errorf("insert effect for %s: %w", e.TaskID, err)
		}
	}
	return tx.Commit()
}

// ListTaskEffects returns the user's current effects ordered by task id.
func (s *SQLiteStore) ListTaskEffects(userID string) ([]reflection.Effect, error) {
	rows, err := s.db.Query(`
		SELECT task_id, reflection_id, effect, magnitude, reason, warning
		FROM task_effects WHERE user_id = ? ORDER BY task_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query effects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []reflection.Effect
	for rows.Next() {
		var e reflection.Effect
		var kind string
		var warning int
		if err := rows.Scan(&e.TaskID, &e.ReflectionID, &kind, &e.Magnitude, &e.Reason, &warning); err != nil {
			return nil, fmt.Errorf("scan effect: %w", err)
		}
		e.Effect = reflection.Kind(kind)
		e.Warning = warning == 1
		out = append(out, e)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list effects: %w", err)
	}
	return out, nil
}
