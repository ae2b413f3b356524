package memory

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// GetEmbeddings returns the cached vectors for the keys that have one.
func (s *SQLiteStore) GetEmbeddings(keys []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	rows, err := s.db.Query(`SELECT key, vector FROM embeddings WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out[key] = bytesToFloat32Slice(blob)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("get embeddings: %w", err)
	}
	return out, nil
}

// PutEmbeddings stores vectors, overwriting existing keys.
func (s *SQLiteStore) PutEmbeddings(vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	for key, vec := range vectors {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO embeddings (key, vector, created_at) VALUES (?, ?, ?)`,
			key, float32SliceToBytes(vec), now); err != nil {
			return fmt.Errorf("put embedding: %w", err)
		}
	}
	return tx.Commit()
}

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(buf []byte) []float32 {
	floats := make([]float32, len(buf)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return floats
}
