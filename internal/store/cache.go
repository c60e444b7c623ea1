package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get on a cache miss.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one cached compilation result.
type Artifact struct {
	DefinitionHash  string
	CompilerVersion string
	DefinitionID    string
	Program         string
	CreatedAt       time.Time
}

// Put stores an artifact, replacing any previous entry for the same hash
// and compiler version. Replacement is harmless: determinism guarantees
// the program text is identical.
func (s *Store) Put(ctx context.Context, a Artifact) error {
	if a.DefinitionHash == "" || a.CompilerVersion == "" {
		return fmt.Errorf("artifact requires a definition hash and a compiler version")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO artifacts (definition_hash, compiler_version, definition_id, program)
		VALUES (?, ?, ?, ?)
	`, a.DefinitionHash, a.CompilerVersion, a.DefinitionID, a.Program)
	if err != nil {
		return fmt.Errorf("store artifact %s: %w", a.DefinitionHash, err)
	}
	return nil
}

// Get loads the artifact for a definition hash and compiler version.
// Returns ErrNotFound on a miss.
func (s *Store) Get(ctx context.Context, definitionHash, compilerVersion string) (*Artifact, error) {
	a := Artifact{DefinitionHash: definitionHash, CompilerVersion: compilerVersion}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT definition_id, program, created_at
		FROM artifacts
		WHERE definition_hash = ? AND compiler_version = ?
	`, definitionHash, compilerVersion).Scan(&a.DefinitionID, &a.Program, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", definitionHash, err)
	}

	a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse artifact timestamp %q: %w", createdAt, err)
	}
	return &a, nil
}

// PurgeDefinition removes every cached artifact of one definition id,
// across all content hashes and compiler versions. Returns the number of
// rows removed.
func (s *Store) PurgeDefinition(ctx context.Context, definitionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM artifacts WHERE definition_id = ?
	`, definitionID)
	if err != nil {
		return 0, fmt.Errorf("purge definition %s: %w", definitionID, err)
	}
	return res.RowsAffected()
}

// Count reports the number of cached artifacts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	return n, nil
}
