// Package snapshot persists finished graphs and the per-build node states
// needed to run diff builds, backed by a local SQLite database.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codeatlas-dev/codeatlas/internal/build"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	hashed_id    TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	extra_labels TEXT NOT NULL,
	attributes   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS relationships (
	source_id  TEXT NOT NULL,
	target_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	scope_text TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (source_id, target_id, type)
);
CREATE TABLE IF NOT EXISTS states (
	structural_path TEXT PRIMARY KEY,
	hashed_id       TEXT NOT NULL,
	content_hash    TEXT NOT NULL
);
`

// Store is a SQLite-backed graph sink and previous-state repository.
type Store struct {
	db *sql.DB
}

var _ graph.Sink = (*Store)(nil)

// Open opens or creates the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save replaces the stored graph with the given serialized nodes and
// relationships, atomically.
func (s *Store) Save(ctx context.Context, nodes []graph.NodeObject, relationships []graph.RelationshipObject) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM nodes", "DELETE FROM relationships"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insNode, err := tx.PrepareContext(ctx,
		"INSERT INTO nodes (hashed_id, type, extra_labels, attributes) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer insNode.Close()
	for _, n := range nodes {
		hid, _ := n.Attributes["hashed_id"].(string)
		if hid == "" {
			return fmt.Errorf("node without hashed_id attribute")
		}
		labels, err := json.Marshal(n.ExtraLabels)
		if err != nil {
			return err
		}
		attrs, err := json.Marshal(n.Attributes)
		if err != nil {
			return err
		}
		if _, err := insNode.ExecContext(ctx, hid, n.Type, string(labels), string(attrs)); err != nil {
			return err
		}
	}

	insRel, err := tx.PrepareContext(ctx,
		"INSERT INTO relationships (source_id, target_id, type, scope_text) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer insRel.Close()
	for _, r := range relationships {
		if _, err := insRel.ExecContext(ctx, r.SourceID, r.TargetID, r.Type, r.ScopeText); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveStates replaces the previous-state table with the given records.
func (s *Store) SaveStates(ctx context.Context, states []build.PreviousState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM states"); err != nil {
		return err
	}
	ins, err := tx.PrepareContext(ctx,
		"INSERT INTO states (structural_path, hashed_id, content_hash) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer ins.Close()
	for _, st := range states {
		if _, err := ins.ExecContext(ctx, st.StructuralPath, st.HashedID, st.ContentHash); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadStates returns the stored previous states, sorted by structural path.
func (s *Store) LoadStates(ctx context.Context) ([]build.PreviousState, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT structural_path, hashed_id, content_hash FROM states ORDER BY structural_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []build.PreviousState
	for rows.Next() {
		var st build.PreviousState
		if err := rows.Scan(&st.StructuralPath, &st.HashedID, &st.ContentHash); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
