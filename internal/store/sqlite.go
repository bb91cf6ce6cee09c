package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

// SQLite persists shots in a single-file database and ranks them with the
// same exact scan as Memory. Suited to small, durable deployments.
type SQLite struct {
	db       *sql.DB
	distance DistanceFunc
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string, distance DistanceFunc) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, Unavailable("sqlite open", err)
	}
	if distance == nil {
		distance = Cosine
	}
	s := &SQLite{db: db, distance: distance}
	if err := s.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return Unavailable("sqlite pragma", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS shots (
			namespace  TEXT NOT NULL,
			id         TEXT NOT NULL,
			payload    TEXT NOT NULL,
			vector     BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, id)
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return classifySQLite("sqlite schema", err)
	}
	return nil
}

func (s *SQLite) Add(ctx context.Context, shots []shot.Shot, vectors []embeddings.Vector, namespace string) error {
	if err := checkLengths(shots, vectors); err != nil {
		return err
	}
	if len(shots) == 0 {
		return nil
	}
	dim, err := batchDimension(vectors)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Unavailable("sqlite begin", err)
	}
	defer tx.Rollback()

	var storedBytes int
	err = tx.QueryRowContext(ctx, `SELECT length(vector) FROM shots WHERE namespace = ? LIMIT 1`, namespace).Scan(&storedBytes)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return classifySQLite("sqlite add", err)
	case storedBytes/4 != dim:
		return fmt.Errorf("%w: namespace %q stores %d dimensions, got %d", ErrSchema, namespace, storedBytes/4, dim)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shots (namespace, id, payload, vector, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, id) DO UPDATE SET
			payload = excluded.payload,
			vector = excluded.vector,
			updated_at = excluded.updated_at`)
	if err != nil {
		return classifySQLite("sqlite add", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixMilli()
	for i, sh := range shots {
		p, err := encodePayload(sh)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, namespace, sh.ID, p, encodeVector(vectors[i]), now); err != nil {
			return classifySQLite("sqlite add", err)
		}
	}
	return classifySQLite("sqlite add", tx.Commit())
}

func (s *SQLite) Remove(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Unavailable("sqlite begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM shots WHERE namespace = ? AND id = ?")
	if err != nil {
		return classifySQLite("sqlite remove", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, namespace, id); err != nil {
			return classifySQLite("sqlite remove", err)
		}
	}
	return classifySQLite("sqlite remove", tx.Commit())
}

func (s *SQLite) Clear(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM shots WHERE namespace = ?", namespace)
	return classifySQLite("sqlite clear", err)
}

func (s *SQLite) List(ctx context.Context, query embeddings.Vector, namespace string, limit int) ([]shot.ScoredShot, error) {
	if limit <= 0 {
		return []shot.ScoredShot{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT rowid, id, payload, vector FROM shots WHERE namespace = ?", namespace)
	if err != nil {
		return nil, classifySQLite("sqlite list", err)
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var (
			order   int64
			id      string
			raw     []byte
			vecBlob []byte
		)
		if err := rows.Scan(&order, &id, &raw, &vecBlob); err != nil {
			return nil, classifySQLite("sqlite list", err)
		}
		sh, err := decodePayload(id, raw)
		if err != nil {
			return nil, err
		}
		cands = append(cands, candidate{shot: sh, vector: decodeVector(vecBlob), order: order})
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite("sqlite list", err)
	}
	return rank(query, cands, s.distance, limit)
}

func (s *SQLite) Get(ctx context.Context, ids []string, namespace string) ([]shot.Shot, error) {
	found := make(map[string]shot.Shot)
	if len(ids) == 0 {
		return orderByRequest(ids, found), nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, namespace)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, payload FROM shots WHERE namespace = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, classifySQLite("sqlite get", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, classifySQLite("sqlite get", err)
		}
		sh, err := decodePayload(id, raw)
		if err != nil {
			return nil, err
		}
		found[id] = sh
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite("sqlite get", err)
	}
	return orderByRequest(ids, found), nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// classifySQLite marks lock contention and I/O failures with
// ErrBackendUnavailable. Result codes may be extended; the low byte is the
// primary code.
func classifySQLite(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR,
			sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_PROTOCOL:
			return Unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ Store = (*SQLite)(nil)
