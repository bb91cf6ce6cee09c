package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresOptions configures the pgvector-backed store.
type PostgresOptions struct {
	Table      string
	Dimensions int
	// Distance is "cosine" (default) or "euclidean".
	Distance string
	// HNSW index parameters.
	M              int
	EFConstruction int
}

// PostgresStore implements Store on Postgres with the pgvector extension.
// Ranking and the nearest-neighbour index are delegated to the database.
type PostgresStore struct {
	db       *sql.DB
	log      *slog.Logger
	table    string
	operator string
	opclass  string
}

// NewPostgres connects, then creates the extension, table and index if needed.
func NewPostgres(ctx context.Context, dsn string, opts PostgresOptions, log *slog.Logger) (*PostgresStore, error) {
	if opts.Table == "" {
		opts.Table = "shots"
	}
	if !identifierPattern.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", opts.Dimensions)
	}
	if opts.M <= 0 {
		opts.M = 16
	}
	if opts.EFConstruction <= 0 {
		opts.EFConstruction = 64
	}
	if log == nil {
		log = slog.Default()
	}

	s := &PostgresStore{log: log, table: opts.Table}
	switch opts.Distance {
	case "", "cosine":
		s.operator, s.opclass = "<=>", "vector_cosine_ops"
	case "euclidean", "l2":
		s.operator, s.opclass = "<->", "vector_l2_ops"
	default:
		return nil, fmt.Errorf("unsupported postgres distance %q", opts.Distance)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Unavailable("postgres ping", err)
	}
	s.db = db
	if err := s.migrate(ctx, opts); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context, opts PostgresOptions) error {
	// Advisory lock so several processes starting together do not race on DDL.
	const lockID = 720411953

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another process is migrating; give it a moment and move on.
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			namespace  TEXT NOT NULL,
			id         TEXT NOT NULL,
			payload    JSONB NOT NULL,
			vector     vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			seq        BIGSERIAL,
			PRIMARY KEY (namespace, id)
		);`, s.table, opts.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_vector_idx
			ON %s USING hnsw (vector %s)
			WITH (m = %d, ef_construction = %d)`, s.table, s.table, s.opclass, opts.M, opts.EFConstruction),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	s.log.Info("postgres store ready", "table", s.table, "dimensions", opts.Dimensions, "opclass", s.opclass)
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, shots []shot.Shot, vectors []embeddings.Vector, namespace string) error {
	if err := checkLengths(shots, vectors); err != nil {
		return err
	}
	if len(shots) == 0 {
		return nil
	}
	if _, err := batchDimension(vectors); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyPG("postgres begin", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, id, payload, vector, updated_at)
		VALUES ($1, $2, $3::jsonb, $4::vector, now())
		ON CONFLICT (namespace, id) DO UPDATE SET
			payload = excluded.payload,
			vector = excluded.vector,
			updated_at = excluded.updated_at`, s.table)
	for i, sh := range shots {
		p, err := encodePayload(sh)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, namespace, sh.ID, p, vectorToString(vectors[i])); err != nil {
			return classifyPG("postgres upsert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classifyPG("postgres commit", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND id = ANY($2)`, s.table),
		namespace, pq.Array(ids))
	return classifyPG("postgres remove", err)
}

func (s *PostgresStore) Clear(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, s.table), namespace)
	return classifyPG("postgres clear", err)
}

func (s *PostgresStore) List(ctx context.Context, query embeddings.Vector, namespace string, limit int) ([]shot.ScoredShot, error) {
	if limit <= 0 {
		return []shot.ScoredShot{}, nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, payload, vector %s $1::vector AS distance
		FROM %s
		WHERE namespace = $2
		ORDER BY distance, seq
		LIMIT $3`, s.operator, s.table), vectorToString(query), namespace, limit)
	if err != nil {
		return nil, classifyPG("postgres list", err)
	}
	defer rows.Close()

	results := []shot.ScoredShot{}
	for rows.Next() {
		var (
			id       string
			raw      []byte
			distance sql.NullFloat64
		)
		if err := rows.Scan(&id, &raw, &distance); err != nil {
			return nil, classifyPG("postgres list", err)
		}
		sh, err := decodePayload(id, raw)
		if err != nil {
			return nil, err
		}
		d := distance.Float64
		if !distance.Valid || math.IsNaN(d) {
			// pgvector yields NULL/NaN cosine distance for zero vectors
			d = 1.0
		}
		results = append(results, shot.ScoredShot{Distance: d, Shot: sh})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPG("postgres list", err)
	}
	return results, nil
}

func (s *PostgresStore) Get(ctx context.Context, ids []string, namespace string) ([]shot.Shot, error) {
	found := make(map[string]shot.Shot)
	if len(ids) == 0 {
		return orderByRequest(ids, found), nil
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, payload FROM %s WHERE namespace = $1 AND id = ANY($2)`, s.table),
		namespace, pq.Array(ids))
	if err != nil {
		return nil, classifyPG("postgres get", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, classifyPG("postgres get", err)
		}
		sh, err := decodePayload(id, raw)
		if err != nil {
			return nil, err
		}
		found[id] = sh
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPG("postgres get", err)
	}
	return orderByRequest(ids, found), nil
}

// Teardown drops the table. Intended for tests and tooling.
func (s *PostgresStore) Teardown(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table))
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// classifyPG maps driver errors onto the store error kinds.
func classifyPG(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.Contains(pgErr.Message, "dimensions") {
			return fmt.Errorf("%s: %w: %s", op, ErrSchema, pgErr.Message)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ Store = (*PostgresStore)(nil)
