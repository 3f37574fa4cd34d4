package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/gdplbb/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a database from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations are applied in order to databases whose user_version is below
// their version. schema.sql already contains their effect for new databases;
// every statement must therefore be a no-op when re-run.
var migrations = []migration{
	{
		version: 1,
		name:    "index runs.model_hash for per-model run listings",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_runs_model_hash ON runs(model_hash)`,
	},
}

// currentSchemaVersion is the version of the last migration.
var currentSchemaVersion = migrations[len(migrations)-1].version

// pragmas configure every connection.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",   // readers do not block the writer
	"PRAGMA synchronous = NORMAL", // durable at checkpoints
	"PRAGMA busy_timeout = 5000",  // ms
	"PRAGMA foreign_keys = ON",    // nodes and solutions need their run
}

// Compile time check that Store records search traces.
var _ engine.Recorder = (*Store)(nil)

// Store provides durable storage for branch-and-bound search logs.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open creates or opens a SQLite database at the given path and brings its
// schema up to date. ":memory:" gives a private scratch database.
//
// Opening the same file twice, or re-opening an existing log, is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer; one connection also keeps a
	// ":memory:" database alive for the lifetime of the store.
	s.db.SetMaxOpenConns(1)
	s.db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragmas: %q: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var err error
	if s.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if s.dec, err = zstd.NewReader(nil); err != nil {
		return fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return nil
}

// migrate applies pending migrations and records the schema version.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Close releases the compression codecs and the database connection.
func (s *Store) Close() error {
	if s.enc != nil {
		s.enc.Close()
		s.enc = nil
	}
	if s.dec != nil {
		s.dec.Close()
		s.dec = nil
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
