package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/hublink/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
)

// dbFileName is the database file inside the data directory.
const dbFileName = "hublink.db"

// Store is the SQLite database holding local hublink state.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (and if needed creates) the database in dataDir.
// If dataDir is empty, defaults to ~/.hublink/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".hublink", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EventStore returns an EventStore backed by this store.
func (s *Store) EventStore() driven.EventStore {
	return &eventStore{store: s}
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("getting schema version: %w", err)
	}
	return version, nil
}

// migrate applies every pending .up.sql file in version order. Each
// migration and its version record commit together.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	currentVersion, err := s.SchemaVersion(context.Background())
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_events.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(script); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ==================== Event Store ====================

// eventStore implements driven.EventStore.
type eventStore struct {
	store *Store
}

var _ driven.EventStore = (*eventStore)(nil)

const eventColumns = `id, session_id, type, from_phase, to_phase, terminal, notice, message, created_at`

// Record appends an event. The insertion sequence orders events that share
// a timestamp.
func (s *eventStore) Record(ctx context.Context, event domain.SessionEvent) error {
	if event.ID == "" || event.SessionID == "" {
		return fmt.Errorf("%w: event requires id and session id", domain.ErrInvalidInput)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO session_events (`+eventColumns+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM session_events))
	`, event.ID, event.SessionID, string(event.Type),
		nullString(string(event.FromPhase)), nullString(string(event.ToPhase)),
		nullString(string(event.Terminal)), nullString(string(event.Notice)),
		nullString(event.Message), event.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first.
func (s *eventStore) List(ctx context.Context, limit int) ([]domain.SessionEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM session_events ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ListSession returns the events of one session, oldest first.
func (s *eventStore) ListSession(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	return s.query(ctx, `
		SELECT `+eventColumns+` FROM session_events
		WHERE session_id = ? ORDER BY seq ASC
	`, sessionID)
}

func (s *eventStore) query(ctx context.Context, query string, args ...any) ([]domain.SessionEvent, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []domain.SessionEvent //nolint:prealloc // size unknown from query
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (domain.SessionEvent, error) {
	var event domain.SessionEvent
	var typ string
	var fromPhase, toPhase, terminal, notice, message sql.NullString
	var createdAt sql.NullTime

	if err := row.Scan(&event.ID, &event.SessionID, &typ, &fromPhase, &toPhase,
		&terminal, &notice, &message, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event, domain.ErrNotFound
		}
		return event, fmt.Errorf("scanning event: %w", err)
	}

	event.Type = domain.EventType(typ)
	event.FromPhase = domain.Phase(fromPhase.String)
	event.ToPhase = domain.Phase(toPhase.String)
	event.Terminal = domain.TerminalReason(terminal.String)
	event.Notice = domain.NoticeKind(notice.String)
	event.Message = message.String
	if createdAt.Valid {
		event.CreatedAt = createdAt.Time
	}
	return event, nil
}

// nullString converts an empty string to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
