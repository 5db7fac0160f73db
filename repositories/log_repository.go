package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"logserver/contract"
	"logserver/domain"
	apperrors "logserver/errors"

	_ "modernc.org/sqlite"
)

var _ contract.EventStore = (*SQLLogRepository)(nil)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

const msgTimeLayout = "2006-01-02 15:04:05.000000"

// SQLLogRepository stores events as rows of a relational logging table.
type SQLLogRepository struct {
	db        *sql.DB
	table     string
	insertSQL string
	log       *slog.Logger
}

// ValidateTableName rejects anything that cannot be safely interpolated as
// an identifier.
func ValidateTableName(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidTable, table)
	}
	return nil
}

// OpenSQLLogRepository opens (or creates) the SQLite database at path.
func OpenSQLLogRepository(ctx context.Context, path, table string, createTable bool, log *slog.Logger) (*SQLLogRepository, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	repo, err := NewSQLLogRepository(db, table, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if createTable {
		if err := repo.EnsureTable(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return repo, nil
}

func NewSQLLogRepository(db *sql.DB, table string, log *slog.Logger) (*SQLLogRepository, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	return &SQLLogRepository{
		db:    db,
		table: table,
		insertSQL: fmt.Sprintf(`INSERT INTO %s
  (host, application, pid, tid, thread, filename, line, function, msgtime, level, message)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
		log: log,
	}, nil
}

// EnsureTable creates the logging table when it does not exist yet.
func (r *SQLLogRepository) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  host TEXT NOT NULL DEFAULT '',
  application TEXT NOT NULL DEFAULT '',
  pid INTEGER NOT NULL DEFAULT 0,
  tid INTEGER NOT NULL DEFAULT 0,
  thread TEXT NOT NULL DEFAULT '',
  filename TEXT NOT NULL DEFAULT '',
  line INTEGER NOT NULL DEFAULT 0,
  function TEXT NOT NULL DEFAULT '',
  msgtime TEXT NOT NULL,
  level INTEGER NOT NULL,
  message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_msgtime ON %[1]s(msgtime);
`, r.table))
	if err != nil {
		return fmt.Errorf("creating table %s: %w", r.table, err)
	}
	return nil
}

// Probe checks that the database answers and the logging table exists.
func (r *SQLLogRepository) Probe(ctx context.Context) error {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, r.table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", apperrors.ErrTableMissing, r.table)
	}
	if err != nil {
		return fmt.Errorf("probing database: %w", err)
	}
	return nil
}

func (r *SQLLogRepository) Insert(ctx context.Context, e domain.Event) error {
	_, err := r.db.ExecContext(ctx, r.insertSQL,
		e.Hostname,
		e.Application,
		e.ProcessID,
		e.ThreadID,
		e.ThreadName,
		e.Location.File,
		e.Location.Line,
		e.Location.Function,
		e.Timestamp.UTC().Format(msgTimeLayout),
		int(e.Severity),
		e.Message,
	)
	if err != nil {
		return fmt.Errorf("inserting log row: %w", err)
	}
	return nil
}

// Count returns the number of rows in the logging table.
func (r *SQLLogRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&n)
	return n, err
}

// Messages returns the stored messages in insertion order.
func (r *SQLLogRepository) Messages(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT message FROM %s ORDER BY id`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

const listColumns = `host, application, pid, tid, thread, filename, line, function, msgtime, level, message`

// List reads back the latest limit rows, oldest first; limit <= 0 means all.
func (r *SQLLogRepository) List(limit int) ([]domain.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, listColumns, r.table)
	if limit > 0 {
		query = fmt.Sprintf(`SELECT %[1]s FROM (SELECT id, %[1]s FROM %[2]s ORDER BY id DESC LIMIT %[3]d) ORDER BY id`,
			listColumns, r.table, limit)
	}
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			msgtime string
			level   int
		)
		err := rows.Scan(&e.Hostname, &e.Application, &e.ProcessID, &e.ThreadID, &e.ThreadName,
			&e.Location.File, &e.Location.Line, &e.Location.Function, &msgtime, &level, &e.Message)
		if err != nil {
			return nil, err
		}
		if at, err := time.ParseInLocation(msgTimeLayout, msgtime, time.UTC); err == nil {
			e.Timestamp = at
		}
		e.Severity = domain.Severity(level)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLLogRepository) Close() error {
	return r.db.Close()
}
