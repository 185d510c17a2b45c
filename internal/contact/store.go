package contact

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ivlev/elasticcanvas/internal/logging"
)

// timeLayout has a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps inquiries in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open inquiry store: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS inquiries (
		id TEXT PRIMARY KEY,
		locale TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create inquiry schema: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_inquiries_created ON inquiries(created_at)`)
	if err != nil {
		return fmt.Errorf("create inquiry index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, inq Inquiry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inquiries (id, locale, name, email, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		inq.ID, inq.Locale, inq.Name, inq.Email, inq.Message, inq.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

// Recent returns up to limit inquiries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Inquiry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, locale, name, email, message, created_at FROM inquiries ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Inquiry
	for rows.Next() {
		var inq Inquiry
		var created string
		if err := rows.Scan(&inq.ID, &inq.Locale, &inq.Name, &inq.Email, &inq.Message, &created); err != nil {
			return nil, err
		}
		if inq.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("inquiry %s: %w", inq.ID, err)
		}
		out = append(out, inq)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LogStore only logs inquiries. Used when no database is configured.
type LogStore struct {
	logger *zap.Logger
}

func NewLogStore(logger *zap.Logger) *LogStore {
	return &LogStore{logger: logging.OrNop(logger)}
}

func (s *LogStore) Save(ctx context.Context, inq Inquiry) error {
	s.logger.Info("inquiry received",
		zap.String("id", inq.ID),
		zap.String("locale", inq.Locale),
		zap.String("name", inq.Name),
		zap.String("email", inq.Email),
		zap.Int("message_len", len(inq.Message)),
	)
	return nil
}

func (s *LogStore) Close() error { return nil }

// OpenStore picks SQLite when path is set and the log store otherwise.
func OpenStore(path string, logger *zap.Logger) (Store, error) {
	if path == "" {
		return NewLogStore(logger), nil
	}
	s, err := OpenSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
