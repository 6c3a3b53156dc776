package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"split-the-g/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS splits (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	username TEXT NOT NULL,
	pub_name TEXT NOT NULL DEFAULT '',
	score REAL NOT NULL,
	grade TEXT NOT NULL,
	verdict TEXT NOT NULL,
	offset_y REAL NOT NULL,
	offset_x REAL NOT NULL,
	split_image_url TEXT NOT NULL,
	logo_image_url TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_splits_score ON splits(score DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_splits_created ON splits(created_at);
`

const splitColumns = `id, created_at, username, pub_name, score, grade, verdict,
	offset_y, offset_x, split_image_url, logo_image_url`

// SQLiteRepository stores splits in a SQLite file. created_at is kept as unix
// milliseconds so period filters are plain integer comparisons.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates or opens the database at path
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY under concurrent submits
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Save(ctx context.Context, s *models.Split) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO splits (`+splitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.CreatedAt.UnixMilli(), s.Username, s.PubName, s.Score, s.Grade, s.Verdict,
		s.OffsetY, s.OffsetX, s.SplitImageURL, s.LogoImageURL,
	)
	if err != nil {
		return fmt.Errorf("insert split %s: %w", s.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Split, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+splitColumns+` FROM splits WHERE id = ?`, id)
	s, err := scanSplit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSplitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get split %s: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteRepository) Top(ctx context.Context, period Period, limit int) ([]models.Split, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+splitColumns+` FROM splits
		WHERE created_at >= ?
		ORDER BY score DESC, created_at ASC
		LIMIT ?`, period.Since(r.now()).UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]models.Split, 0, limit)
	for rows.Next() {
		s, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Rank(ctx context.Context, score float64, period Period) (int, int, error) {
	since := period.Since(r.now()).UnixMilli()

	var higher, total int
	err := r.db.QueryRowContext(ctx, `SELECT
			COALESCE(SUM(CASE WHEN score > ? THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM splits WHERE created_at >= ?`, score, since).Scan(&higher, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("rank score: %w", err)
	}
	return higher + 1, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSplit(row scanner) (*models.Split, error) {
	var (
		s         models.Split
		createdMs int64
	)
	err := row.Scan(&s.ID, &createdMs, &s.Username, &s.PubName, &s.Score, &s.Grade, &s.Verdict,
		&s.OffsetY, &s.OffsetX, &s.SplitImageURL, &s.LogoImageURL)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &s, nil
}

var _ SplitRepository = (*SQLiteRepository)(nil)
