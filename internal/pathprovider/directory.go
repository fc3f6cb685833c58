package pathprovider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/beamline-core/internal/infrastructure/database"
)

// LocalDirectoryService counts collections in memory. Numbers restart at
// 1 with the process; use it for simulation and tests.
type LocalDirectoryService struct {
	mu    sync.Mutex
	count int
}

// NewLocalDirectoryService returns a counter starting at zero.
func NewLocalDirectoryService() *LocalDirectoryService {
	return &LocalDirectoryService{}
}

func (s *LocalDirectoryService) CreateNewCollection(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return s.count, nil
}

func (s *LocalDirectoryService) CurrentCollection(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

// SQLiteDirectoryService keeps the per-(beamline, directory) counter in the
// collection_numbers table so numbers survive restarts.
type SQLiteDirectoryService struct {
	db        *database.DB
	beamline  string
	directory string
}

// NewSQLiteDirectoryService binds a counter to beamline and directory.
func NewSQLiteDirectoryService(db *database.DB, beamline, directory string) *SQLiteDirectoryService {
	return &SQLiteDirectoryService{db: db, beamline: beamline, directory: directory}
}

func (s *SQLiteDirectoryService) CreateNewCollection(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO collection_numbers (beamline, directory, next, updated_at)
		VALUES (?, ?, 2, ?)
		ON CONFLICT (beamline, directory)
		DO UPDATE SET next = next + 1, updated_at = excluded.updated_at
		RETURNING next - 1`,
		s.beamline, s.directory, time.Now().UTC().Format(time.RFC3339),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("allocating collection number: %w", err)
	}
	return n, nil
}

func (s *SQLiteDirectoryService) CurrentCollection(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT next - 1 FROM collection_numbers WHERE beamline = ? AND directory = ?",
		s.beamline, s.directory,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection number: %w", err)
	}
	return n, nil
}
