package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

// Insert adds a row and returns it with the generated id.
func (r *FilePostgres) Insert(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	const q = `
		INSERT INTO files (filename, file_size, public_url, uploaded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, filename, file_size, public_url, uploaded_at
	`
	row := r.db.QueryRowContext(ctx, q,
		rec.DisplayName,
		rec.FileSize,
		rec.PublicURL,
		rec.UploadedAt,
	)
	var out model.FileRecord
	if err := scanFile(row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns every row, newest first.
func (r *FilePostgres) List(ctx context.Context) ([]model.FileRecord, error) {
	const q = `
		SELECT id, filename, file_size, public_url, uploaded_at
		FROM files
		ORDER BY uploaded_at DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.FileRecord, 0)
	for rows.Next() {
		var f model.FileRecord
		if err := scanFile(rows, &f); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindByID fetches a single row by id.
func (r *FilePostgres) FindByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	const q = `
		SELECT id, filename, file_size, public_url, uploaded_at
		FROM files
		WHERE id = $1
	`
	var f model.FileRecord
	if err := scanFile(r.db.QueryRowContext(ctx, q, id), &f); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// Delete removes a row by id. A missing row is not an error.
func (r *FilePostgres) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM files WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *FilePostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner, f *model.FileRecord) error {
	return s.Scan(
		&f.ID,
		&f.DisplayName,
		&f.FileSize,
		&f.PublicURL,
		&f.UploadedAt,
	)
}
