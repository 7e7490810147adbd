package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements newsletter.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) newsletter.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) newsletter.Repository {
	return &Repository{db: pool}
}

const selectColumns = `id, title, description, cover_image_url, file_url, file_size,
	language, published_date::text, is_active, created_at, updated_at`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return newsletter.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry")
		case "23514": // check_violation
			return fmt.Errorf("value rejected by constraint %s", pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "22007", "22008": // invalid_datetime_format, datetime_field_overflow
			return fmt.Errorf("invalid date: %s", pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) Insert(ctx context.Context, n *newsletter.Newsletter) (*newsletter.Newsletter, error) {
	query := `
		INSERT INTO newsletters (
			title, description, cover_image_url, file_url, file_size,
			language, published_date, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + selectColumns

	row := r.db.QueryRow(ctx, query,
		n.Title, n.Description, n.CoverImageURL, n.FileURL, n.FileSize,
		string(n.Language), n.PublishedDate, n.IsActive, n.CreatedAt, n.UpdatedAt)

	created, err := scanNewsletter(row)
	if err != nil {
		return nil, r.handlePostgresError("insert newsletter", err)
	}
	return created, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*newsletter.Newsletter, error) {
	query := `SELECT ` + selectColumns + ` FROM newsletters WHERE id = $1`

	n, err := scanNewsletter(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get newsletter", err)
	}
	return n, nil
}

func (r *Repository) Update(ctx context.Context, id int64, patch newsletter.Patch, updatedAt time.Time) (*newsletter.Newsletter, error) {
	var sets []string
	args := []interface{}{id}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		set("title", strings.TrimSpace(*patch.Title))
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.CoverImageURL != nil {
		set("cover_image_url", *patch.CoverImageURL)
	}
	if patch.FileURL != nil {
		set("file_url", *patch.FileURL)
	}
	if patch.FileSize != nil {
		set("file_size", *patch.FileSize)
	}
	if patch.Language != nil {
		set("language", string(*patch.Language))
	}
	if patch.PublishedDate != nil {
		set("published_date", *patch.PublishedDate)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	set("updated_at", updatedAt)

	query := `UPDATE newsletters SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + selectColumns

	n, err := scanNewsletter(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, r.handlePostgresError("update newsletter", err)
	}
	return n, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM newsletters WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete newsletter", err)
	}
	if tag.RowsAffected() == 0 {
		return newsletter.ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, params newsletter.ListParams) ([]*newsletter.Newsletter, error) {
	where, args := whereClause(params)
	query := `SELECT ` + selectColumns + ` FROM newsletters` + where +
		` ORDER BY published_date DESC, id DESC`

	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list newsletters", err)
	}
	defer rows.Close()

	var result []*newsletter.Newsletter
	for rows.Next() {
		n, err := scanNewsletter(rows)
		if err != nil {
			return nil, r.handlePostgresError("list newsletters", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list newsletters", err)
	}
	return result, nil
}

func (r *Repository) Count(ctx context.Context, params newsletter.ListParams) (int64, error) {
	where, args := whereClause(params)

	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM newsletters`+where, args...).Scan(&count); err != nil {
		return 0, r.handlePostgresError("count newsletters", err)
	}
	return count, nil
}

// Helper functions

func whereClause(params newsletter.ListParams) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if params.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}
	if params.Language != nil {
		args = append(args, string(*params.Language))
		conds = append(conds, fmt.Sprintf("language = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%[1]d ESCAPE '\' OR description ILIKE $%[1]d ESCAPE '\')`, len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanNewsletter(row pgx.Row) (*newsletter.Newsletter, error) {
	var n newsletter.Newsletter
	var lang string
	err := row.Scan(
		&n.ID, &n.Title, &n.Description, &n.CoverImageURL, &n.FileURL, &n.FileSize,
		&lang, &n.PublishedDate, &n.IsActive, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Language = newsletter.Language(lang)
	return &n, nil
}
