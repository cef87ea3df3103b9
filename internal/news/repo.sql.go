package news

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sangbadpatra/sangbadpatra/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const articleColumns = `id, slug, title_bn, title_en, summary_bn, summary_en, body_bn, body_en,
category_id, author_id, status, published_at, created_at, updated_at`

// CreateArticle inserts a draft.
func (r *PGRepository) CreateArticle(ctx context.Context, a *Article) error {
	const query = `INSERT INTO articles
(slug, title_bn, title_en, summary_bn, summary_en, body_bn, body_en, category_id, author_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		a.Slug, a.Title.BN, a.Title.EN, a.Summary.BN, a.Summary.EN,
		a.Body.BN, a.Body.EN, a.CategoryID, a.AuthorID, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return mapConstraintErr(err)
}

// UpdateArticle rewrites the editable fields.
func (r *PGRepository) UpdateArticle(ctx context.Context, a *Article) error {
	const query = `UPDATE articles SET
slug = $2, title_bn = $3, title_en = $4, summary_bn = $5, summary_en = $6,
body_bn = $7, body_en = $8, category_id = $9, updated_at = NOW()
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		a.ID, a.Slug, a.Title.BN, a.Title.EN, a.Summary.BN, a.Summary.EN,
		a.Body.BN, a.Body.EN, a.CategoryID,
	)
	if err != nil {
		return mapConstraintErr(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetArticle fetches any article by id, draft or published.
func (r *PGRepository) GetArticle(ctx context.Context, id int64) (*Article, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	return scanArticle(row)
}

// GetPublishedBySlug fetches a published article for public reading.
func (r *PGRepository) GetPublishedBySlug(ctx context.Context, slug string) (*Article, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = $1 AND status = 'published'`, slug)
	return scanArticle(row)
}

// ListPublished returns a page of published articles, newest first,
// optionally filtered by category slug.
func (r *PGRepository) ListPublished(ctx context.Context, categorySlug string, limit, offset int) ([]Article, int, error) {
	const query = `SELECT ` + articleColumns + ` FROM articles a
WHERE status = 'published'
  AND ($1 = '' OR category_id = (SELECT id FROM categories WHERE slug = $1))
ORDER BY published_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, categorySlug, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	articles, err := collectArticles(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles
WHERE status = 'published'
  AND ($1 = '' OR category_id = (SELECT id FROM categories WHERE slug = $1))`, categorySlug).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// ListByAuthor returns a reporter's own articles, drafts included.
func (r *PGRepository) ListByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]Article, int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE author_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		authorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	articles, err := collectArticles(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles WHERE author_id = $1`, authorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// MarkPublished flips a draft to published.
func (r *PGRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE articles SET status = 'published', published_at = $2, updated_at = NOW() WHERE id = $1`,
		id, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateCategory inserts a category.
func (r *PGRepository) CreateCategory(ctx context.Context, c *Category) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (slug, name_bn, name_en, created_at) VALUES ($1, $2, $3, NOW()) RETURNING id, created_at`,
		c.Slug, c.Name.BN, c.Name.EN,
	).Scan(&c.ID, &c.CreatedAt)
	return mapConstraintErr(err)
}

// ListCategories returns all categories ordered by slug.
func (r *PGRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, name_bn, name_en, created_at FROM categories ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name.BN, &c.Name.EN, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategoryBySlug fetches a category.
func (r *PGRepository) GetCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, slug, name_bn, name_en, created_at FROM categories WHERE slug = $1`, slug,
	).Scan(&c.ID, &c.Slug, &c.Name.BN, &c.Name.EN, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var status string
	err := row.Scan(
		&a.ID, &a.Slug, &a.Title.BN, &a.Title.EN, &a.Summary.BN, &a.Summary.EN,
		&a.Body.BN, &a.Body.EN, &a.CategoryID, &a.AuthorID, &status,
		&a.PublishedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func collectArticles(rows pgx.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// mapConstraintErr converts unique violations into ErrDuplicate.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
