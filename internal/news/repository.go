package news

import (
	"context"
	"time"
)

// Repository defines persistence operations for the news module.
type Repository interface {
	CreateArticle(ctx context.Context, a *Article) error
	UpdateArticle(ctx context.Context, a *Article) error
	GetArticle(ctx context.Context, id int64) (*Article, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*Article, error)
	ListPublished(ctx context.Context, categorySlug string, limit, offset int) ([]Article, int, error)
	ListByAuthor(ctx context.Context, authorID int64, limit, offset int) ([]Article, int, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error

	CreateCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*Category, error)
}
