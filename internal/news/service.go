package news

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sangbadpatra/sangbadpatra/internal/platform/cache"
	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
)

// ArticleInput carries the editable article fields.
type ArticleInput struct {
	Slug       string `json:"slug" validate:"required,min=3,max=120"`
	TitleBN    string `json:"title_bn" validate:"required"`
	TitleEN    string `json:"title_en" validate:"required"`
	SummaryBN  string `json:"summary_bn"`
	SummaryEN  string `json:"summary_en"`
	BodyBN     string `json:"body_bn" validate:"required"`
	BodyEN     string `json:"body_en" validate:"required"`
	CategoryID int64  `json:"category_id" validate:"required"`
}

// CategoryInput carries the editable category fields.
type CategoryInput struct {
	Slug   string `json:"slug" validate:"required,min=2,max=60"`
	NameBN string `json:"name_bn" validate:"required"`
	NameEN string `json:"name_en" validate:"required"`
}

// FrontPage is the cached public listing payload.
type FrontPage struct {
	Articles   []Article         `json:"articles"`
	Pagination shared.Pagination `json:"pagination"`
}

// Service handles newsroom business rules: reporters write their own
// drafts, admins publish and manage categories.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service. Cache and audit may be nil.
func NewService(repo Repository, cache *cache.Versioned, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger}
}

// CreateArticle stores a new draft authored by the actor.
func (s *Service) CreateArticle(ctx context.Context, actor *session.User, input ArticleInput) (*Article, error) {
	if !canWrite(actor) {
		return nil, shared.ErrForbidden
	}
	article := &Article{
		Slug:       input.Slug,
		Title:      LocalizedText{BN: input.TitleBN, EN: input.TitleEN},
		Summary:    LocalizedText{BN: input.SummaryBN, EN: input.SummaryEN},
		Body:       LocalizedText{BN: input.BodyBN, EN: input.BodyEN},
		CategoryID: input.CategoryID,
		AuthorID:   actor.ID,
		Status:     StatusDraft,
	}
	if err := s.repo.CreateArticle(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

// UpdateArticle rewrites a draft. Reporters may only touch their own
// unpublished work; admins may edit anything.
func (s *Service) UpdateArticle(ctx context.Context, actor *session.User, id int64, input ArticleInput) (*Article, error) {
	if !canWrite(actor) {
		return nil, shared.ErrForbidden
	}
	article, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isEditor(actor) {
		if article.AuthorID != actor.ID || article.Status != StatusDraft {
			return nil, shared.ErrForbidden
		}
	}
	article.Slug = input.Slug
	article.Title = LocalizedText{BN: input.TitleBN, EN: input.TitleEN}
	article.Summary = LocalizedText{BN: input.SummaryBN, EN: input.SummaryEN}
	article.Body = LocalizedText{BN: input.BodyBN, EN: input.BodyEN}
	article.CategoryID = input.CategoryID
	if err := s.repo.UpdateArticle(ctx, article); err != nil {
		return nil, err
	}
	if article.Status == StatusPublished {
		s.invalidate(ctx)
	}
	return article, nil
}

// Publish flips a draft live and invalidates the public cache.
func (s *Service) Publish(ctx context.Context, actor *session.User, id int64) (*Article, error) {
	if !isEditor(actor) {
		return nil, shared.ErrForbidden
	}
	article, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.Status == StatusPublished {
		return article, nil
	}
	now := time.Now()
	if err := s.repo.MarkPublished(ctx, id, now); err != nil {
		return nil, err
	}
	article.Status = StatusPublished
	article.PublishedAt = &now
	s.invalidate(ctx)
	s.record(ctx, actor, shared.AuditArticlePublish, "article", strconv.FormatInt(id, 10))
	return article, nil
}

// FrontPage lists published articles through the versioned cache.
func (s *Service) FrontPage(ctx context.Context, categorySlug string, page, perPage int) (*FrontPage, error) {
	load := func(ctx context.Context) (interface{}, error) {
		pg := shared.NewPagination(page, perPage, 0)
		articles, total, err := s.repo.ListPublished(ctx, categorySlug, pg.PerPage, pg.Offset())
		if err != nil {
			return nil, err
		}
		return &FrontPage{Articles: articles, Pagination: shared.NewPagination(page, perPage, total)}, nil
	}

	var result FrontPage
	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return value.(*FrontPage), nil
	}
	key, err := s.cache.Key(ctx, "frontpage", categorySlug, fmt.Sprintf("%d-%d", page, perPage))
	if err != nil {
		return nil, err
	}
	if err := s.cache.FetchJSON(ctx, key, &result, load); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPublished fetches a published article by slug for public reading.
func (s *Service) GetPublished(ctx context.Context, slug string) (*Article, error) {
	return s.repo.GetPublishedBySlug(ctx, slug)
}

// MyArticles lists the actor's own articles, drafts included.
func (s *Service) MyArticles(ctx context.Context, actor *session.User, page, perPage int) ([]Article, shared.Pagination, error) {
	if !canWrite(actor) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}
	pg := shared.NewPagination(page, perPage, 0)
	articles, total, err := s.repo.ListByAuthor(ctx, actor.ID, pg.PerPage, pg.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return articles, shared.NewPagination(page, perPage, total), nil
}

// CreateCategory is editor-only.
func (s *Service) CreateCategory(ctx context.Context, actor *session.User, input CategoryInput) (*Category, error) {
	if !isEditor(actor) {
		return nil, shared.ErrForbidden
	}
	category := &Category{
		Slug: input.Slug,
		Name: LocalizedText{BN: input.NameBN, EN: input.NameEN},
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return category, nil
}

// ListCategories returns all categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func canWrite(actor *session.User) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case session.RoleReporter, session.RoleAdmin, session.RoleSuperAdmin:
		return true
	}
	return false
}

func isEditor(actor *session.User) bool {
	if actor == nil {
		return false
	}
	return actor.Role == session.RoleAdmin || actor.Role == session.RoleSuperAdmin
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump news cache", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor *session.User, action, entity, entityID string) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{Action: action, Entity: entity, EntityID: entityID}
	if actor != nil {
		log.ActorID = actor.ID
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
