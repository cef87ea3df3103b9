package news

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sangbadpatra/sangbadpatra/internal/gate"
	"github.com/sangbadpatra/sangbadpatra/internal/platform/httpx"
	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
)

// Handler wires the public reading surface and the gated newsroom API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountPublic registers the unauthenticated reading routes.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/", h.handleFrontPage)
	r.Get("/categories", h.handleListCategories)
	r.Get("/{slug}", h.handleReadArticle)
}

// MountAPI registers the newsroom routes. Write access is limited to
// staff roles; publishing and category management to editors.
func (h *Handler) MountAPI(r chi.Router, g *gate.Gate) {
	staff := g.RequireRole(session.RoleReporter, session.RoleAdmin, session.RoleSuperAdmin)
	editors := g.RequireRole(session.RoleAdmin, session.RoleSuperAdmin)

	r.Group(func(r chi.Router) {
		r.Use(staff)
		r.Get("/articles", h.handleMyArticles)
		r.Post("/articles", h.handleCreateArticle)
		r.Put("/articles/{id}", h.handleUpdateArticle)
	})
	r.Group(func(r chi.Router) {
		r.Use(editors)
		r.Post("/articles/{id}/publish", h.handlePublish)
		r.Post("/categories", h.handleCreateCategory)
	})
}

// articleView is the localized public projection of an Article.
type articleView struct {
	ID          int64      `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body,omitempty"`
	CategoryID  int64      `json:"category_id"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Lang        string     `json:"lang"`
}

type categoryView struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
	Lang string `json:"lang"`
}

func localize(a Article, lang string, withBody bool) articleView {
	view := articleView{
		ID:          a.ID,
		Slug:        a.Slug,
		Title:       a.Title.In(lang),
		Summary:     a.Summary.In(lang),
		CategoryID:  a.CategoryID,
		PublishedAt: a.PublishedAt,
		Lang:        lang,
	}
	if withBody {
		view.Body = a.Body.In(lang)
	}
	return view
}

func (h *Handler) handleFrontPage(w http.ResponseWriter, r *http.Request) {
	lang := NegotiateLang(r)
	page, perPage := shared.PageFromQuery(r.URL.Query())
	result, err := h.service.FrontPage(r.Context(), r.URL.Query().Get("category"), page, perPage)
	if err != nil {
		h.logger.Error("front page", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]articleView, 0, len(result.Articles))
	for _, a := range result.Articles {
		views = append(views, localize(a, lang, false))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"articles":   views,
		"pagination": result.Pagination,
	})
}

func (h *Handler) handleReadArticle(w http.ResponseWriter, r *http.Request) {
	lang := NegotiateLang(r)
	article, err := h.service.GetPublished(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, localize(*article, lang, true))
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	lang := NegotiateLang(r)
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, categoryView{ID: c.ID, Slug: c.Slug, Name: c.Name.In(lang), Lang: lang})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": views})
}

func (h *Handler) handleMyArticles(w http.ResponseWriter, r *http.Request) {
	actor := session.UserFromContext(r.Context())
	page, perPage := shared.PageFromQuery(r.URL.Query())
	articles, pg, err := h.service.MyArticles(r.Context(), actor, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"articles":   articles,
		"pagination": pg,
	})
}

func (h *Handler) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var input ArticleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed request body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	article, err := h.service.CreateArticle(r.Context(), session.UserFromContext(r.Context()), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, article)
}

func (h *Handler) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid article id")
		return
	}
	var input ArticleInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed request body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	article, err := h.service.UpdateArticle(r.Context(), session.UserFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid article id")
		return
	}
	article, err := h.service.Publish(r.Context(), session.UserFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed request body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category, err := h.service.CreateCategory(r.Context(), session.UserFromContext(r.Context()), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}
