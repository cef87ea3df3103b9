package news

import (
	"net/http"
	"time"

	"golang.org/x/text/language"
)

// Status is the article lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// LocalizedText holds the Bengali and English renditions of a field.
type LocalizedText struct {
	BN string `json:"bn"`
	EN string `json:"en"`
}

// In picks the rendition for a language code, falling back to the other
// language when the requested one is empty.
func (t LocalizedText) In(lang string) string {
	if lang == "bn" {
		if t.BN != "" {
			return t.BN
		}
		return t.EN
	}
	if t.EN != "" {
		return t.EN
	}
	return t.BN
}

// Category groups articles.
type Category struct {
	ID        int64         `json:"id"`
	Slug      string        `json:"slug"`
	Name      LocalizedText `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
}

// Article is a bilingual news story.
type Article struct {
	ID          int64         `json:"id"`
	Slug        string        `json:"slug"`
	Title       LocalizedText `json:"title"`
	Summary     LocalizedText `json:"summary"`
	Body        LocalizedText `json:"body"`
	CategoryID  int64         `json:"category_id"`
	AuthorID    int64         `json:"author_id"`
	Status      Status        `json:"status"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// The portal serves Bengali first; English is the negotiated fallback.
var langMatcher = language.NewMatcher([]language.Tag{
	language.Bengali,
	language.English,
})

// NegotiateLang resolves the reader's language from the lang query
// parameter or the Accept-Language header. The result is "bn" or "en".
func NegotiateLang(r *http.Request) string {
	switch r.URL.Query().Get("lang") {
	case "bn":
		return "bn"
	case "en":
		return "en"
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return "bn"
	}
	tag, _, _ := langMatcher.Match(tags...)
	if base, _ := tag.Base(); base.String() == "en" {
		return "en"
	}
	return "bn"
}
