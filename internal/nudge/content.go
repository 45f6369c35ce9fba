package nudge

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// Content is the visible part of a nudge.
type Content struct {
	Title string
	Body  string
}

// ContentGenerator writes the nudge text for a user.
type ContentGenerator interface {
	Generate(ctx context.Context, p *domain.Profile, now time.Time) (Content, error)
}

var prompts = []string{
	"How's your week going, %s? Your friends would love an update.",
	"%s, it's been a while. Share what you've been up to.",
	"Anything new, %s? Drop a quick update for your friends.",
	"Your friends are wondering how you are, %s.",
	"Got a minute, %s? Tell your friends one thing from today.",
}

// TemplateGenerator picks one of a fixed set of prompts, stable for a given
// user and day.
type TemplateGenerator struct{}

// NewTemplateGenerator creates a TemplateGenerator.
func NewTemplateGenerator() TemplateGenerator {
	return TemplateGenerator{}
}

// Generate implements ContentGenerator.
func (TemplateGenerator) Generate(_ context.Context, p *domain.Profile, now time.Time) (Content, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(p.UserID))
	idx := (int(h.Sum32()%uint32(len(prompts))) + now.UTC().YearDay()) % len(prompts)

	return Content{
		Title: "Time for an update",
		Body:  fmt.Sprintf(prompts[idx], displayName(p)),
	}, nil
}

// DefaultContent is sent when a generator fails.
func DefaultContent(p *domain.Profile) Content {
	return Content{
		Title: "Time for an update",
		Body:  fmt.Sprintf(prompts[0], displayName(p)),
	}
}

func displayName(p *domain.Profile) string {
	switch {
	case p == nil:
		return "there"
	case p.Name != "":
		return p.Name
	case p.Username != "":
		return p.Username
	default:
		return "there"
	}
}
