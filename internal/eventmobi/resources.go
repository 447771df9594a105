package eventmobi

import (
	"context"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"

	appLog "confguide/internal/log"
	"confguide/internal/model"
)

type sessionDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	Location      *struct {
		Name string `json:"name"`
	} `json:"location"`
	SpeakerIDs []string `json:"speaker_ids"`
}

type personDTO struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Title       string `json:"title"`
	CompanyName string `json:"company_name"`
	About       string `json:"about"`
	ImageURL    string `json:"image_url"`
}

type sponsorDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Level   string `json:"level"`
	Website string `json:"website"`
	LogoURL string `json:"logo_url"`
}

// Sessions returns the event's sessions. Speaker lists are never nil.
func (c *Client) Sessions(ctx context.Context) ([]model.AgendaItem, error) {
	dtos, err := getList[sessionDTO](ctx, c, "sessions")
	if err != nil {
		return nil, err
	}
	items := make([]model.AgendaItem, 0, len(dtos))
	for _, d := range dtos {
		it := model.AgendaItem{
			ID:          d.ID,
			SourceID:    "eventmobi",
			Start:       d.StartDatetime,
			End:         d.EndDatetime,
			SpeakerIDs:  d.SpeakerIDs,
			Topic:       strings.TrimSpace(d.Name),
			Description: toMarkdown(d.Description),
		}
		if it.SpeakerIDs == nil {
			it.SpeakerIDs = []string{}
		}
		if d.Location != nil {
			it.Location = d.Location.Name
		}
		items = append(items, it)
	}
	return items, nil
}

// Speakers returns the people flagged as speakers for the event.
func (c *Client) Speakers(ctx context.Context) ([]model.Speaker, error) {
	dtos, err := getList[personDTO](ctx, c, "people")
	if err != nil {
		return nil, err
	}
	out := make([]model.Speaker, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, model.Speaker{
			ID:       d.ID,
			Name:     strings.TrimSpace(d.FirstName + " " + d.LastName),
			Title:    d.Title,
			Company:  d.CompanyName,
			Bio:      toMarkdown(d.About),
			ImageURL: d.ImageURL,
		})
	}
	return out, nil
}

func (c *Client) Sponsors(ctx context.Context) ([]model.Sponsor, error) {
	dtos, err := getList[sponsorDTO](ctx, c, "sponsors")
	if err != nil {
		return nil, err
	}
	out := make([]model.Sponsor, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, model.Sponsor{
			ID:      d.ID,
			Name:    d.Name,
			Level:   strings.ToLower(d.Level),
			URL:     d.Website,
			LogoURL: d.LogoURL,
		})
	}
	return out, nil
}

// toMarkdown converts the provider's HTML rich text. On failure the raw
// text is kept.
func toMarkdown(html string) string {
	html = strings.TrimSpace(html)
	if html == "" || !strings.Contains(html, "<") {
		return html
	}
	out, err := md.ConvertString(html)
	if err != nil {
		appLog.Warn("eventmobi: html conversion failed", "err", err)
		return html
	}
	return strings.TrimSpace(out)
}
