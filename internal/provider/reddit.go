package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	redditBaseURL     = "https://www.reddit.com"
	defaultRedditUA   = "market-pulse/1.0 (signal ingestion)"
	defaultRedditSize = 40
	maxRedditSize     = 100
)

// RedditProvider reads the hot listing of a subreddit through the public
// JSON endpoint.
type RedditProvider struct {
	client    Doer
	baseURL   string
	userAgent string
	tracer    trace.Tracer
}

func NewRedditProvider(client Doer, tracer trace.Tracer) *RedditProvider {
	return &RedditProvider{
		client:    orDefaultClient(client),
		baseURL:   redditBaseURL,
		userAgent: defaultRedditUA,
		tracer:    tracer,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Score       float64 `json:"score"`
	NumComments float64 `json:"num_comments"`
	Stickied    bool    `json:"stickied"`
	Over18      bool    `json:"over_18"`
}

// contentItem reports false for pinned, adult or untitled posts.
func (p redditPost) contentItem(base string) (ContentItem, bool) {
	id := strings.TrimSpace(p.ID)
	title := cleanText(p.Title, 300)
	if p.Stickied || p.Over18 || id == "" || title == "" {
		return ContentItem{}, false
	}
	link := strings.TrimSpace(p.URL)
	if permalink := strings.TrimSpace(p.Permalink); permalink != "" {
		link = base + permalink
	}
	return ContentItem{
		Source:       "reddit",
		SourceItemID: id,
		Title:        title,
		URL:          link,
		Excerpt:      cleanText(p.SelfText, 420),
		Author:       cleanText(p.Author, 120),
		PublishedAt:  time.Unix(int64(p.CreatedUTC), 0).UTC(),
		Metadata: map[string]any{
			"subreddit":    strings.TrimSpace(p.Subreddit),
			"score":        p.Score,
			"num_comments": p.NumComments,
		},
	}, true
}

func (p *RedditProvider) FetchHot(ctx context.Context, subreddit string, limit int) ([]ContentItem, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.fetch-hot")
	defer span.End()

	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		return nil, errors.New("subreddit is required")
	}
	span.SetAttributes(attribute.String("subreddit", subreddit))
	limit = min(max(limit, 0), maxRedditSize)
	if limit == 0 {
		limit = defaultRedditSize
	}

	base := strings.TrimRight(p.baseURL, "/")
	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", base, url.PathEscape(subreddit), limit)
	body, err := fetch(ctx, p.client, "reddit", u, map[string]string{"User-Agent": p.userAgent})
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode reddit listing r/%s: %w", subreddit, err)
	}

	items := make([]ContentItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if item, ok := child.Data.contentItem(base); ok {
			items = append(items, item)
		}
	}
	return items, nil
}
