package provider

import (
	"context"
	"net/http"
	"testing"
)

func TestRSSFetchFeed(t *testing.T) {
	p := NewRSSProvider(nil, testTracer())
	p.client = stubClient(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Accept") == "application/json" {
			t.Errorf("expected xml accept header")
		}
		xml := `<?xml version="1.0"?><rss version="2.0"><channel><title>Example Feed</title><item><title>ETH adoption rises</title><link>https://news.example/eth</link><description><![CDATA[<p>Ethereum growth continues</p>]]></description><guid>guid-1</guid><pubDate>Fri, 13 Feb 2026 10:00:00 +0000</pubDate><author>Reporter</author></item><item><title>  </title></item></channel></rss>`
		return jsonResponse(http.StatusOK, xml), nil
	})

	items, err := p.FetchFeed(context.Background(), "https://news.example/rss", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Source != "news" || item.SourceItemID != "guid-1" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.Excerpt != "Ethereum growth continues" {
		t.Fatalf("expected html stripped excerpt, got %q", item.Excerpt)
	}
	if item.Metadata["feed_host"] != "news.example" {
		t.Fatalf("expected feed host metadata, got %+v", item.Metadata)
	}
}

func TestRSSFetchFeedRequiresURL(t *testing.T) {
	p := NewRSSProvider(nil, testTracer())
	if _, err := p.FetchFeed(context.Background(), " ", 5); err == nil {
		t.Fatal("expected error for empty feed url")
	}
}

func TestRSSFetchAtomFeed(t *testing.T) {
	p := NewRSSProvider(nil, testTracer())
	p.client = stubClient(func(req *http.Request) (*http.Response, error) {
		xml := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>Atom Desk</title>
<entry><id>tag:desk,2026:1</id><title>SEC delays ETF decision</title>
<link rel="alternate" href="https://desk.example/etf"/><link rel="self" href="https://desk.example/self"/>
<summary>Regulator &amp; issuers wait</summary><published>2026-02-13T10:00:00Z</published>
<author><name>Desk</name></author></entry></feed>`
		return jsonResponse(http.StatusOK, xml), nil
	})

	items, err := p.FetchFeed(context.Background(), "https://desk.example/atom", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.SourceItemID != "tag:desk,2026:1" || item.URL != "https://desk.example/etf" {
		t.Fatalf("unexpected atom item: %+v", item)
	}
	if item.Excerpt != "Regulator & issuers wait" {
		t.Fatalf("expected decoded entities, got %q", item.Excerpt)
	}
	if item.PublishedAt.Year() != 2026 || item.Author != "Desk" || item.Metadata["channel"] != "Atom Desk" {
		t.Fatalf("unexpected atom metadata: %+v", item)
	}
}

func TestRSSFetchFeedHonoursLimitAndDerivesIDs(t *testing.T) {
	p := NewRSSProvider(nil, testTracer())
	p.client = stubClient(func(req *http.Request) (*http.Response, error) {
		xml := `<rss><channel><item><title>One</title></item><item><title>Two</title></item><item><title>Three</title></item></channel></rss>`
		return jsonResponse(http.StatusOK, xml), nil
	})

	items, err := p.FetchFeed(context.Background(), "https://news.example/rss", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(items))
	}
	if len(items[0].SourceItemID) != 40 || items[0].SourceItemID == items[1].SourceItemID {
		t.Fatalf("expected distinct sha1 ids, got %q and %q", items[0].SourceItemID, items[1].SourceItemID)
	}
}

func TestCleanTextKeepsRunesWhole(t *testing.T) {
	if got := cleanText("  a\n\tb  ", 0); got != "a b" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
	// "é" is two bytes; cutting at 2 must not leave half of it.
	if got := cleanText("aé", 2); got != "a" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}

func TestParseFeedTime(t *testing.T) {
	if got := parseFeedTime("Fri, 13 Feb 2026 10:00:00 +0000"); got.Day() != 13 {
		t.Fatalf("unexpected rfc1123z parse: %v", got)
	}
	if !parseFeedTime("yesterday").IsZero() {
		t.Fatal("expected zero time for unknown layout")
	}
}
