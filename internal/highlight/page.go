package highlight

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Page is the readable content of an HTML document
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ExtractPage pulls the main visible text out of an HTML document
func ExtractPage(r io.Reader, pageURL string) (Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse page url: %w", err)
	}
	article, err := readability.FromReader(r, u)
	if err != nil {
		return Page{}, fmt.Errorf("failed to extract page text: %w", err)
	}
	return Page{
		URL:   pageURL,
		Title: strings.TrimSpace(article.Title),
		Text:  strings.TrimSpace(article.TextContent),
	}, nil
}

// HostOf returns the lowercase hostname of rawURL, or "" when it has none
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
