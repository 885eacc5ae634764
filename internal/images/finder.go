// Package images finds a picture for a recipe by scraping a search page.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoImage = errors.New("no image found")

// maxPage bounds how much of a search result page is parsed.
const maxPage = 2 << 20

// Finder fetches searchURL with the query substituted for %s and returns the
// page's preview image: og:image, then twitter:image, then the first <img>.
type Finder struct {
	searchURL  string
	httpClient *http.Client
}

func NewFinder(searchURL string, timeout time.Duration) *Finder {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = slog.Default()
	rc.HTTPClient.Timeout = timeout
	return &Finder{searchURL: searchURL, httpClient: rc.StandardClient()}
}

func (f *Finder) FindImage(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrNoImage
	}
	page, err := url.Parse(fmt.Sprintf(f.searchURL, url.QueryEscape(query)))
	if err != nil {
		return "", fmt.Errorf("invalid image search url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create image search request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image search failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image search returned %s", resp.Status)
	}

	src, err := imageFromHTML(io.LimitReader(resp.Body, maxPage))
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("bad image url %q: %w", src, err)
	}
	resolved := page.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", ErrNoImage
	}
	slog.DebugContext(ctx, "found recipe image", "query", query, "image", resolved.String())
	return resolved.String(), nil
}

func imageFromHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse image search page: %w", err)
	}

	var og, twitter, img string
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.Meta:
			key := attr(n, "property")
			if key == "" {
				key = attr(n, "name")
			}
			switch strings.ToLower(key) {
			case "og:image":
				if og == "" {
					og = attr(n, "content")
				}
			case "twitter:image":
				if twitter == "" {
					twitter = attr(n, "content")
				}
			}
		case atom.Img:
			if img == "" && !strings.HasPrefix(attr(n, "src"), "data:") {
				img = attr(n, "src")
			}
		}
	}
	for _, src := range []string{og, twitter, img} {
		if src = strings.TrimSpace(src); src != "" {
			return src, nil
		}
	}
	return "", ErrNoImage
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
