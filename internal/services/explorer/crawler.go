package explorer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
)

const (
	maxDepthLimit   = 2
	defaultMaxPages = 6
	defaultTimeout  = 10 * time.Second
	maxLinksPerPage = 30

	userAgent = "Mozilla/5.0 (compatible; StoryQA/1.0)"
)

// Config bounds a crawl. Depth is clamped to the hard limit whatever
// the caller asks for.
type Config struct {
	MaxDepth int
	MaxPages int
	Timeout  time.Duration
}

// Crawler explores a site breadth-first over plain HTTP and extracts
// its static form model. Script-rendered content is out of scope.
type Crawler struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Crawler {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	if cfg.MaxDepth > maxDepthLimit {
		cfg.MaxDepth = maxDepthLimit
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

type queueItem struct {
	url   string
	depth int
}

// Explore crawls from startURL. Individual fetch or parse failures
// produce error pages and the crawl continues; only an unusable start
// URL is an error.
func (c *Crawler) Explore(ctx context.Context, startURL string) (domain.CrawlResult, error) {
	base, err := url.Parse(startURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return domain.CrawlResult{}, domain.ValidationError("start_url", fmt.Sprintf("invalid start URL %q", startURL))
	}

	visited := make(map[string]bool)
	queue := []queueItem{{url: startURL, depth: 0}}
	pages := []domain.Page{}

	for len(queue) > 0 && len(pages) < c.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			break
		}
		item := queue[0]
		queue = queue[1:]

		norm := normalizeURL(item.url)
		if visited[norm] {
			continue
		}
		visited[norm] = true

		page := c.fetchPage(ctx, item.url)
		pages = append(pages, page)
		c.logger.Debug("page explored",
			zap.String("url", page.URL),
			zap.Int("forms", len(page.Forms)),
			zap.Int("links", len(page.Links)),
			zap.Int("depth", item.depth))

		if item.depth >= c.cfg.MaxDepth {
			continue
		}
		for _, link := range page.Links {
			if !sameHost(base, link.URL) {
				continue
			}
			if !visited[normalizeURL(link.URL)] {
				queue = append(queue, queueItem{url: link.URL, depth: item.depth + 1})
			}
		}
	}

	c.logger.Info("exploration finished",
		zap.String("start_url", startURL),
		zap.Int("pages", len(pages)))
	return domain.CrawlResult{StartURL: startURL, Pages: pages}, nil
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string) domain.Page {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return errorPage(pageURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return errorPage(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorPage(pageURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return errorPage(pageURL, err)
	}
	return parsePage(pageURL, doc)
}

func errorPage(pageURL string, err error) domain.Page {
	return domain.Page{
		URL:   pageURL,
		Title: "Error",
		Error: err.Error(),
		Forms: []domain.Form{},
		Links: []domain.Link{},
	}
}

func sameHost(base *url.URL, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, base.Host)
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/")
}
