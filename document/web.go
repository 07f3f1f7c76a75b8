package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/agentkit-go/ragagents/log"
)

// Format selects how fetched HTML is turned into page content.
type Format int

const (
	// FormatText keeps only the visible text.
	FormatText Format = iota
	// FormatMarkdown converts the sanitised HTML to markdown.
	FormatMarkdown
)

const maxBodyBytes = 10 << 20

// WebLoader fetches pages over HTTP, one document per URL.
type WebLoader struct {
	urls        []string
	classes     []string
	format      Format
	client      *http.Client
	limiter     *rate.Limiter
	concurrency int
	userAgent   string
	logger      log.Logger
}

// WebOption configures a WebLoader.
type WebOption func(*WebLoader)

// WithClasses keeps only elements carrying one of the CSS classes, in
// document order. Without classes the main article is extracted.
func WithClasses(classes ...string) WebOption {
	return func(l *WebLoader) { l.classes = append(l.classes, classes...) }
}

// WithFormat sets the output format.
func WithFormat(f Format) WebOption {
	return func(l *WebLoader) { l.format = f }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) WebOption {
	return func(l *WebLoader) { l.client = c }
}

// WithRateLimit caps requests per second across all URLs.
func WithRateLimit(perSecond float64, burst int) WebOption {
	return func(l *WebLoader) { l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithConcurrency bounds the number of in-flight requests.
func WithConcurrency(n int) WebOption {
	return func(l *WebLoader) { l.concurrency = n }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) WebOption {
	return func(l *WebLoader) { l.userAgent = ua }
}

// WithWebLogger sets the logger.
func WithWebLogger(logger log.Logger) WebOption {
	return func(l *WebLoader) { l.logger = logger }
}

// NewWebLoader creates a loader for urls. Defaults: text output, two
// requests per second, four concurrent fetches.
func NewWebLoader(urls []string, opts ...WebOption) *WebLoader {
	l := &WebLoader{
		urls:        urls,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(2), 1),
		concurrency: 4,
		userAgent:   "ragagents/1.0",
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = log.OrDefault(l.logger)
	return l
}

// Load fetches every URL. Documents keep the order of the URLs.
func (l *WebLoader) Load(ctx context.Context) ([]schema.Document, error) {
	docs := make([]schema.Document, len(l.urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.concurrency, 1))
	for i, u := range l.urls {
		g.Go(func() error {
			doc, err := l.fetch(ctx, u)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (l *WebLoader) fetch(ctx context.Context, rawURL string) (schema.Document, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return schema.Document{}, err
	}
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return schema.Document{}, fmt.Errorf("document: parse url %q: %w", rawURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return schema.Document{}, err
	}
	req.Header.Set("User-Agent", l.userAgent)

	l.logger.Debug("fetching %s", rawURL)
	resp, err := l.client.Do(req)
	if err != nil {
		return schema.Document{}, fmt.Errorf("document: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return schema.Document{}, fmt.Errorf("document: fetch %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return schema.Document{}, fmt.Errorf("document: read %s: %w", rawURL, err)
	}

	doc, err := l.parse(body, pageURL)
	if err != nil {
		return schema.Document{}, fmt.Errorf("document: parse %s: %w", rawURL, err)
	}
	doc.Metadata[MetaSource] = rawURL
	l.logger.Info("loaded %s (%d chars)", rawURL, len(doc.PageContent))
	return doc, nil
}

func (l *WebLoader) parse(body []byte, pageURL *url.URL) (schema.Document, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return schema.Document{}, err
	}
	meta := map[string]any{
		MetaTitle:    strings.TrimSpace(page.Find("title").First().Text()),
		MetaLanguage: page.Find("html").AttrOr("lang", ""),
	}

	var fragment string
	if len(l.classes) > 0 {
		selectors := make([]string, len(l.classes))
		for i, c := range l.classes {
			selectors[i] = "." + c
		}
		selector := strings.Join(selectors, ", ")
		page.Find("script, style, noscript").Remove()
		// nested matches are already covered by their matching ancestor
		sel := page.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ParentsFiltered(selector).Length() == 0
		})
		parts := make([]string, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			if l.format == FormatText {
				parts = append(parts, s.Text())
				return
			}
			if h, err := goquery.OuterHtml(s); err == nil {
				parts = append(parts, h)
			}
		})
		fragment = strings.Join(parts, "\n")
	} else {
		article, err := readability.FromReader(bytes.NewReader(body), pageURL)
		switch {
		case err == nil && l.format == FormatText && article.TextContent != "":
			fragment = article.TextContent
		case err == nil && article.Content != "":
			fragment = article.Content
			if l.format == FormatText {
				fragment = textOf(fragment)
			}
		default:
			l.logger.Debug("readability failed for %s, using body text: %v", pageURL, err)
			fragment = page.Find("body").Text()
		}
		if err == nil && article.Title != "" && meta[MetaTitle] == "" {
			meta[MetaTitle] = article.Title
		}
	}

	content := fragment
	if l.format == FormatMarkdown {
		md, err := htmltomarkdown.ConvertString(bluemonday.UGCPolicy().Sanitize(fragment))
		if err != nil {
			return schema.Document{}, err
		}
		content = strings.TrimSpace(md)
	} else {
		content = normalizeText(content)
	}
	return schema.Document{PageContent: content, Metadata: meta}, nil
}

// textOf returns the visible text of an HTML fragment.
func textOf(html string) string {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return d.Text()
}
