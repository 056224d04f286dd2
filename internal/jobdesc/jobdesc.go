// Package jobdesc loads a job description from stdin, a file, a web page
// or a public applicant-tracking-system posting.
package jobdesc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrEmpty is returned when a source yields no text.
var ErrEmpty = errors.New("job description is empty")

const userAgent = "Mozilla/5.0 (compatible; resumetailor/1.0)"

// maxPageBytes bounds how much of a fetched page is read.
const maxPageBytes = 4 << 20

// Posting is a loaded job description. Only Text is always set; the other
// fields are filled when the source exposes them.
type Posting struct {
	Title    string
	Company  string
	Location string
	URL      string
	Source   string // "stdin", "file", "html", "web", "greenhouse", "lever" or "ashby"
	Text     string
}

// Loader resolves job description sources.
type Loader struct {
	client *http.Client
	stdin  io.Reader
	logger *slog.Logger
}

// NewLoader creates a Loader. stdin is read when the source is "-".
func NewLoader(client *http.Client, stdin io.Reader, logger *slog.Logger) *Loader {
	return &Loader{client: client, stdin: stdin, logger: logger}
}

// Load reads source, which is "-" for stdin, an http(s) URL, a .html/.htm
// file, or any other file (read verbatim). The returned text is trimmed.
func (l *Loader) Load(ctx context.Context, source string) (Posting, error) {
	p, err := l.load(ctx, source)
	if err != nil {
		return Posting{}, err
	}
	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" {
		return Posting{}, fmt.Errorf("load %s: %w", source, ErrEmpty)
	}
	l.logger.Debug("loaded job description", "source", p.Source, "title", p.Title, "bytes", len(p.Text))
	return p, nil
}

func (l *Loader) load(ctx context.Context, source string) (Posting, error) {
	switch {
	case source == "-":
		data, err := io.ReadAll(l.stdin)
		if err != nil {
			return Posting{}, fmt.Errorf("read job description from stdin: %w", err)
		}
		return Posting{Source: "stdin", Text: string(data)}, nil

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		if ref, ok := parseATSURL(source); ok {
			return l.fetchATS(ctx, ref)
		}
		return l.fetchPage(ctx, source)

	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return Posting{}, fmt.Errorf("read job description: %w", err)
		}
		switch strings.ToLower(filepath.Ext(source)) {
		case ".html", ".htm":
			text, err := ExtractMainText(string(data))
			if err != nil {
				return Posting{}, err
			}
			return Posting{Source: "html", Text: text}, nil
		}
		return Posting{Source: "file", Text: string(data)}, nil
	}
}

// fetchPage downloads an arbitrary job page and extracts its main text.
func (l *Loader) fetchPage(ctx context.Context, pageURL string) (Posting, error) {
	body, err := l.get(ctx, pageURL)
	if err != nil {
		return Posting{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return Posting{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	return Posting{
		Title:  title,
		URL:    pageURL,
		Source: "web",
		Text:   mainText(doc),
	}, nil
}

func (l *Loader) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	return body, nil
}

// contentSelectors are tried in order; the first match is the posting body.
var contentSelectors = []string{
	".job-description",
	".job-content",
	"#job-description",
	"#job-content",
	".posting-content",
	".job-details",
	"[data-testid='job-description']",
	"main",
	"article",
	".content",
	"#content",
}

const noiseSelector = "nav, footer, header, script, style, noscript, form, .ad, .advertisement, .sidebar, .cookie-banner, .popup"

// ExtractMainText parses an HTML page and returns the text of its job
// posting body, falling back to <body>.
func ExtractMainText(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return mainText(doc), nil
}

func mainText(doc *goquery.Document) string {
	doc.Find(noiseSelector).Remove()

	content := doc.Find("body")
	for _, sel := range contentSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			content = s.First()
			break
		}
	}
	return blockText(content)
}

// blockText returns the text of s with block-level elements on their own
// lines and blank lines removed.
func blockText(s *goquery.Selection) string {
	s.Find("p, li, h1, h2, h3, h4, h5, h6, div, br, tr").Each(func(_ int, el *goquery.Selection) {
		el.AppendHtml("\n")
	})
	s.Find("li").Each(func(_ int, el *goquery.Selection) {
		el.PrependHtml("- ")
	})

	var lines []string
	for _, line := range strings.Split(s.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
