// Package compile turns LaTeX source into a PDF using a remote build service.
package compile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledongthuc/pdf"
)

// maxLogBytes bounds how much of a failed build's output is kept.
const maxLogBytes = 16 << 10

// CompileError reports a build the service rejected. Log carries the
// service's response body, usually the LaTeX log.
type CompileError struct {
	StatusCode int
	Log        string
}

func (e *CompileError) Error() string {
	if e.StatusCode < 200 || e.StatusCode > 299 {
		return fmt.Sprintf("compilation failed: HTTP %d", e.StatusCode)
	}
	return "compilation failed - check LaTeX syntax"
}

// Client posts documents to a LaTeX build service such as
// https://latex.ytotech.com/builds/sync.
type Client struct {
	url        string
	compiler   string
	httpClient *http.Client
	cache      *lru.Cache[string, []byte] // nil when caching is disabled
	logger     *slog.Logger
}

// NewClient creates a compile client. A cacheSize of zero disables the
// result cache.
func NewClient(url, compiler string, cacheSize int, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	c := &Client{
		url:        url,
		compiler:   compiler,
		httpClient: httpClient,
		logger:     logger,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, []byte](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create compile cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Compile builds source and returns the PDF bytes. Identical sources are
// served from the cache without contacting the service.
func (c *Client) Compile(ctx context.Context, source string) ([]byte, error) {
	key := c.cacheKey(source)
	if c.cache != nil {
		if pdfBytes, ok := c.cache.Get(key); ok {
			c.logger.Debug("compile cache hit", "key", key[:12])
			return pdfBytes, nil
		}
	}

	body, contentType, err := c.form(source)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("create compile request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("compile request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read compile response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CompileError{StatusCode: resp.StatusCode, Log: truncate(string(data))}
	}
	if !isPDF(resp.Header.Get("Content-Type")) {
		return nil, &CompileError{StatusCode: resp.StatusCode, Log: truncate(string(data))}
	}

	c.logger.Info("compiled document", "source_bytes", len(source), "pdf_bytes", len(data))
	if c.cache != nil {
		c.cache.Add(key, data)
	}
	return data, nil
}

// form encodes the multipart body: a compiler field and the source as a
// main.tex resource.
func (c *Client) form(source string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("compiler", c.compiler); err != nil {
		return nil, "", fmt.Errorf("write compiler field: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="resources"; filename="main.tex"`)
	h.Set("Content-Type", "text/plain")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create resources part: %w", err)
	}
	if _, err := io.WriteString(part, source); err != nil {
		return nil, "", fmt.Errorf("write resources part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) cacheKey(source string) string {
	sum := sha256.Sum256([]byte(c.compiler + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/pdf")
	}
	return mediaType == "application/pdf"
}

// truncate keeps the tail of s, where LaTeX reports the failing line.
func truncate(s string) string {
	if len(s) <= maxLogBytes {
		return s
	}
	return s[len(s)-maxLogBytes:]
}

// PageCount returns the number of pages in a PDF document.
func PageCount(pdfBytes []byte) (n int, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return r.NumPage(), nil
}
