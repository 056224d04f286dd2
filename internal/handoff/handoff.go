// Package handoff opens a document in an online LaTeX editor by posting it
// from a local, auto-submitting HTML page.
package handoff

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Editor posts documents to an Overleaf-compatible /docs endpoint.
type Editor struct {
	URL    string // e.g. https://www.overleaf.com/docs
	Engine string // e.g. pdflatex
}

// New returns an Editor for the given endpoint and engine.
func New(url, engine string) *Editor {
	return &Editor{URL: url, Engine: engine}
}

// Form returns the fields the editor expects: the URI-component-encoded
// document as encoded_snip, and the engine.
func (e *Editor) Form(doc string) url.Values {
	return url.Values{
		"encoded_snip": {EncodeURIComponent(doc)},
		"engine":       {e.Engine},
	}
}

var pageTemplate = template.Must(template.New("handoff").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Opening in Overleaf…</title>
</head>
<body onload="document.forms[0].submit()">
<form action="{{.Action}}" method="post">
{{- range $name, $values := .Fields}}{{range $values}}
<input type="hidden" name="{{$name}}" value="{{.}}">
{{- end}}{{end}}
<noscript><button type="submit">Open in Overleaf</button></noscript>
</form>
<p>Opening your resume in Overleaf…</p>
</body>
</html>
`))

// Page renders a self-submitting HTML form that posts doc to the editor.
func (e *Editor) Page(doc string) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Action string
		Fields url.Values
	}{Action: e.URL, Fields: e.Form(doc)})
	if err != nil {
		return nil, fmt.Errorf("render handoff page: %w", err)
	}
	return buf.Bytes(), nil
}

// Open writes the handoff page to a temporary file and opens it in the
// system browser. It returns the path of the written file.
func (e *Editor) Open(doc string) (string, error) {
	page, err := e.Page(doc)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "resumetailor-overleaf-*.html")
	if err != nil {
		return "", fmt.Errorf("create handoff page: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(page); err != nil {
		return "", fmt.Errorf("write handoff page: %w", err)
	}

	if err := OpenBrowser("file://" + f.Name()); err != nil {
		return f.Name(), err
	}
	return f.Name(), nil
}

// OpenBrowser opens target in the default system browser without waiting
// for it to exit.
func OpenBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux":
		cmd = exec.Command("xdg-open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", target)
	default:
		return fmt.Errorf("opening a browser is not supported on %s", runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent escapes s the way JavaScript's encodeURIComponent
// does: everything except A-Z a-z 0-9 and -_.!~*'() is percent-encoded as
// UTF-8.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
