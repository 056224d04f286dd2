package resume

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultTemplate_IsCompleteDocument(t *testing.T) {
	tmpl := DefaultTemplate()
	for _, want := range []string{`\documentclass`, `\begin{document}`, `\end{document}`, `\section{Experience}`} {
		if !strings.Contains(tmpl, want) {
			t.Errorf("default template missing %q", want)
		}
	}
}

func TestLoadTemplate(t *testing.T) {
	got, err := LoadTemplate("")
	if err != nil {
		t.Fatalf("LoadTemplate(\"\"): %v", err)
	}
	if got != DefaultTemplate() {
		t.Error("empty path should return the built-in template")
	}

	path := filepath.Join(t.TempDir(), "mine.tex")
	if err := os.WriteFile(path, []byte("\n\\documentclass{article}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = LoadTemplate(path)
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if got != `\documentclass{article}` {
		t.Errorf("LoadTemplate = %q", got)
	}
}

func TestLoadTemplate_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.tex")
	if err := os.WriteFile(path, []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTemplate(path); err == nil {
		t.Fatal("expected error for empty template")
	}
}

func TestExtractTechnologies(t *testing.T) {
	doc := `\resumeItem{Built services in Go and C++ on Kubernetes, backed by PostgreSQL and redis.}
\textbf{Languages:} Python, C, SQL \\ \emph{React, Node.js, PyTorch}`

	got := ExtractTechnologies(doc)

	want := map[Category][]string{
		Languages:  {"C", "C++", "Go", "Python", "SQL"},
		Web:        {"Node.js", "React"},
		Databases:  {"PostgreSQL", "Redis"},
		AIML:       {"PyTorch"},
		Cloud:      {"Kubernetes"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractTechnologies = %v, want %v", got, want)
	}
}

func TestExtractTechnologies_WordBoundaries(t *testing.T) {
	got := ExtractTechnologies("Springfield office, PySpark jobs, a good rest, GitHub Actions")
	if names := got[Frameworks]; !reflect.DeepEqual(names, []string{"PySpark"}) {
		t.Errorf("Frameworks = %v, want [PySpark]", names)
	}
	if _, ok := got[Methodologies]; ok {
		t.Errorf("lowercase 'rest' should not match REST: %v", got[Methodologies])
	}
	if names := got[Tools]; !reflect.DeepEqual(names, []string{"GitHub"}) {
		t.Errorf("Tools = %v, want [GitHub]", names)
	}
}

func TestSummarizeTechnologies_Order(t *testing.T) {
	lines := SummarizeTechnologies("Docker and Python")
	want := []string{"Programming Languages: Python", "Cloud & DevOps: Docker"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("SummarizeTechnologies = %v, want %v", lines, want)
	}
}
