package sanitize

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"latex fence", "```latex\nBODY\n```", "BODY"},
		{"bare fence", "```\nBODY\n```", "BODY"},
		{"tex tag", "```tex\n\\section{A}\n```", "\\section{A}"},
		{"surrounding whitespace", "  \n```latex\nBODY\n```\n\n", "BODY"},
		{"unfenced trimmed", "  \\documentclass{article}\n", "\\documentclass{article}"},
		{"unterminated fence", "```latex\nBODY", "BODY"},
		{"crlf", "```latex\r\nBODY\r\n```", "BODY"},
		{"multi-line body", "```latex\nline1\n\nline2\n```", "line1\n\nline2"},
		{"inner fence kept", "```latex\na\n```\nb\n```", "a\n```\nb"},
		{"opener only", "```latex", ""},
		{"empty block", "```\n```", ""},
		{"doubled fence", "```\n```latex\nBODY\n```\n```", "BODY"},
		{"not an opener", "```latex is great``` said nobody", "```latex is great``` said nobody"},
		{"fence mid text", "Here:\n```latex\nBODY\n```", "Here:\n```latex\nBODY\n```"},
		{"empty", "", ""},
		{"whitespace only", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"```latex\nBODY\n```",
		"```\n```\nBODY\n```\n```",
		"```latex\n```latex\n```latex\nX",
		"```\n\n```\n",
		"plain text",
		"   padded   ",
		"```latex\n\\begin{document}\n```\n\\end{document}\n```",
		"```not a fence opener\nBODY\n```",
		"``` \nBODY",
		"`````\n`````",
		"",
	}

	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}
