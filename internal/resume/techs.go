package resume

import (
	"regexp"
	"sort"
	"strings"
)

// Category groups related technologies found on a resume.
type Category string

const (
	Languages     Category = "Programming Languages"
	Web           Category = "Web Technologies"
	Frameworks    Category = "Frameworks & Libraries"
	Databases     Category = "Databases"
	AIML          Category = "AI/ML"
	Cloud         Category = "Cloud & DevOps"
	Tools         Category = "Tools"
	Methodologies Category = "Methodologies"
)

// Categories lists every category in display order.
var Categories = []Category{Languages, Web, Frameworks, Databases, AIML, Cloud, Tools, Methodologies}

type term struct {
	name          string
	caseSensitive bool
}

var catalog = map[Category][]term{
	Languages: terms("Python", "Java", "JavaScript", "TypeScript", "C++", "C#", "Rust", "Swift",
		"Kotlin", "PHP", "Ruby", "Scala", "MATLAB", "SQL").with(exact("C"), exact("Go")),
	Web: terms("React", "Angular", "Vue.js", "Node.js", "Express", "Flask", "Django", "FastAPI",
		"HTML", "CSS", "Sass", "Bootstrap", "Tailwind", "jQuery", "Next.js"),
	Frameworks: terms("Pandas", "NumPy", "Selenium", "Spring", "Laravel", "Rails", "Faiss", "Spark", "PySpark"),
	Databases:  terms("PostgreSQL", "MySQL", "MongoDB", "Redis", "SQLite", "Oracle", "Cassandra", "DynamoDB"),
	AIML: terms("PyTorch", "TensorFlow", "Keras", "scikit-learn", "OpenCV", "NLTK", "spaCy",
		"Hugging Face", "BERT", "GPT", "CLIP", "YOLO"),
	Cloud:         terms("AWS", "Azure", "GCP", "Google Cloud", "Docker", "Kubernetes", "Terraform", "Databricks"),
	Tools:         terms("Git", "GitHub", "GitLab", "Jenkins", "Jira", "Linux"),
	Methodologies: terms("Agile", "Scrum", "DevOps", "CI/CD", "GraphQL", "Microservices", "ETL", "RBAC", "JWT").with(exact("REST")),
}

type termList []term

func terms(names ...string) termList {
	out := make(termList, len(names))
	for i, n := range names {
		out[i] = term{name: n}
	}
	return out
}

func exact(name string) term { return term{name: name, caseSensitive: true} }

func (l termList) with(extra ...term) termList { return append(l, extra...) }

var matchers = buildMatchers()

type matcher struct {
	name string
	re   *regexp.Regexp
}

func buildMatchers() map[Category][]matcher {
	out := make(map[Category][]matcher, len(catalog))
	for cat, list := range catalog {
		for _, t := range list {
			flags := "(?i)"
			if t.caseSensitive {
				flags = ""
			}
			// Word boundaries are spelled out because \b does not work next to
			// "+", "#" or ".".
			pattern := flags + `(?:^|[^A-Za-z0-9_])` + regexp.QuoteMeta(t.name) + `(?:$|[^A-Za-z0-9_+#])`
			out[cat] = append(out[cat], matcher{name: t.name, re: regexp.MustCompile(pattern)})
		}
	}
	return out
}

// ExtractTechnologies scans resume source for known technologies. Each
// category's names are deduplicated and sorted; empty categories are omitted.
func ExtractTechnologies(doc string) map[Category][]string {
	found := make(map[Category][]string)
	for _, cat := range Categories {
		for _, m := range matchers[cat] {
			if m.re.MatchString(doc) {
				found[cat] = append(found[cat], m.name)
			}
		}
		if names := found[cat]; len(names) > 0 {
			sort.Slice(names, func(i, j int) bool {
				return strings.ToLower(names[i]) < strings.ToLower(names[j])
			})
		}
	}
	return found
}

// SummarizeTechnologies renders ExtractTechnologies as "Category: a, b" lines
// in category display order.
func SummarizeTechnologies(doc string) []string {
	found := ExtractTechnologies(doc)
	var lines []string
	for _, cat := range Categories {
		if names := found[cat]; len(names) > 0 {
			lines = append(lines, string(cat)+": "+strings.Join(names, ", "))
		}
	}
	return lines
}
