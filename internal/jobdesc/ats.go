package jobdesc

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"
)

const (
	greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"
	leverBaseURL      = "https://api.lever.co/v0/postings"
	ashbyBaseURL      = "https://api.ashbyhq.com/posting-api/job-board"
)

// atsRef identifies a single posting on a public job board.
type atsRef struct {
	ats   string // "greenhouse", "lever" or "ashby"
	board string
	id    string
	url   string
}

// parseATSURL recognizes hosted posting pages whose content is available
// from the board's public API:
//
//	https://boards.greenhouse.io/{board}/jobs/{id}
//	https://job-boards.greenhouse.io/{board}/jobs/{id}
//	https://jobs.lever.co/{company}/{id}
//	https://jobs.ashbyhq.com/{board}/{id}
func parseATSURL(raw string) (atsRef, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return atsRef{}, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch strings.ToLower(u.Hostname()) {
	case "boards.greenhouse.io", "job-boards.greenhouse.io":
		if len(parts) >= 3 && parts[1] == "jobs" && parts[0] != "" && parts[2] != "" {
			return atsRef{ats: "greenhouse", board: parts[0], id: parts[2], url: raw}, true
		}
	case "jobs.lever.co":
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
			return atsRef{ats: "lever", board: parts[0], id: parts[1], url: raw}, true
		}
	case "jobs.ashbyhq.com":
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
			return atsRef{ats: "ashby", board: parts[0], id: parts[1], url: raw}, true
		}
	}
	return atsRef{}, false
}

func (l *Loader) fetchATS(ctx context.Context, ref atsRef) (Posting, error) {
	switch ref.ats {
	case "greenhouse":
		return l.fetchGreenhouse(ctx, ref)
	case "lever":
		return l.fetchLever(ctx, ref)
	default:
		return l.fetchAshby(ctx, ref)
	}
}

// greenhouseJob represents a single job in the Greenhouse job API response.
type greenhouseJob struct {
	Title       string `json:"title"`
	Content     string `json:"content"` // HTML, entity-encoded
	AbsoluteURL string `json:"absolute_url"`
	CompanyName string `json:"company_name"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
}

func (l *Loader) fetchGreenhouse(ctx context.Context, ref atsRef) (Posting, error) {
	apiURL := fmt.Sprintf("%s/%s/jobs/%s", greenhouseBaseURL, url.PathEscape(ref.board), url.PathEscape(ref.id))

	var gj greenhouseJob
	if err := l.getJSON(ctx, apiURL, &gj); err != nil {
		return Posting{}, fmt.Errorf("greenhouse fetch for %s/%s: %w", ref.board, ref.id, err)
	}

	// Greenhouse double-encodes the description; unescape before parsing.
	text, err := ExtractMainText(html.UnescapeString(gj.Content))
	if err != nil {
		return Posting{}, fmt.Errorf("greenhouse fetch for %s/%s: %w", ref.board, ref.id, err)
	}

	return Posting{
		Title:    gj.Title,
		Company:  firstNonEmpty(gj.CompanyName, ref.board),
		Location: gj.Location.Name,
		URL:      firstNonEmpty(gj.AbsoluteURL, ref.url),
		Source:   "greenhouse",
		Text:     withTitle(gj.Title, text),
	}, nil
}

// leverJob represents a single posting in the Lever API response.
type leverJob struct {
	Text             string `json:"text"`
	DescriptionPlain string `json:"descriptionPlain"`
	AdditionalPlain  string `json:"additionalPlain"`
	HostedURL        string `json:"hostedUrl"`
	Categories       struct {
		Location string `json:"location"`
	} `json:"categories"`
	Lists []struct {
		Text    string `json:"text"`
		Content string `json:"content"` // HTML list items
	} `json:"lists"`
}

func (l *Loader) fetchLever(ctx context.Context, ref atsRef) (Posting, error) {
	apiURL := fmt.Sprintf("%s/%s/%s?mode=json", leverBaseURL, url.PathEscape(ref.board), url.PathEscape(ref.id))

	var lj leverJob
	if err := l.getJSON(ctx, apiURL, &lj); err != nil {
		return Posting{}, fmt.Errorf("lever fetch for %s/%s: %w", ref.board, ref.id, err)
	}

	sections := []string{lj.DescriptionPlain}
	for _, list := range lj.Lists {
		items, err := ExtractMainText("<ul>" + list.Content + "</ul>")
		if err != nil {
			return Posting{}, fmt.Errorf("lever fetch for %s/%s: %w", ref.board, ref.id, err)
		}
		sections = append(sections, list.Text+"\n"+items)
	}
	sections = append(sections, lj.AdditionalPlain)

	return Posting{
		Title:    lj.Text,
		Company:  ref.board,
		Location: lj.Categories.Location,
		URL:      firstNonEmpty(lj.HostedURL, ref.url),
		Source:   "lever",
		Text:     withTitle(lj.Text, joinSections(sections)),
	}, nil
}

// ashbyJob represents a single job in the Ashby job board API response.
type ashbyJob struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	JobURL           string `json:"jobUrl"`
	DescriptionPlain string `json:"descriptionPlain"`
	DescriptionHTML  string `json:"descriptionHtml"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

func (l *Loader) fetchAshby(ctx context.Context, ref atsRef) (Posting, error) {
	apiURL := fmt.Sprintf("%s/%s", ashbyBaseURL, url.PathEscape(ref.board))

	var resp ashbyResponse
	if err := l.getJSON(ctx, apiURL, &resp); err != nil {
		return Posting{}, fmt.Errorf("ashby fetch for %s: %w", ref.board, err)
	}

	for _, aj := range resp.Jobs {
		if aj.ID != ref.id && !strings.HasSuffix(aj.JobURL, "/"+ref.id) {
			continue
		}
		text := aj.DescriptionPlain
		if text == "" && aj.DescriptionHTML != "" {
			extracted, err := ExtractMainText(aj.DescriptionHTML)
			if err != nil {
				return Posting{}, fmt.Errorf("ashby fetch for %s: %w", ref.board, err)
			}
			text = extracted
		}
		return Posting{
			Title:    aj.Title,
			Company:  ref.board,
			Location: aj.Location,
			URL:      firstNonEmpty(aj.JobURL, ref.url),
			Source:   "ashby",
			Text:     withTitle(aj.Title, text),
		}, nil
	}
	return Posting{}, fmt.Errorf("ashby fetch for %s: posting %s not found", ref.board, ref.id)
}

func (l *Loader) getJSON(ctx context.Context, apiURL string, v any) error {
	body, err := l.get(ctx, apiURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", apiURL, err)
	}
	return nil
}

func withTitle(title, text string) string {
	if title == "" || strings.TrimSpace(text) == "" {
		return text
	}
	return title + "\n\n" + text
}

func joinSections(sections []string) string {
	var out []string
	for _, s := range sections {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
