package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/flemzord/chatd/internal/tool"
)

const (
	defaultUSAGovURL = "https://www.usa.gov/presidents"
	defaultDDGURL    = "https://api.duckduckgo.com/"

	// maxLookupBody caps how much HTML or JSON we pull from upstream.
	maxLookupBody = 2 * 1024 * 1024
)

var (
	presidentQuery = regexp.MustCompile(`(?i)\b(current|who is)\b.*\bpresident\b.*\b(united states|usa|u\.s\.)\b`)
	presidentName  = regexp.MustCompile(`(?i)current president of the United States is\s+([A-Z][A-Za-z .'\-]+)\.`)
	swornInDate    = regexp.MustCompile(`(?i)sworn into office on\s+([A-Za-z]+\s+\d{1,2},\s+\d{4})`)
)

// WebLookup answers live-fact queries. Questions about the current US
// president are parsed from USA.gov; everything else goes through the
// DuckDuckGo Instant Answer API.
type WebLookup struct {
	client    *http.Client
	usaGovURL string
	ddgURL    string
}

// WebLookupOption configures a WebLookup tool.
type WebLookupOption func(*WebLookup)

// WithLookupClient overrides the HTTP client.
func WithLookupClient(c *http.Client) WebLookupOption {
	return func(w *WebLookup) { w.client = c }
}

// WithLookupURLs overrides the USA.gov and DuckDuckGo endpoints.
func WithLookupURLs(usaGov, ddg string) WebLookupOption {
	return func(w *WebLookup) {
		w.usaGovURL = usaGov
		w.ddgURL = ddg
	}
}

// NewWebLookup creates the web_lookup tool.
func NewWebLookup(opts ...WebLookupOption) *WebLookup {
	w := &WebLookup{
		client:    &http.Client{Timeout: 15 * time.Second},
		usaGovURL: defaultUSAGovURL,
		ddgURL:    defaultDDGURL,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebLookup) Name() string { return "web_lookup" }

func (w *WebLookup) Description() string {
	return "Look up live facts (special-case US president via USA.gov). Returns answer + sources."
}

func (w *WebLookup) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"]
	}`)
}

type lookupArgs struct {
	Query string `json:"query"`
}

type lookupSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type lookupResult struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer"`
	Sources []lookupSource `json:"sources"`
	Note    string         `json:"note,omitempty"`
}

func (w *WebLookup) Execute(ctx context.Context, args json.RawMessage) tool.Output {
	var in lookupArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return tool.Errorf(tool.ErrorKindInvalidArguments, "invalid arguments: "+err.Error())
	}
	q := strings.TrimSpace(in.Query)
	if q == "" {
		return tool.Errorf(tool.ErrorKindInvalidArguments, "query is required")
	}

	var (
		res lookupResult
		err error
	)
	if presidentQuery.MatchString(q) {
		res, err = w.lookupPresident(ctx)
	} else {
		res, err = w.instantAnswer(ctx, q)
		res.Query = q
	}
	if err != nil {
		return tool.Errorf(tool.ErrorKindUnavailable, err.Error())
	}
	if res.Answer == "" && len(res.Sources) == 0 {
		return tool.Errorf(tool.ErrorKindNotFound, "no results for the query")
	}

	out, _ := json.Marshal(res)
	return tool.Output{Content: string(out)}
}

// lookupPresident parses the current president's name and swearing-in
// date from the USA.gov presidents page.
func (w *WebLookup) lookupPresident(ctx context.Context) (lookupResult, error) {
	body, err := w.get(ctx, w.usaGovURL)
	if err != nil {
		return lookupResult{}, fmt.Errorf("usa.gov lookup failed: %w", err)
	}

	res := lookupResult{
		Query:   "current president of the United States",
		Sources: []lookupSource{{Title: "USA.gov Presidents", URL: defaultUSAGovURL}},
	}

	m := presidentName.FindSubmatch(body)
	if m == nil {
		res.Note = "Could not parse president name from USA.gov."
		return res, nil
	}

	answer := fmt.Sprintf("The current president of the United States is %s.", strings.TrimSpace(string(m[1])))
	if m2 := swornInDate.FindSubmatch(body); m2 != nil {
		answer += fmt.Sprintf(" Sworn into office on %s.", strings.TrimSpace(string(m2[1])))
	}
	res.Answer = answer
	return res, nil
}

type ddgResponse struct {
	Answer        string          `json:"Answer"`
	AbstractText  string          `json:"AbstractText"`
	AbstractURL   string          `json:"AbstractURL"`
	Heading       string          `json:"Heading"`
	Results       []ddgTopic      `json:"Results"`
	RelatedTopics json.RawMessage `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string          `json:"Text"`
	FirstURL string          `json:"FirstURL"`
	Topics   json.RawMessage `json:"Topics"`
}

// instantAnswer queries the DuckDuckGo Instant Answer API and collects
// an answer plus up to five sources.
func (w *WebLookup) instantAnswer(ctx context.Context, query string) (lookupResult, error) {
	q := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"no_redirect":   {"1"},
		"skip_disambig": {"1"},
	}
	body, err := w.get(ctx, w.ddgURL+"?"+q.Encode())
	if err != nil {
		return lookupResult{}, fmt.Errorf("duckduckgo lookup failed: %w", err)
	}

	var data ddgResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return lookupResult{}, errors.New("non-JSON response from duckduckgo")
	}

	var sources []lookupSource
	if data.AbstractURL != "" {
		title := data.Heading
		if title == "" {
			title = "Abstract source"
		}
		sources = append(sources, lookupSource{Title: title, URL: data.AbstractURL})
	}

	for i, item := range data.Results {
		if i >= 3 {
			break
		}
		if item.FirstURL != "" && item.Text != "" {
			sources = append(sources, lookupSource{Title: item.Text, URL: item.FirstURL})
		}
	}

	related := flattenRelated(data.RelatedTopics)
	if len(related) > 3 {
		related = related[:3]
	}
	sources = append(sources, related...)

	if len(sources) > 5 {
		sources = sources[:5]
	}

	answer := strings.TrimSpace(data.Answer)
	if answer == "" {
		answer = strings.TrimSpace(data.AbstractText)
	}

	return lookupResult{
		Answer:  answer,
		Sources: sources,
		Note:    "If answer is empty, use the sources or say you can't verify.",
	}, nil
}

// flattenRelated walks the RelatedTopics tree, which mixes topic objects
// and nested topic groups.
func flattenRelated(raw json.RawMessage) []lookupSource {
	if len(raw) == 0 {
		return nil
	}

	var list []ddgTopic
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []lookupSource
		for _, t := range list {
			if t.FirstURL != "" && t.Text != "" {
				out = append(out, lookupSource{Title: t.Text, URL: t.FirstURL})
			}
			out = append(out, flattenRelated(t.Topics)...)
		}
		return out
	}

	var single ddgTopic
	if err := json.Unmarshal(raw, &single); err == nil {
		var out []lookupSource
		if single.FirstURL != "" && single.Text != "" {
			out = append(out, lookupSource{Title: single.Text, URL: single.FirstURL})
		}
		out = append(out, flattenRelated(single.Topics)...)
		return out
	}

	return nil
}

func (w *WebLookup) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
}
