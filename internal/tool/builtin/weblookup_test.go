package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flemzord/chatd/internal/tool"
)

func TestWebLookup_President(t *testing.T) {
	t.Parallel()

	usaGov := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
The current president of the United States is Jane Q. Example.
She was sworn into office on January 20, 2025.
</body></html>`))
	}))
	defer usaGov.Close()

	wl := NewWebLookup(WithLookupURLs(usaGov.URL, "http://unused.invalid"))
	out := wl.Execute(context.Background(), json.RawMessage(`{"query":"who is the current president of the United States"}`))
	if out.IsError {
		t.Fatalf("unexpected error: %s", out.Content)
	}

	var res lookupResult
	if err := json.Unmarshal([]byte(out.Content), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Answer, "Jane Q. Example") {
		t.Errorf("answer = %q", res.Answer)
	}
	if !strings.Contains(res.Answer, "January 20, 2025") {
		t.Errorf("answer missing swearing-in date: %q", res.Answer)
	}
	if len(res.Sources) != 1 || res.Sources[0].Title != "USA.gov Presidents" {
		t.Errorf("sources = %+v", res.Sources)
	}
}

func TestWebLookup_President_ParseFailure(t *testing.T) {
	t.Parallel()

	usaGov := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>nothing useful here</body></html>`))
	}))
	defer usaGov.Close()

	wl := NewWebLookup(WithLookupURLs(usaGov.URL, "http://unused.invalid"))
	out := wl.Execute(context.Background(), json.RawMessage(`{"query":"who is the current president of the usa"}`))
	if out.IsError {
		t.Fatalf("unexpected error: %s", out.Content)
	}

	var res lookupResult
	if err := json.Unmarshal([]byte(out.Content), &res); err != nil {
		t.Fatal(err)
	}
	if res.Answer != "" || res.Note == "" {
		t.Errorf("res = %+v, want empty answer with note", res)
	}
}

func TestWebLookup_InstantAnswer(t *testing.T) {
	t.Parallel()

	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q", got)
		}
		_, _ = w.Write([]byte(`{
			"Answer": "",
			"AbstractText": "Gophers are burrowing rodents.",
			"AbstractURL": "https://example.org/gopher",
			"Heading": "Gopher",
			"Results": [],
			"RelatedTopics": [
				{"Text": "Pocket gopher", "FirstURL": "https://example.org/pocket"},
				{"Topics": [{"Text": "Gopher wood", "FirstURL": "https://example.org/wood"}]}
			]
		}`))
	}))
	defer ddg.Close()

	wl := NewWebLookup(WithLookupURLs("http://unused.invalid", ddg.URL))
	out := wl.Execute(context.Background(), json.RawMessage(`{"query":"what is a gopher"}`))
	if out.IsError {
		t.Fatalf("unexpected error: %s", out.Content)
	}

	var res lookupResult
	if err := json.Unmarshal([]byte(out.Content), &res); err != nil {
		t.Fatal(err)
	}
	if res.Answer != "Gophers are burrowing rodents." {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.Sources) != 3 {
		t.Fatalf("sources = %+v, want 3", res.Sources)
	}
	if res.Sources[0].URL != "https://example.org/gopher" {
		t.Errorf("abstract source = %+v", res.Sources[0])
	}
	if res.Sources[2].Title != "Gopher wood" {
		t.Errorf("nested related topic not flattened: %+v", res.Sources)
	}
}

func TestWebLookup_NonJSONFromDDG(t *testing.T) {
	t.Parallel()

	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer ddg.Close()

	wl := NewWebLookup(WithLookupURLs("http://unused.invalid", ddg.URL))
	out := wl.Execute(context.Background(), json.RawMessage(`{"query":"anything"}`))
	if !out.IsError || out.Kind != tool.ErrorKindUnavailable {
		t.Errorf("out = %+v, want unavailable error", out)
	}
}

func TestWebLookup_EmptyResult(t *testing.T) {
	t.Parallel()

	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Answer":"","AbstractText":"","AbstractURL":"","Results":[],"RelatedTopics":[]}`))
	}))
	defer ddg.Close()

	wl := NewWebLookup(WithLookupURLs("http://unused.invalid", ddg.URL))
	out := wl.Execute(context.Background(), json.RawMessage(`{"query":"nothing known"}`))
	if !out.IsError || out.Kind != tool.ErrorKindNotFound {
		t.Errorf("out = %+v, want not_found error", out)
	}
}
