package metrics

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSink_WriteJSONL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	sink, err := OpenSink(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	sink.Write(Record{
		ConversationID: "c1",
		Outcome:        OutcomeCompleted,
		LatencyMS:      420,
		ToolCalls:      []string{"get_weather"},
		Usage:          Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	})
	sink.Write(Record{
		ConversationID: "c2",
		Outcome:        OutcomeRefused,
		LatencyMS:      3,
	})
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		records = append(records, rec)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Outcome != OutcomeCompleted || records[0].Usage.TotalTokens != 120 {
		t.Errorf("first record = %+v", records[0])
	}
	if records[0].Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
	if records[1].ToolCalls == nil || len(records[1].ToolCalls) != 0 {
		t.Errorf("nil tool calls should normalise to empty, got %v", records[1].ToolCalls)
	}
}

func TestSink_CreatesParentDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "metrics.jsonl")
	sink, err := OpenSink(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sink.Close() }()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}
}

func TestCollectors_Observe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.Observe(Record{
		Outcome:   OutcomeCompleted,
		LatencyMS: 250,
		ToolCalls: []string{"get_weather", "kb_search", "get_weather"},
		Usage:     Usage{PromptTokens: 50, CompletionTokens: 10},
		Timestamp: time.Now(),
	})
	c.Observe(Record{Outcome: OutcomeRateLimited})

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	counters := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			if c := m.GetCounter(); c != nil {
				counters[key] = c.GetValue()
			}
		}
	}

	if counters["chatd_requests_total{outcome=completed}"] != 1 {
		t.Errorf("completed requests = %v", counters)
	}
	if counters["chatd_requests_total{outcome=rate_limited}"] != 1 {
		t.Errorf("rate limited requests = %v", counters)
	}
	if counters["chatd_tool_calls_total{tool=get_weather}"] != 2 {
		t.Errorf("weather calls = %v", counters)
	}
	if counters["chatd_tokens_total{kind=prompt}"] != 50 {
		t.Errorf("prompt tokens = %v", counters)
	}
}
