package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/chatd/internal/agent"
	"github.com/flemzord/chatd/internal/engine"
	"github.com/flemzord/chatd/internal/provider"
	"github.com/flemzord/chatd/internal/security"
)

// fakeEngine replays a fixed event sequence or fails with err.
type fakeEngine struct {
	events []engine.Event
	err    error
	last   engine.Request
}

func (f *fakeEngine) Handle(_ context.Context, req engine.Request) (<-chan engine.Event, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan engine.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeStatus struct{}

func (fakeStatus) Model() string   { return "test-model" }
func (fakeStatus) KBSections() int { return 3 }

func newTestServer(t *testing.T, eng ChatEngine, cfg Config) *httptest.Server {
	t.Helper()
	g := New(Deps{
		Engine: eng,
		Status: fakeStatus{},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, cfg)
	g.startedAt = time.Now()
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}

func doneEvents(answer string) []engine.Event {
	return []engine.Event{
		{Event: agent.Event{Type: agent.EventText, Delta: answer[:3]}},
		{Event: agent.Event{Type: agent.EventText, Delta: answer[3:]}},
		{Event: agent.Event{Type: agent.EventDone, Final: &agent.Response{
			Content:    answer,
			Usage:      provider.TokenUsage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
			StopReason: agent.StopReasonComplete,
		}}},
	}
}

func postChat(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestChat_Streaming(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{events: doneEvents("hello there")}
	srv := newTestServer(t, eng, Config{})

	resp := postChat(t, srv.URL+"/chat", `{"conversation_id":"c1","user_message":"hi"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hello there" {
		t.Errorf("body = %q", body)
	}
	if eng.last.ConversationID != "c1" || eng.last.UserMessage != "hi" {
		t.Errorf("request = %+v", eng.last)
	}
	if eng.last.ClientKey == "" {
		t.Error("client key not derived from remote addr")
	}
}

func TestChat_Buffered(t *testing.T) {
	t.Parallel()

	events := []engine.Event{
		{Event: agent.Event{Type: agent.EventToolEnd, ToolCall: &agent.ToolCallRecord{Name: "kb_search"}}},
	}
	events = append(events, doneEvents("the answer")...)
	cost := 0.0021
	events[len(events)-1].CostUSD = &cost
	events[len(events)-1].FactsUsed = []string{"name"}
	srv := newTestServer(t, &fakeEngine{events: events}, Config{})

	resp := postChat(t, srv.URL+"/chat?stream=false", `{"user_message":"what are office hours?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "the answer" {
		t.Errorf("answer = %q", out.Answer)
	}
	if out.ConversationID != "default" {
		t.Errorf("conversation_id = %q, want default fill-in", out.ConversationID)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0] != "kb_search" {
		t.Errorf("tool_calls = %v", out.ToolCalls)
	}
	if out.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", out.Usage)
	}
	if out.CostUSD == nil || *out.CostUSD != 0.0021 {
		t.Errorf("cost_usd = %v", out.CostUSD)
	}
	if len(out.FactsUsed) != 1 || out.FactsUsed[0] != "name" {
		t.Errorf("ltm_facts_used = %v", out.FactsUsed)
	}
}

func TestChat_MessageAlias(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{events: doneEvents("aliased ok")}
	srv := newTestServer(t, eng, Config{})

	resp := postChat(t, srv.URL+"/chat", `{"message":"hi via alias"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "aliased ok" {
		t.Errorf("body = %q", body)
	}
	if eng.last.UserMessage != "hi via alias" {
		t.Errorf("engine got %q", eng.last.UserMessage)
	}
}

func TestChat_StreamErrorMarker(t *testing.T) {
	t.Parallel()

	events := []engine.Event{
		{Event: agent.Event{Type: agent.EventError, Err: agent.ErrMaxRoundsReached}},
	}
	srv := newTestServer(t, &fakeEngine{events: events}, Config{})

	resp := postChat(t, srv.URL+"/chat", `{"user_message":"loop forever"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "[error=unable to complete the request]") {
		t.Errorf("body = %q, want a visible error marker", body)
	}
}

func TestChat_BadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{events: doneEvents("unused!")}, Config{})

	for _, body := range []string{"not json", `{"user_message":""}`, `{"user_message":"   "}`} {
		resp := postChat(t, srv.URL+"/chat", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rate limited", security.ErrRateLimited, http.StatusTooManyRequests},
		{"busy", engine.ErrConversationBusy, http.StatusConflict},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(t, &fakeEngine{err: tt.err}, Config{})
			resp := postChat(t, srv.URL+"/chat", `{"user_message":"hi"}`)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, Config{AuthToken: "secret"})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health must stay public, status = %d", resp.StatusCode)
	}
}

func TestStatus_Auth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, Config{AuthToken: "secret"})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d", resp.StatusCode)
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Model != "test-model" || out.KBSections != 3 {
		t.Errorf("status = %+v", out)
	}
}

func TestStatus_WrongToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{}, Config{AuthToken: "secret"})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWSChat(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeEngine{events: doneEvents("ws reply")}, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	if err := conn.Write(ctx, websocket.MessageText,
		[]byte(`{"conversation_id":"c1","user_message":"hi"}`)); err != nil {
		t.Fatal(err)
	}

	var deltas strings.Builder
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var ev WSEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type == "delta" {
			deltas.WriteString(ev.Delta)
			continue
		}
		if ev.Type == "done" {
			if ev.Answer != "ws reply" {
				t.Errorf("answer = %q", ev.Answer)
			}
			break
		}
		t.Fatalf("unexpected event %+v", ev)
	}
	if deltas.String() != "ws reply" {
		t.Errorf("deltas = %q", deltas.String())
	}
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "10.0.0.1:4242", "", "10.0.0.1"},
		{"forwarded single", "10.0.0.1:4242", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:4242", "203.0.113.7, 10.0.0.2", "203.0.113.7"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/chat", nil)
		r.RemoteAddr = tt.remoteAddr
		if tt.forwarded != "" {
			r.Header.Set("X-Forwarded-For", tt.forwarded)
		}
		if got := clientKey(r); got != tt.want {
			t.Errorf("%s: clientKey = %q, want %q", tt.name, got, tt.want)
		}
	}
}
