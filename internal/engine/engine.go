// Package engine orchestrates a chat request end to end: safety gating,
// rate limiting, per-conversation serialisation, context assembly, the
// model/tool loop, durable memory commits, and metrics. Every request
// produces exactly one metrics record, whatever its outcome.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/chatd/internal/agent"
	"github.com/flemzord/chatd/internal/memory"
	"github.com/flemzord/chatd/internal/metrics"
	"github.com/flemzord/chatd/internal/provider"
	"github.com/flemzord/chatd/internal/safety"
	"github.com/flemzord/chatd/internal/security"
	"github.com/flemzord/chatd/internal/tool"
)

// DefaultSystemPrompt steers the model toward tools over guessing.
const DefaultSystemPrompt = "You are a task-oriented assistant.\n" +
	"Use tools when they help, and don't guess if a tool can answer.\n" +
	"Tools:\n" +
	"- Weather questions -> get_weather\n" +
	"- Office hours / grading policy / rubric / percentages -> kb_search\n" +
	"- If user provides scores -> calculate_grade\n" +
	"- Live facts / current roles -> web_lookup\n" +
	"If the user asks for a calculation, finish it and include the final value.\n" +
	"If a request is unsafe, refuse briefly."

// Config holds engine tuning.
type Config struct {
	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string

	// PromptPricePerM and CompletionPricePerM are USD prices per million
	// tokens. Cost is only reported when at least one is set.
	PromptPricePerM     float64
	CompletionPricePerM float64
}

// Deps are the engine's collaborators.
type Deps struct {
	Loop       *agent.Loop
	Registry   *tool.Registry
	Limiter    *security.RateLimiter
	History    memory.HistoryStore
	Facts      memory.FactStore
	Sink       *metrics.Sink
	Collectors *metrics.Collectors
	Logger     *slog.Logger
	Tracer     trace.Tracer
}

// Engine handles chat requests.
type Engine struct {
	loop       *agent.Loop
	registry   *tool.Registry
	limiter    *security.RateLimiter
	history    memory.HistoryStore
	facts      memory.FactStore
	sink       *metrics.Sink
	collectors *metrics.Collectors
	lanes      *LaneLock
	logger     *slog.Logger
	tracer     trace.Tracer
	config     Config
}

// Request is one inbound chat message.
type Request struct {
	ConversationID string
	ClientKey      string
	UserMessage    string
}

// Event augments the loop's event stream with request-level metadata.
// FactsUsed and CostUSD are populated on the final (EventDone) event.
type Event struct {
	agent.Event
	FactsUsed []string
	CostUSD   *float64
}

// New creates an Engine.
func New(deps Deps, cfg Config) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/flemzord/chatd/internal/engine")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Engine{
		loop:       deps.Loop,
		registry:   deps.Registry,
		limiter:    deps.Limiter,
		history:    deps.History,
		facts:      deps.Facts,
		sink:       deps.Sink,
		collectors: deps.Collectors,
		lanes:      NewLaneLock(),
		logger:     deps.Logger,
		tracer:     deps.Tracer,
		config:     cfg,
	}
}

// Handle processes a chat request and returns its event stream.
//
// Gate order is fixed: safety first, then the rate limiter, then the
// conversation lane. A refused message is answered with a canned stream
// and costs no rate limit budget. A guess-without-tools message proceeds
// but must verify its answer through the tool its category names; when no
// tool fits it is answered with the canned redirect. Rate-limited and
// busy requests return security.ErrRateLimited and ErrConversationBusy
// respectively.
func (e *Engine) Handle(ctx context.Context, req Request) (<-chan Event, error) {
	start := time.Now()

	verdict := safety.Classify(req.UserMessage)
	if verdict.Refused() {
		e.logger.Info("request refused",
			slog.String("conversation_id", req.ConversationID),
			slog.String("category", string(verdict.Category)))
		e.emit(req.ConversationID, metrics.OutcomeRefused, start, nil, provider.TokenUsage{}, nil)
		return cannedStream(safety.ResponseFor(verdict.Category)), nil
	}

	msg := safety.RedactSecrets(req.UserMessage)

	required := chooseRequiredTool(msg)
	if required != "" && !e.registry.Has(required) {
		required = ""
	}
	if verdict.Redirected() && required == "" {
		// Nothing can verify the claim, so redirect instead of guessing.
		e.logger.Info("request redirected",
			slog.String("conversation_id", req.ConversationID),
			slog.String("category", string(verdict.Category)))
		e.emit(req.ConversationID, metrics.OutcomeRefused, start, nil, provider.TokenUsage{}, nil)
		return cannedStream(safety.ResponseFor(verdict.Category)), nil
	}

	if err := e.limiter.Allow(req.ClientKey); err != nil {
		e.emit(req.ConversationID, metrics.OutcomeRateLimited, start, nil, provider.TokenUsage{}, nil)
		return nil, err
	}

	if err := e.lanes.TryAcquire(req.ConversationID); err != nil {
		e.emit(req.ConversationID, metrics.OutcomeBusy, start, nil, provider.TokenUsage{}, nil)
		return nil, err
	}

	out := make(chan Event, 16)
	go e.run(ctx, req, msg, required, start, out)
	return out, nil
}

// run executes the model/tool loop and finalises the request. It owns the
// lane for the duration and is the only place that commits memory.
func (e *Engine) run(ctx context.Context, req Request, msg, required string, start time.Time, out chan<- Event) {
	defer close(out)
	defer e.lanes.Release(req.ConversationID)

	ctx, span := e.tracer.Start(ctx, "chat.request", trace.WithAttributes(
		attribute.String("conversation.id", req.ConversationID),
	))
	defer span.End()

	systemPrompt := e.config.SystemPrompt
	var factsUsed []string
	if facts, err := e.facts.Read(ctx, req.ConversationID); err != nil {
		e.logger.Warn("fact read failed",
			slog.String("conversation_id", req.ConversationID),
			slog.Any("error", err))
	} else if section, used := memory.RelevantFacts(facts, msg); section != "" {
		systemPrompt += "\n\n" + section
		factsUsed = used
	}

	userTurn := provider.LLMMessage{Role: provider.MessageRoleUser, Content: msg}
	messages := append(e.history.Recent(req.ConversationID), userTurn)

	events, err := e.loop.RunStream(ctx, agent.Request{
		Messages:     messages,
		SystemPrompt: systemPrompt,
		Tools:        e.registry.Definitions(),
		RequireTool:  required,
	})
	if err != nil {
		out <- Event{Event: agent.Event{Type: agent.EventError, Err: err}}
		span.SetStatus(codes.Error, err.Error())
		e.emit(req.ConversationID, metrics.OutcomeFailed, start, nil, provider.TokenUsage{}, factsUsed)
		return
	}

	var (
		toolNames []string
		final     *agent.Response
		loopErr   error
	)
	for ev := range events {
		wrapped := Event{Event: ev}
		switch ev.Type {
		case agent.EventToolEnd:
			if ev.ToolCall != nil {
				toolNames = append(toolNames, ev.ToolCall.Name)
			}
		case agent.EventDone:
			final = ev.Final
			if final != nil {
				wrapped.FactsUsed = factsUsed
				wrapped.CostUSD = e.cost(final.Usage)
			}
		case agent.EventError:
			loopErr = ev.Err
		}
		out <- wrapped
	}

	switch {
	case final != nil:
		e.commit(ctx, req.ConversationID, userTurn, final.Content, msg)
		span.SetAttributes(
			attribute.Int("tokens.total", final.Usage.TotalTokens),
			attribute.String("chat.outcome", string(metrics.OutcomeCompleted)),
		)
		e.emit(req.ConversationID, metrics.OutcomeCompleted, start, toolNames, final.Usage, factsUsed)

	case errors.Is(loopErr, context.Canceled):
		// Client went away mid-flight. Nothing is committed.
		span.SetAttributes(attribute.String("chat.outcome", string(metrics.OutcomeCancelled)))
		span.SetStatus(codes.Error, "cancelled")
		e.emit(req.ConversationID, metrics.OutcomeCancelled, start, toolNames, provider.TokenUsage{}, factsUsed)

	default:
		// The user turn is kept so the conversation can be retried with
		// context; no assistant turn exists to keep.
		span.SetAttributes(attribute.String("chat.outcome", string(metrics.OutcomeFailed)))
		e.history.Append(req.ConversationID, userTurn)
		if loopErr != nil {
			e.logger.Error("request failed",
				slog.String("conversation_id", req.ConversationID),
				slog.Any("error", loopErr))
			span.SetStatus(codes.Error, loopErr.Error())
		}
		e.emit(req.ConversationID, metrics.OutcomeFailed, start, toolNames, provider.TokenUsage{}, factsUsed)
	}
}

// commit appends the completed exchange to history and persists any
// explicit memory statements. Persistence survives request cancellation.
func (e *Engine) commit(ctx context.Context, conversationID string, userTurn provider.LLMMessage, answer, msg string) {
	e.history.Append(conversationID, userTurn, provider.LLMMessage{
		Role:    provider.MessageRoleAssistant,
		Content: answer,
	})

	persistCtx := context.WithoutCancel(ctx)
	for _, f := range memory.ExtractFacts(msg) {
		if err := e.facts.Append(persistCtx, conversationID, f.Key, f.Value); err != nil {
			e.logger.Warn("fact append failed",
				slog.String("conversation_id", conversationID),
				slog.String("key", f.Key),
				slog.Any("error", err))
		}
	}
}

// emit writes the single per-request metrics record.
func (e *Engine) emit(conversationID string, outcome metrics.Outcome, start time.Time, toolNames []string, usage provider.TokenUsage, factsUsed []string) {
	rec := metrics.Record{
		ConversationID: conversationID,
		Outcome:        outcome,
		LatencyMS:      time.Since(start).Milliseconds(),
		ToolCalls:      toolNames,
		Usage: metrics.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
		FactsUsed: factsUsed,
	}
	rec.CostUSD = e.cost(usage)
	if e.sink != nil {
		e.sink.Write(rec)
	}
	if e.collectors != nil {
		e.collectors.Observe(rec)
	}
}

// cost prices a request in USD, or nil when no price is configured.
func (e *Engine) cost(usage provider.TokenUsage) *float64 {
	if e.config.PromptPricePerM <= 0 && e.config.CompletionPricePerM <= 0 {
		return nil
	}
	c := float64(usage.PromptTokens)/1e6*e.config.PromptPricePerM +
		float64(usage.CompletionTokens)/1e6*e.config.CompletionPricePerM
	return &c
}

// cannedStream wraps a fixed response in the standard event shape so
// callers treat refusals like any other answer.
func cannedStream(text string) <-chan Event {
	ch := make(chan Event, 2)
	ch <- Event{Event: agent.Event{Type: agent.EventText, Delta: text}}
	ch <- Event{Event: agent.Event{Type: agent.EventDone, Final: &agent.Response{
		Content:    text,
		StopReason: agent.StopReasonComplete,
	}}}
	close(ch)
	return ch
}
