package agent

import (
	"context"
	"errors"

	"github.com/flemzord/chatd/internal/provider"
)

// ErrMaxRoundsReached is returned when the loop hits its round cap
// without producing a final answer.
var ErrMaxRoundsReached = errors.New("agent: max rounds reached")

// policyRefusal is the canned answer when the model twice declines to
// call a required tool. An unverified answer is never emitted instead.
const policyRefusal = "I can't answer that without looking it up, and the lookup didn't happen. " +
	"Please ask again in a moment."

// Loop drives the model/tool conversation until a final answer, a policy
// refusal, or a bound is hit.
type Loop struct {
	provider provider.Provider
	executor *ToolExecutor
	config   Config
}

// NewLoop creates a Loop with the given provider, executor, and config.
func NewLoop(p provider.Provider, executor *ToolExecutor, cfg Config) *Loop {
	return &Loop{
		provider: p,
		executor: executor,
		config:   cfg.withDefaults(),
	}
}

// buildInitialMessages assembles the initial message history from the request.
func buildInitialMessages(req Request) []provider.LLMMessage {
	var messages []provider.LLMMessage
	if req.SystemPrompt != "" {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	return append(messages, req.Messages...)
}

// appendAssistantTurn adds the assistant message carrying the tool calls,
// followed by one tool message per result.
func appendAssistantTurn(messages []provider.LLMMessage, content string, records []ToolCallRecord) []provider.LLMMessage {
	calls := make([]provider.ToolCall, len(records))
	for i, rec := range records {
		calls[i] = provider.ToolCall{ID: rec.ID, Name: rec.Name, Arguments: rec.Arguments}
	}
	messages = append(messages, provider.LLMMessage{
		Role:      provider.MessageRoleAssistant,
		Content:   content,
		ToolCalls: calls,
	})
	for _, rec := range records {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleTool,
			Content: rec.Output.Content,
			ToolID:  rec.ID,
		})
	}
	return messages
}

// stopReasonForContext maps a context error to a stop reason.
func stopReasonForContext(err error) StopReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return StopReasonTimeout
	}
	return StopReasonCancelled
}

// Run executes the loop synchronously and returns the final response.
//
// A context.WithTimeout is applied using l.config.Timeout. If the caller's
// context already carries a shorter deadline, the shorter one takes effect.
func (l *Loop) Run(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	messages := buildInitialMessages(req)

	// requireSatisfied flips once the named tool has actually executed.
	requireSatisfied := req.RequireTool == ""
	forcedRetryUsed := false
	forceNext := false

	var (
		usage        provider.TokenUsage
		allToolCalls []ToolCallRecord
	)

	for round := 0; round < l.config.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return Response{
				ToolCalls:  allToolCalls,
				Usage:      usage,
				Rounds:     round,
				StopReason: stopReasonForContext(err),
			}, err
		}

		creq := provider.CompletionRequest{
			Messages: messages,
			Tools:    req.Tools,
		}
		if forceNext {
			creq.ToolChoice = req.RequireTool
			forceNext = false
		}

		resp, err := l.provider.Complete(ctx, creq)
		if err != nil {
			return Response{
				ToolCalls:  allToolCalls,
				Usage:      usage,
				Rounds:     round,
				StopReason: StopReasonError,
			}, err
		}

		usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			if requireSatisfied {
				return Response{
					Content:    resp.Content,
					ToolCalls:  allToolCalls,
					Usage:      usage,
					Rounds:     round + 1,
					StopReason: StopReasonComplete,
				}, nil
			}

			// The model answered without the required tool. Discard the
			// unverified answer and force the call once; refuse after that.
			if !forcedRetryUsed {
				forcedRetryUsed = true
				forceNext = true
				continue
			}
			return Response{
				Content:    policyRefusal,
				ToolCalls:  allToolCalls,
				Usage:      usage,
				Rounds:     round + 1,
				StopReason: StopReasonPolicyRefused,
			}, nil
		}

		records := l.executor.Execute(ctx, resp.ToolCalls)
		allToolCalls = append(allToolCalls, records...)

		for _, rec := range records {
			if rec.Name == req.RequireTool {
				requireSatisfied = true
			}
		}

		messages = appendAssistantTurn(messages, resp.Content, records)
	}

	return Response{
		ToolCalls:  allToolCalls,
		Usage:      usage,
		Rounds:     l.config.MaxRounds,
		StopReason: StopReasonMaxRounds,
	}, ErrMaxRoundsReached
}

// RunStream executes the loop and streams events over a channel.
//
// While a required tool is outstanding the loop runs non-streaming rounds
// and buffers output, so nothing unverified reaches the client. Streamed
// rounds buffer their deltas too: a round that ends in tool calls carries
// preamble text that belongs to the conversation, not the client. Only
// the final answer is emitted as text deltas.
func (l *Loop) RunStream(ctx context.Context, req Request) (<-chan Event, error) {
	ch := make(chan Event, 16)

	go func() {
		defer close(ch)

		ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
		defer cancel()

		messages := buildInitialMessages(req)

		requireSatisfied := req.RequireTool == ""
		forcedRetryUsed := false
		forceNext := false

		var (
			usage        provider.TokenUsage
			allToolCalls []ToolCallRecord
		)

		for round := 0; round < l.config.MaxRounds; round++ {
			if err := ctx.Err(); err != nil {
				ch <- Event{Type: EventError, Err: err}
				return
			}

			var (
				content   string
				deltas    []string
				toolCalls []provider.ToolCall
			)

			if requireSatisfied {
				streamed, err := l.streamRound(ctx, ch, messages, req.Tools, &usage)
				if err != nil {
					ch <- Event{Type: EventError, Err: err}
					return
				}
				content, deltas, toolCalls = streamed.content, streamed.deltas, streamed.toolCalls
			} else {
				creq := provider.CompletionRequest{
					Messages: messages,
					Tools:    req.Tools,
				}
				if forceNext {
					creq.ToolChoice = req.RequireTool
					forceNext = false
				}
				resp, err := l.provider.Complete(ctx, creq)
				if err != nil {
					ch <- Event{Type: EventError, Err: err}
					return
				}
				usage.Add(resp.Usage)
				content, toolCalls = resp.Content, resp.ToolCalls
			}

			if len(toolCalls) == 0 {
				if requireSatisfied {
					// The round is final; release the buffered deltas.
					for _, d := range deltas {
						ch <- Event{Type: EventText, Delta: d}
					}
					ch <- Event{Type: EventDone, Final: &Response{
						Content:    content,
						ToolCalls:  allToolCalls,
						Usage:      usage,
						Rounds:     round + 1,
						StopReason: StopReasonComplete,
					}}
					return
				}

				if !forcedRetryUsed {
					forcedRetryUsed = true
					forceNext = true
					continue
				}

				ch <- Event{Type: EventText, Delta: policyRefusal}
				ch <- Event{Type: EventDone, Final: &Response{
					Content:    policyRefusal,
					ToolCalls:  allToolCalls,
					Usage:      usage,
					Rounds:     round + 1,
					StopReason: StopReasonPolicyRefused,
				}}
				return
			}

			for _, tc := range toolCalls {
				ch <- Event{
					Type:     EventToolStart,
					ToolCall: &ToolCallRecord{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments},
				}
			}

			records := l.executor.Execute(ctx, toolCalls)
			allToolCalls = append(allToolCalls, records...)

			for idx := range records {
				if records[idx].Name == req.RequireTool {
					requireSatisfied = true
				}
				ch <- Event{Type: EventToolEnd, ToolCall: &records[idx]}
			}

			messages = appendAssistantTurn(messages, content, records)
		}

		ch <- Event{Type: EventError, Err: ErrMaxRoundsReached}
	}()

	return ch, nil
}

type streamedRound struct {
	content   string
	deltas    []string
	toolCalls []provider.ToolCall
}

// streamRound runs one streaming backend call, buffering text deltas and
// forwarding usage to ch. Deltas are not emitted here: whether the round's
// text may reach the client is only known once the stream has ended
// without tool calls, and the caller decides that.
func (l *Loop) streamRound(
	ctx context.Context,
	ch chan<- Event,
	messages []provider.LLMMessage,
	tools []provider.ToolDefinition,
	usage *provider.TokenUsage,
) (streamedRound, error) {
	streamCh, err := l.provider.Stream(ctx, provider.CompletionRequest{
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return streamedRound{}, err
	}

	var out streamedRound
	var streamErr error

	for chunk := range streamCh {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		if chunk.Content != "" {
			out.content += chunk.Content
			out.deltas = append(out.deltas, chunk.Content)
		}
		if len(chunk.ToolCalls) > 0 {
			out.toolCalls = append(out.toolCalls, chunk.ToolCalls...)
		}
		if chunk.Usage != nil {
			usage.Add(*chunk.Usage)
			ch <- Event{Type: EventUsage, Usage: chunk.Usage}
		}
	}

	// Drain remaining chunks to prevent provider goroutine leak.
	if streamErr != nil {
		for range streamCh {
		}
		return streamedRound{}, streamErr
	}

	return out, nil
}
