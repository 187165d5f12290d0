// Package agent drives conversational turns against the Anthropic API,
// routing the model's tool calls to the command orchestrator.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/tracklane/tracklane/internal/commands"
	"github.com/tracklane/tracklane/internal/config"
	"github.com/tracklane/tracklane/internal/resolver"
	"github.com/tracklane/tracklane/internal/session"
	"github.com/tracklane/tracklane/internal/telemetry"
	"github.com/tracklane/tracklane/internal/types"
)

const maxResponseTokens = 2048

// errAPIKeyRequired is returned when an API key is needed but not provided.
var errAPIKeyRequired = errors.New("API key required")

// messagesAPI is the slice of the Anthropic client the agent calls. The
// concrete client's message service satisfies it; tests substitute a
// scripted implementation to drive the tool loop.
type messagesAPI interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Agent executes one conversational turn at a time: it assembles the team
// context into a system prompt, streams the transcript to the model, and
// dispatches tool calls sequentially until the model stops or the step
// bound is hit.
type Agent struct {
	messages    messagesAPI
	model       anthropic.Model
	orch        *commands.Orchestrator
	sessions    *session.Manager
	maxSteps    int
	turnTimeout time.Duration
	log         *slog.Logger
}

// New creates an agent. Env var ANTHROPIC_API_KEY takes precedence over the
// configured key.
func New(cfg *config.Config, orch *commands.Orchestrator, sessions *session.Manager, log *slog.Logger) (*Agent, error) {
	apiKey := cfg.AnthropicAPIKey
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.api_key in config", errAPIKeyRequired)
	}
	if log == nil {
		log = slog.Default()
	}

	aiMetricsOnce.Do(initAIMetrics)

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Agent{
		messages:    &client.Messages,
		model:       anthropic.Model(cfg.AnthropicModel),
		orch:        orch,
		sessions:    sessions,
		maxSteps:    cfg.AgentMaxSteps,
		turnTimeout: cfg.AgentTurnTimeout,
		log:         log,
	}, nil
}

// TurnResult is what a completed turn hands back to the caller.
type TurnResult struct {
	SessionID string                 `json:"session_id"`
	Reply     string                 `json:"reply"`
	ToolCalls []types.ToolCallRecord `json:"tool_calls,omitempty"`
	Steps     int                    `json:"steps"`
}

// Turn runs one user message through the model. Tool invocations execute
// sequentially; after maxSteps of them the turn is forced to terminate with
// whatever has been produced so far. The whole turn runs under the
// configured wall-clock ceiling.
func (a *Agent) Turn(ctx context.Context, actor commands.Actor, teamID, sessionID, userMessage string) (*TurnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.turnTimeout)
	defer cancel()

	s, err := a.sessions.Begin(ctx, teamID, actor.UserID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	tc, err := resolver.LoadTeamContext(ctx, a.orch.Store(), teamID)
	if err != nil {
		return nil, fmt.Errorf("loading team context: %w", err)
	}

	history := transcriptToParams(s.Messages)
	a.sessions.AppendUser(s, userMessage)
	history = append(history, anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)))

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxResponseTokens,
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt(tc)}},
		Messages:  history,
		Tools:     toolParams(),
	}

	result := &TurnResult{SessionID: s.ID}
	steps := 0

	for {
		message, err := a.callWithRetry(ctx, params)
		if err != nil {
			return nil, err
		}

		var toolUses []anthropic.ToolUseBlock
		for _, block := range message.Content {
			switch v := block.AsAny().(type) {
			case anthropic.TextBlock:
				if result.Reply != "" {
					result.Reply += "\n"
				}
				result.Reply += v.Text
			case anthropic.ToolUseBlock:
				toolUses = append(toolUses, v)
			}
		}

		if message.StopReason != anthropic.StopReasonToolUse || len(toolUses) == 0 {
			break
		}
		if steps >= a.maxSteps {
			a.log.Warn("agent step bound reached", "session_id", s.ID, "steps", steps)
			break
		}

		params.Messages = append(params.Messages, message.ToParam())

		var resultBlocks []anthropic.ContentBlockParamUnion
		for _, use := range toolUses {
			if steps >= a.maxSteps {
				resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(
					use.ID, "tool budget for this turn is exhausted", true))
				continue
			}
			steps++

			input := json.RawMessage(use.JSON.Input.Raw())
			res := a.orch.Dispatch(ctx, actor, teamID, use.Name, input)

			record := types.ToolCallRecord{Name: use.Name, Input: input}
			payload, merr := json.Marshal(res)
			if merr != nil {
				payload = []byte(`{"success":false}`)
			}
			if res.Success {
				record.Result = res.Message
			} else {
				record.Error = res.Error.Message
			}
			result.ToolCalls = append(result.ToolCalls, record)
			a.sessions.AppendToolCall(s, record)

			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(
				use.ID, string(payload), !res.Success))
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(resultBlocks...))
	}

	result.Steps = steps
	a.sessions.AppendAssistant(s, result.Reply)

	// Persist after the reply exists; a save failure is logged inside
	// Persist and never fails the turn. Detached from the turn deadline.
	a.sessions.Persist(context.WithoutCancel(ctx), s)

	return result, nil
}

// transcriptToParams replays stored user/assistant messages for the model.
// Tool messages are display records, not part of the model conversation.
func transcriptToParams(messages []types.Message) []anthropic.MessageParam {
	var params []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleUser:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case types.RoleAssistant:
			if msg.Content != "" {
				params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	return params
}

// toolParams converts the catalogue into Anthropic tool definitions.
func toolParams() []anthropic.ToolUnionParam {
	catalogue := commands.Tools()
	params := make([]anthropic.ToolUnionParam, 0, len(catalogue))
	for _, t := range catalogue {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.Properties,
				Required:   t.Required,
			},
		}
		params = append(params, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return params
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/tracklane/tracklane/ai")
	aiMetrics.inputTokens, _ = m.Int64Counter("tracklane.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("tracklane.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("tracklane.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func (a *Agent) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	tracer := telemetry.Tracer("github.com/tracklane/tracklane/ai")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(attribute.String("tracklane.ai.model", string(a.model)))

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
		backoff.WithMaxElapsedTime(a.turnTimeout),
	), ctx)

	attempts := 0
	message, err := backoff.RetryWithData(func() (*anthropic.Message, error) {
		attempts++
		t0 := time.Now()
		message, err := a.messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err != nil {
			if !isRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		modelAttr := attribute.String("tracklane.ai.model", string(a.model))
		if aiMetrics.inputTokens != nil {
			aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
		}
		return message, nil
	}, policy)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("anthropic call failed after %d attempts: %w", attempts, err)
	}
	span.SetAttributes(
		attribute.Int64("tracklane.ai.input_tokens", message.Usage.InputTokens),
		attribute.Int64("tracklane.ai.output_tokens", message.Usage.OutputTokens),
		attribute.Int("tracklane.ai.attempts", attempts),
	)
	return message, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}
