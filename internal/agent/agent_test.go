package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tracklane/tracklane/internal/commands"
	"github.com/tracklane/tracklane/internal/session"
	"github.com/tracklane/tracklane/internal/storage/memory"
	"github.com/tracklane/tracklane/internal/types"
)

// scriptedMessages feeds pre-baked API responses to the tool loop and
// records every request it receives.
type scriptedMessages struct {
	responses []string
	requests  []anthropic.MessageNewParams
}

func (s *scriptedMessages) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	s.requests = append(s.requests, params)
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("unexpected request %d", len(s.requests))
	}
	raw := s.responses[0]
	s.responses = s.responses[1:]

	var msg anthropic.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func modelResponse(stopReason string, blocks ...string) string {
	return fmt.Sprintf(
		`{"id":"msg_test","type":"message","role":"assistant","model":"claude-test","content":[%s],"stop_reason":%q,"usage":{"input_tokens":10,"output_tokens":5}}`,
		strings.Join(blocks, ","), stopReason)
}

func toolUseBlock(id string) string {
	return fmt.Sprintf(`{"type":"tool_use","id":%q,"name":"getTeamStats","input":{}}`, id)
}

func textBlock(text string) string {
	return fmt.Sprintf(`{"type":"text","text":%q}`, text)
}

var testActor = commands.Actor{UserID: "user-1", DisplayName: "Ada Lovelace", Email: "ada@example.com"}

func newTestAgent(t *testing.T, script *scriptedMessages, maxSteps int) (*Agent, string) {
	t.Helper()

	store := memory.New()
	orch := commands.New(store)
	res := orch.CreateTeam(context.Background(), testActor, commands.CreateTeamInput{Name: "Web", Key: "WEB"})
	if !res.Success {
		t.Fatalf("CreateTeam failed: %+v", res.Error)
	}
	team := res.Entity.(*types.Team)

	a := &Agent{
		messages:    script,
		model:       "claude-test",
		orch:        orch,
		sessions:    session.NewManager(store, slog.Default()),
		maxSteps:    maxSteps,
		turnTimeout: 5 * time.Second,
		log:         slog.Default(),
	}
	return a, team.ID
}

func TestTurnRecordsReplyAndPersistsSession(t *testing.T) {
	script := &scriptedMessages{responses: []string{
		modelResponse("end_turn", textBlock("Hello there.")),
	}}
	a, teamID := newTestAgent(t, script, 5)

	result, err := a.Turn(context.Background(), testActor, teamID, "", "hi")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if result.Reply != "Hello there." {
		t.Fatalf("expected reply, got %q", result.Reply)
	}
	if result.Steps != 0 {
		t.Fatalf("expected 0 steps, got %d", result.Steps)
	}

	s, err := a.sessions.Get(context.Background(), teamID, testActor.UserID, result.SessionID)
	if err != nil {
		t.Fatalf("loading persisted session: %v", err)
	}
	if len(s.Messages) != 2 {
		t.Fatalf("expected user+assistant transcript, got %d messages", len(s.Messages))
	}
}

func TestTurnStopsAtStepBound(t *testing.T) {
	// The model keeps asking for one more tool call; after maxSteps of
	// them the loop must terminate without dispatching the extra call.
	script := &scriptedMessages{responses: []string{
		modelResponse("tool_use", toolUseBlock("tu_1")),
		modelResponse("tool_use", toolUseBlock("tu_2")),
		modelResponse("tool_use", toolUseBlock("tu_3")),
	}}
	a, teamID := newTestAgent(t, script, 2)

	result, err := a.Turn(context.Background(), testActor, teamID, "", "stats please")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if result.Steps != 2 {
		t.Fatalf("expected exactly 2 steps, got %d", result.Steps)
	}
	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected 2 dispatched tool calls, got %d", len(result.ToolCalls))
	}
	for _, call := range result.ToolCalls {
		if call.Name != "getTeamStats" || call.Error != "" {
			t.Fatalf("unexpected tool call record %+v", call)
		}
	}
	// The third response's tool_use must never reach the API again.
	if len(script.requests) != 3 {
		t.Fatalf("expected 3 API requests, got %d", len(script.requests))
	}
}

func TestTurnBudgetExhaustedMidBatch(t *testing.T) {
	// One response carries more tool calls than the remaining budget. The
	// overflow calls get error tool_results instead of being dispatched,
	// so the continuation request stays well formed.
	script := &scriptedMessages{responses: []string{
		modelResponse("tool_use", toolUseBlock("tu_1"), toolUseBlock("tu_2"), toolUseBlock("tu_3")),
		modelResponse("end_turn", textBlock("done")),
	}}
	a, teamID := newTestAgent(t, script, 2)

	result, err := a.Turn(context.Background(), testActor, teamID, "", "stats please")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if result.Steps != 2 {
		t.Fatalf("expected 2 steps, got %d", result.Steps)
	}
	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected 2 dispatched tool calls, got %d", len(result.ToolCalls))
	}
	if result.Reply != "done" {
		t.Fatalf("expected final reply, got %q", result.Reply)
	}
	if len(script.requests) != 2 {
		t.Fatalf("expected 2 API requests, got %d", len(script.requests))
	}

	// The continuation request must answer all three tool_use ids, the
	// overflow one as an error.
	msgs := script.requests[1].Messages
	blocks := msgs[len(msgs)-1].Content
	if len(blocks) != 3 {
		t.Fatalf("expected 3 tool_result blocks, got %d", len(blocks))
	}
	overflow := blocks[2].OfToolResult
	if overflow == nil {
		t.Fatalf("expected a tool_result block, got %+v", blocks[2])
	}
	if overflow.ToolUseID != "tu_3" {
		t.Fatalf("expected tool_result for tu_3, got %q", overflow.ToolUseID)
	}
	if !overflow.IsError.Value {
		t.Fatalf("expected overflow tool_result to be an error")
	}
	if text := overflow.Content[0].OfText.Text; !strings.Contains(text, "exhausted") {
		t.Fatalf("unexpected overflow tool_result content %q", text)
	}
}
