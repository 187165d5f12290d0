// Package commands implements the operation catalogue driven by the HTTP
// router and the conversational agent.
//
// Every operation follows the same shape: validate input, resolve fuzzy
// references through internal/resolver, mutate or read the store, and return
// a Result whose Message can be shown to an end user verbatim. Expected
// conditions (bad input, unresolvable references, ambiguity) come back as
// structured failures; only truly unexpected store or provider errors become
// DependencyFailure, logged with a correlation id and surfaced as a generic
// message.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/internal/mail"
	"github.com/tracklane/tracklane/internal/query"
	"github.com/tracklane/tracklane/internal/resolver"
	"github.com/tracklane/tracklane/internal/storage"
)

// MaxAgentSteps caps the number of tool invocations an agent may chain in a
// single conversational turn. The counter is explicit so the cutoff is
// testable and cannot silently regress.
const MaxAgentSteps = 5

// Actor is the authenticated caller, resolved upstream by the request
// router. Operations never authenticate; they trust this tuple.
type Actor struct {
	UserID      string
	DisplayName string
	Email       string
}

// FailureKind classifies operation failures.
type FailureKind string

const (
	FailureValidation   FailureKind = "validation"
	FailureNotFound     FailureKind = "not_found"
	FailureAmbiguous    FailureKind = "ambiguous"
	FailureUnauthorized FailureKind = "unauthorized"
	FailureDependency   FailureKind = "dependency"
)

// Failure carries the structured error half of a Result. Field names the
// offending input field for resolution failures; Candidates is populated
// only when Kind is FailureAmbiguous.
type Failure struct {
	Kind       FailureKind          `json:"kind"`
	Field      string               `json:"field,omitempty"`
	Reference  string               `json:"reference,omitempty"`
	Candidates []resolver.Candidate `json:"candidates,omitempty"`
	Message    string               `json:"message"`
}

// Result is the uniform return value of every catalogue operation. Exactly
// one of Success or Error is meaningful; Message is always present on
// success and suitable for verbatim display.
type Result struct {
	Success bool     `json:"success"`
	Entity  any      `json:"entity,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   *Failure `json:"error,omitempty"`
}

func ok(entity any, format string, args ...any) Result {
	return Result{Success: true, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

func failValidation(format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	return Result{Error: &Failure{Kind: FailureValidation, Message: msg}}
}

func failNotFound(field, reference, format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	return Result{Error: &Failure{
		Kind:      FailureNotFound,
		Field:     field,
		Reference: reference,
		Message:   msg,
	}}
}

func failAmbiguous(field string, res resolver.Resolution) Result {
	return Result{Error: &Failure{
		Kind:       FailureAmbiguous,
		Field:      field,
		Reference:  res.Input,
		Candidates: res.Candidates,
		Message:    fmt.Sprintf("%q matches multiple %ss; specify one by id", res.Input, field),
	}}
}

func failUnauthorized(format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	return Result{Error: &Failure{Kind: FailureUnauthorized, Message: msg}}
}

// failFromResolution maps a non-resolved resolution to the matching failure.
// Callers check Resolved() first; this handles the two remaining branches.
func failFromResolution(field string, res resolver.Resolution) Result {
	if res.Status == resolver.StatusAmbiguous {
		return failAmbiguous(field, res)
	}
	return failNotFound(field, res.Input, "no %s found matching %q", field, res.Input)
}

// Orchestrator executes catalogue operations against a store, a query
// engine, and a mailer.
type Orchestrator struct {
	store  storage.Store
	query  *query.Engine
	mailer mail.Mailer
	log    *slog.Logger

	// Best-effort "team exists" cache. Populated on first successful
	// lookup, never invalidated; team existence is effectively immutable
	// once created.
	mu         sync.Mutex
	knownTeams map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMailer sets the invitation mailer. Defaults to mail.Noop.
func WithMailer(m mail.Mailer) Option {
	return func(o *Orchestrator) { o.mailer = m }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New returns an Orchestrator backed by the given store.
func New(store storage.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		query:      query.New(store),
		mailer:     mail.Noop{},
		log:        slog.Default(),
		knownTeams: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store exposes the underlying store for collaborators that need direct
// access (session manager, team provisioning in the CLI).
func (o *Orchestrator) Store() storage.Store { return o.store }

// Query exposes the read-side engine.
func (o *Orchestrator) Query() *query.Engine { return o.query }

// dependency logs an unexpected lower-layer error with a correlation id and
// returns a generic failure. Internal details never reach the caller.
func (o *Orchestrator) dependency(op string, err error) Result {
	id := uuid.NewString()
	o.log.Error("operation failed", "op", op, "correlation_id", id, "error", err)
	return Result{Error: &Failure{
		Kind:    FailureDependency,
		Message: fmt.Sprintf("Something went wrong. Please try again. (ref %s)", id),
	}}
}

// teamExists consults the cache before hitting the store.
func (o *Orchestrator) teamExists(ctx context.Context, teamID string) (bool, error) {
	o.mu.Lock()
	_, hit := o.knownTeams[teamID]
	o.mu.Unlock()
	if hit {
		return true, nil
	}
	if _, err := o.store.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	o.mu.Lock()
	o.knownTeams[teamID] = struct{}{}
	o.mu.Unlock()
	return true, nil
}

// loadContext assembles the resolver context for a team, mapping a missing
// team to a not-found failure. The bool reports whether the Result is a
// failure the caller should return as-is.
func (o *Orchestrator) loadContext(ctx context.Context, op, teamID string) (*resolver.TeamContext, Result, bool) {
	tc, err := resolver.LoadTeamContext(ctx, o.store, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, failNotFound("team", teamID, "team %q not found", teamID), true
		}
		return nil, o.dependency(op, err), true
	}
	return tc, Result{}, false
}
