package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sujithputta02/LifeFlow-AI/internal/jsonrepair"
	"github.com/sujithputta02/LifeFlow-AI/internal/llm"
	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
	"github.com/sujithputta02/LifeFlow-AI/internal/observability"
	"github.com/sujithputta02/LifeFlow-AI/internal/retrieval"
	"github.com/sujithputta02/LifeFlow-AI/internal/workflow"
)

// Outcome records which ladder exit produced a result.
type Outcome string

const (
	OutcomeProvider    Outcome = "provider"
	OutcomeMock        Outcome = "mock"
	OutcomeDemo        Outcome = "demo"
	OutcomePlaceholder Outcome = "placeholder"
	OutcomeHeuristic   Outcome = "heuristic"
)

// Stage is the pipeline stage at which a rung failed.
type Stage string

const (
	StageTransport Stage = "transport"
	StageRepair    Stage = "repair"
	StageSchema    Stage = "schema"
)

type AttemptError struct {
	Provider string
	Stage    Stage
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s %s failure: %v", e.Provider, e.Stage, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the endpoint might answer on a later request.
// Repair and schema failures never are.
func (e *AttemptError) Retryable() bool {
	var transportErr *llm.TransportError
	return e.Stage == StageTransport && errors.As(e.Err, &transportErr) && transportErr.Retryable()
}

type state int

const (
	stateTryProvider state = iota
	stateSuccess
	stateTryMock
)

type Options struct {
	// MockMode skips retrieval and every provider.
	MockMode bool
	// DemoFallback returns the demo workflow instead of the placeholder
	// once every rung has failed.
	DemoFallback   bool
	AttemptTimeout time.Duration
	Rand           workflow.Rand
	// Guidance is extra operator text appended to the generation prompt.
	Guidance string
}

type Request struct {
	Goal     string
	Language string
}

type Result struct {
	Workflow workflow.Workflow
	Provider string
	Outcome  Outcome
	Sources  []retrieval.Source
	Attempts []*AttemptError
}

type VerifyRequest struct {
	StepTitle       string
	StepDescription string
	UserProof       string
}

type VerifyResult struct {
	Verification workflow.Verification
	Provider     string
	Outcome      Outcome
	Attempts     []*AttemptError
}

type Generator struct {
	rungs  []Rung
	finder retrieval.Finder
	opts   Options
	log    *logging.Logger
	tracer trace.Tracer
}

func New(rungs []Rung, finder retrieval.Finder, log *logging.Logger, opts Options) *Generator {
	if log == nil {
		log = logging.Nop()
	}
	if opts.Rand == nil {
		opts.Rand = workflow.DefaultRand()
	}
	return &Generator{
		rungs:  rungs,
		finder: finder,
		opts:   opts,
		log:    log.With("component", "generator"),
		tracer: observability.Tracer(),
	}
}

func (g *Generator) Rungs() []string {
	return rungNames(g.rungs)
}

// Generate walks the ladder for req. The only error is ctx being done; every
// other failure degrades to the demo or placeholder workflow.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ctx, span := g.tracer.Start(ctx, "generator.Generate", trace.WithAttributes(
		attribute.Int("ladder.rungs", len(g.rungs)),
		attribute.Bool("ladder.mock", g.opts.MockMode),
	))
	defer span.End()

	var result Result
	current := stateTryMock
	if !g.opts.MockMode {
		result.Sources = g.findSources(ctx, req.Goal)
		current = stateTryProvider
	}
	messages := generationMessages(req.Goal, req.Language, g.opts.Guidance, result.Sources)

	next := 0
	for {
		switch current {
		case stateTryProvider:
			if next >= len(g.rungs) {
				current = stateTryMock
				continue
			}
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			rung := g.rungs[next]
			wf, err := g.attemptGenerate(ctx, next, rung, messages, req.Goal)
			next++
			if err != nil {
				result.Attempts = append(result.Attempts, err)
				g.log.Warn("workflow generation attempt failed",
					"provider", err.Provider, "stage", string(err.Stage), "retryable", err.Retryable(), "error", err.Err)
				continue
			}
			result.Workflow = wf
			result.Provider = rung.Name
			result.Outcome = OutcomeProvider
			current = stateSuccess
		case stateSuccess:
			span.SetAttributes(attribute.String("ladder.outcome", string(result.Outcome)))
			return result, nil
		case stateTryMock:
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			switch {
			case g.opts.MockMode:
				result.Workflow = workflow.Demo(req.Goal)
				result.Sources = retrieval.DemoSources()
				result.Outcome = OutcomeMock
			case g.opts.DemoFallback:
				result.Workflow = workflow.Demo(req.Goal)
				result.Outcome = OutcomeDemo
			default:
				result.Workflow = workflow.Placeholder(req.Goal, g.opts.Rand)
				result.Outcome = OutcomePlaceholder
			}
			if !g.opts.MockMode {
				g.log.Warn("llm ladder exhausted", "attempts", len(result.Attempts), "outcome", string(result.Outcome))
			}
			current = stateSuccess
		}
	}
}

func (g *Generator) attemptGenerate(ctx context.Context, index int, rung Rung, messages []llm.Message, goal string) (workflow.Workflow, *AttemptError) {
	value, attemptErr := g.attempt(ctx, index, rung, "generator.attempt", messages,
		llm.WithTemperature(generationTemperature), llm.WithMaxTokens(generationMaxTokens))
	if attemptErr != nil {
		return workflow.Workflow{}, attemptErr
	}
	wf, err := workflow.Coerce(value, goal, g.opts.Rand)
	if err != nil {
		return workflow.Workflow{}, &AttemptError{Provider: rung.Name, Stage: StageSchema, Err: err}
	}
	return wf, nil
}

// attempt performs one provider call and decodes its reply.
func (g *Generator) attempt(ctx context.Context, index int, rung Rung, spanName string, messages []llm.Message, opts ...llm.Option) (any, *AttemptError) {
	ctx, span := g.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("llm.provider", rung.Name),
		attribute.Int("ladder.rung", index),
	))
	defer span.End()

	if g.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.AttemptTimeout)
		defer cancel()
	}

	fail := func(stage Stage, err error) (any, *AttemptError) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage))
		return nil, &AttemptError{Provider: rung.Name, Stage: stage, Err: err}
	}

	started := time.Now()
	raw, err := rung.Provider.Generate(ctx, messages, opts...)
	if err != nil {
		var transportErr *llm.TransportError
		if errors.As(err, &transportErr) {
			span.SetAttributes(
				attribute.Int("http.status_code", transportErr.StatusCode),
				attribute.Bool("llm.retryable", transportErr.Retryable()),
			)
		}
		return fail(StageTransport, err)
	}
	g.log.Debug("llm reply received", "provider", rung.Name, "bytes", len(raw), "elapsed", time.Since(started))

	outcome := jsonrepair.Decode(raw)
	if !outcome.Parsed() {
		return fail(StageRepair, outcome.Err())
	}
	span.SetAttributes(attribute.String("jsonrepair.strategy", string(outcome.Strategy)))
	return outcome.Value, nil
}

// Verify judges a step's proof of completion with the same ladder. When no
// rung answers usably the length heuristic decides.
func (g *Generator) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return VerifyResult{}, err
	}
	ctx, span := g.tracer.Start(ctx, "generator.Verify")
	defer span.End()

	var result VerifyResult
	if !g.opts.MockMode {
		messages := verificationMessages(req)
		for i, rung := range g.rungs {
			if err := ctx.Err(); err != nil {
				return VerifyResult{}, err
			}
			value, attemptErr := g.attempt(ctx, i, rung, "generator.verify_attempt", messages, llm.WithTemperature(verifyTemperature))
			if attemptErr == nil {
				verification, err := workflow.CoerceVerification(value)
				if err == nil {
					result.Verification = verification
					result.Provider = rung.Name
					result.Outcome = OutcomeProvider
					return result, nil
				}
				attemptErr = &AttemptError{Provider: rung.Name, Stage: StageSchema, Err: err}
			}
			result.Attempts = append(result.Attempts, attemptErr)
			g.log.Warn("step verification attempt failed",
				"provider", attemptErr.Provider, "stage", string(attemptErr.Stage), "retryable", attemptErr.Retryable(), "error", attemptErr.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		return VerifyResult{}, err
	}
	result.Verification = workflow.HeuristicVerification(req.UserProof)
	result.Outcome = OutcomeHeuristic
	return result, nil
}

func (g *Generator) findSources(ctx context.Context, goal string) []retrieval.Source {
	if g.finder == nil || strings.TrimSpace(goal) == "" {
		return nil
	}
	sources, err := g.finder.FindSources(ctx, goal)
	if err != nil {
		g.log.Warn("source lookup failed, continuing without sources", "error", err)
		return nil
	}
	g.log.Debug("sources found", "count", len(sources))
	return sources
}
