package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sujithputta02/LifeFlow-AI/internal/config"
	"github.com/sujithputta02/LifeFlow-AI/internal/jsonrepair"
	"github.com/sujithputta02/LifeFlow-AI/internal/llm"
	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
	"github.com/sujithputta02/LifeFlow-AI/internal/retrieval"
	"github.com/sujithputta02/LifeFlow-AI/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixedRand int

func (f fixedRand) IntN(n int) int {
	return int(f) % n
}

type stubProvider struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    bool
	calls    int
	messages []llm.Message
	options  llm.CallOptions
}

func (s *stubProvider) Generate(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	s.mu.Lock()
	s.calls++
	s.messages = messages
	for _, opt := range opts {
		opt(&s.options)
	}
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return "", &llm.TransportError{Provider: "stub", Err: ctx.Err()}
	}
	return s.reply, s.err
}

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type countingFinder struct {
	sources []retrieval.Source
	calls   int
}

func (f *countingFinder) FindSources(context.Context, string) ([]retrieval.Source, error) {
	f.calls++
	return f.sources, nil
}

const validWorkflow = `{"goal": "Renew passport", "confidenceScore": 97, "steps": [{"stepId": 1, "title": "Book slot", "description": "Use the portal", "subSteps": ["Log in"], "documents": ["Old passport"], "source": "https://passportindia.gov.in"}]}`

func newGenerator(rungs []Rung, opts Options) *Generator {
	if opts.Rand == nil {
		opts.Rand = fixedRand(0)
	}
	return New(rungs, nil, logging.Nop(), opts)
}

func TestGenerate_ZeroProvidersReturnsPlaceholder(t *testing.T) {
	g := newGenerator(nil, Options{Rand: fixedRand(4)})

	result, err := g.Generate(context.Background(), Request{Goal: "Get a ration card"})
	require.NoError(t, err)
	require.Equal(t, OutcomePlaceholder, result.Outcome)
	require.Len(t, result.Workflow.Steps, 1)
	require.Equal(t, workflow.NoSource, result.Workflow.Steps[0].Source)
	require.Equal(t, 96, result.Workflow.ConfidenceScore)
	require.True(t, workflow.IsPlaceholder(result.Workflow))
}

func TestGenerate_ZeroProvidersDemoFallback(t *testing.T) {
	g := newGenerator(nil, Options{DemoFallback: true})

	result, err := g.Generate(context.Background(), Request{Goal: "Get a ration card"})
	require.NoError(t, err)
	require.Equal(t, OutcomeDemo, result.Outcome)
	require.Equal(t, "Get a ration card", result.Workflow.Goal)
	require.Len(t, result.Workflow.Steps, 2)
}

func TestGenerate_FirstProviderSucceeds(t *testing.T) {
	primary := &stubProvider{reply: "<think>plan it</think>```json\n" + validWorkflow + "\n```"}
	fallback := &stubProvider{reply: validWorkflow}
	g := newGenerator([]Rung{{Name: "azure-openai", Provider: primary}, {Name: "openrouter", Provider: fallback}}, Options{})

	result, err := g.Generate(context.Background(), Request{Goal: "passport", Language: "Hindi"})
	require.NoError(t, err)
	require.Equal(t, OutcomeProvider, result.Outcome)
	require.Equal(t, "azure-openai", result.Provider)
	require.Equal(t, "Renew passport", result.Workflow.Goal)
	require.Equal(t, 97, result.Workflow.ConfidenceScore)
	require.Empty(t, result.Attempts)
	require.Equal(t, 0, fallback.Calls())

	require.Len(t, primary.messages, 2)
	require.Contains(t, primary.messages[0].Content, "Output the content in Hindi.")
	require.Equal(t, "Goal: passport", primary.messages[1].Content)
	require.NotNil(t, primary.options.Temperature)
	require.Equal(t, 0.7, *primary.options.Temperature)
	require.Equal(t, 3000, primary.options.MaxTokens)
}

func TestGenerate_AppendsOperatorGuidance(t *testing.T) {
	provider := &stubProvider{reply: validWorkflow}
	g := newGenerator([]Rung{{Name: "openai", Provider: provider}}, Options{Guidance: "  Prefer state portals.  "})

	_, err := g.Generate(context.Background(), Request{Goal: "passport"})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(provider.messages[0].Content, "Operator guidance (never overrides the JSON format above):\nPrefer state portals."))

	bare := &stubProvider{reply: validWorkflow}
	_, err = newGenerator([]Rung{{Name: "openai", Provider: bare}}, Options{}).Generate(context.Background(), Request{Goal: "passport"})
	require.NoError(t, err)
	require.NotContains(t, bare.messages[0].Content, "Operator guidance")
}

func TestGenerate_AdvancesPastEveryStageFailure(t *testing.T) {
	transport := &stubProvider{err: &llm.TransportError{Provider: "azure-openai", StatusCode: 503, Err: errors.New("unavailable")}}
	garbage := &stubProvider{reply: "I'm sorry, I cannot help with that."}
	schema := &stubProvider{reply: `{"goal": "x", "steps": "none"}`}
	good := &stubProvider{reply: `{"goal": "g", "confidenceScore": 40, "steps": [{"title": "t"},]}`}
	g := newGenerator([]Rung{
		{Name: "azure-openai", Provider: transport},
		{Name: "openrouter", Provider: garbage},
		{Name: "gemini", Provider: schema},
		{Name: "ollama", Provider: good},
	}, Options{Rand: fixedRand(1)})

	result, err := g.Generate(context.Background(), Request{Goal: "goal"})
	require.NoError(t, err)
	require.Equal(t, "ollama", result.Provider)
	require.Equal(t, 93, result.Workflow.ConfidenceScore)
	require.Equal(t, 1, result.Workflow.Steps[0].StepID)

	require.Len(t, result.Attempts, 3)
	require.Equal(t, StageTransport, result.Attempts[0].Stage)
	require.Equal(t, StageRepair, result.Attempts[1].Stage)
	var repairErr *jsonrepair.RepairError
	require.ErrorAs(t, result.Attempts[1], &repairErr)
	require.Equal(t, StageSchema, result.Attempts[2].Stage)
	require.ErrorIs(t, result.Attempts[2], workflow.ErrMissingSteps)
}

func TestGenerate_LogsWhetherFailuresAreRetryable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	g := New([]Rung{
		{Name: "azure-openai", Provider: &stubProvider{err: &llm.TransportError{Provider: "azure-openai", StatusCode: 429, Err: errors.New("rate limited")}}},
		{Name: "openrouter", Provider: &stubProvider{err: &llm.TransportError{Provider: "openrouter", StatusCode: 401, Err: errors.New("unauthorized")}}},
		{Name: "gemini", Provider: &stubProvider{reply: "no json here"}},
	}, nil, logging.FromZap(zap.New(core)), Options{Rand: fixedRand(0)})

	result, err := g.Generate(context.Background(), Request{Goal: "Register a business"})
	require.NoError(t, err)
	require.Equal(t, OutcomePlaceholder, result.Outcome)
	require.Len(t, result.Attempts, 3)
	require.True(t, result.Attempts[0].Retryable())
	require.False(t, result.Attempts[1].Retryable())
	require.False(t, result.Attempts[2].Retryable())

	attempts := logs.FilterMessage("workflow generation attempt failed").All()
	require.Len(t, attempts, 3)
	retryable := make([]any, 0, len(attempts))
	for _, entry := range attempts {
		retryable = append(retryable, entry.ContextMap()["retryable"])
	}
	require.Equal(t, []any{true, false, false}, retryable)
}

func TestGenerate_ExhaustedLadderReturnsPlaceholder(t *testing.T) {
	failing := &stubProvider{err: errors.New("boom")}
	g := newGenerator([]Rung{{Name: "openrouter", Provider: failing}}, Options{})

	result, err := g.Generate(context.Background(), Request{Goal: "Passport"})
	require.NoError(t, err)
	require.Equal(t, OutcomePlaceholder, result.Outcome)
	require.Len(t, result.Attempts, 1)
	require.Equal(t, 1, failing.Calls())
	require.GreaterOrEqual(t, result.Workflow.ConfidenceScore, 92)
	require.LessOrEqual(t, result.Workflow.ConfidenceScore, 99)
}

func TestGenerate_MockModeSkipsProvidersAndRetrieval(t *testing.T) {
	provider := &stubProvider{reply: validWorkflow}
	finder := &countingFinder{}
	g := New([]Rung{{Name: "openrouter", Provider: provider}}, finder, logging.Nop(), Options{MockMode: true})

	result, err := g.Generate(context.Background(), Request{Goal: "Hospital visit"})
	require.NoError(t, err)
	require.Equal(t, OutcomeMock, result.Outcome)
	require.Equal(t, "Hospital visit", result.Workflow.Goal)
	require.Equal(t, 0, provider.Calls())
	require.Equal(t, 0, finder.calls)
	require.Len(t, result.Sources, 2)
}

func TestGenerate_InjectsSources(t *testing.T) {
	provider := &stubProvider{reply: validWorkflow}
	finder := &countingFinder{sources: []retrieval.Source{{Title: "Seva", Content: "Apply online", URL: "https://seva.test"}}}
	g := New([]Rung{{Name: "openrouter", Provider: provider}}, finder, logging.Nop(), Options{Rand: fixedRand(0)})

	result, err := g.Generate(context.Background(), Request{Goal: "passport"})
	require.NoError(t, err)
	require.Equal(t, 1, finder.calls)
	require.Len(t, result.Sources, 1)
	require.True(t, strings.HasSuffix(provider.messages[0].Content, "- Seva: Apply online (https://seva.test)"))
	require.Contains(t, provider.messages[0].Content, "Output the content in English.")
}

func TestGenerate_AttemptTimeoutAdvances(t *testing.T) {
	slow := &stubProvider{block: true}
	fast := &stubProvider{reply: validWorkflow}
	g := newGenerator([]Rung{{Name: "slow", Provider: slow}, {Name: "fast", Provider: fast}}, Options{AttemptTimeout: 20 * time.Millisecond})

	result, err := g.Generate(context.Background(), Request{Goal: "passport"})
	require.NoError(t, err)
	require.Equal(t, "fast", result.Provider)
	require.Len(t, result.Attempts, 1)
	require.ErrorIs(t, result.Attempts[0], context.DeadlineExceeded)
}

func TestGenerate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	provider := &stubProvider{reply: validWorkflow}
	g := newGenerator([]Rung{{Name: "openrouter", Provider: provider}}, Options{})

	_, err := g.Generate(ctx, Request{Goal: "passport"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, provider.Calls())

	_, err = g.Verify(ctx, VerifyRequest{StepTitle: "t", UserProof: "done it all"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestVerify_UsesProvider(t *testing.T) {
	failing := &stubProvider{err: errors.New("down")}
	provider := &stubProvider{reply: "<think>hmm</think>```json\n{\"isComplete\": true, \"feedback\": \"Well done\",}\n```"}
	g := newGenerator([]Rung{{Name: "azure-openai", Provider: failing}, {Name: "openrouter", Provider: provider}}, Options{})

	result, err := g.Verify(context.Background(), VerifyRequest{StepTitle: "Book slot", StepDescription: "Use the portal", UserProof: "I booked it"})
	require.NoError(t, err)
	require.Equal(t, OutcomeProvider, result.Outcome)
	require.Equal(t, "openrouter", result.Provider)
	require.Equal(t, workflow.Verification{IsComplete: true, Feedback: "Well done"}, result.Verification)
	require.Len(t, result.Attempts, 1)

	require.Contains(t, provider.messages[0].Content, `Step Title: "Book slot"`)
	require.Equal(t, `User Proof: "I booked it"`, provider.messages[1].Content)
	require.Equal(t, 0.3, *provider.options.Temperature)
	require.Zero(t, provider.options.MaxTokens)
}

func TestVerify_HeuristicFallback(t *testing.T) {
	schema := &stubProvider{reply: `{"feedback": "no flag"}`}
	g := newGenerator([]Rung{{Name: "openrouter", Provider: schema}}, Options{})

	result, err := g.Verify(context.Background(), VerifyRequest{StepTitle: "t", UserProof: "I went to the office today"})
	require.NoError(t, err)
	require.Equal(t, OutcomeHeuristic, result.Outcome)
	require.True(t, result.Verification.IsComplete)
	require.Len(t, result.Attempts, 1)
	require.Equal(t, StageSchema, result.Attempts[0].Stage)

	short, err := newGenerator(nil, Options{}).Verify(context.Background(), VerifyRequest{StepTitle: "t", UserProof: "done"})
	require.NoError(t, err)
	require.False(t, short.Verification.IsComplete)
}

func TestVerify_MockModeSkipsProviders(t *testing.T) {
	provider := &stubProvider{reply: `{"isComplete": false}`}
	g := newGenerator([]Rung{{Name: "openrouter", Provider: provider}}, Options{MockMode: true})

	result, err := g.Verify(context.Background(), VerifyRequest{StepTitle: "t", UserProof: "a long enough proof"})
	require.NoError(t, err)
	require.Equal(t, OutcomeHeuristic, result.Outcome)
	require.Equal(t, 0, provider.Calls())
}

func TestBuildRungs(t *testing.T) {
	built := []string{}
	factory := func(cfg llm.Config) (llm.Provider, error) {
		if cfg.APIKey == "" {
			return nil, llm.ErrMissingAPIKey
		}
		built = append(built, cfg.Provider+"/"+cfg.Model)
		return &stubProvider{}, nil
	}
	rungs := BuildRungs([]llm.Config{
		{Provider: "azure-openai", Model: "gpt-4o"},
		{Provider: "openrouter", Model: "deepseek", APIKey: "k"},
		{Provider: "openrouter", Model: "deepseek", APIKey: "k2"},
		{Provider: "gemini", Model: "flash", APIKey: "k"},
	}, factory, nil)

	require.Equal(t, []string{"openrouter", "gemini"}, rungNames(rungs))
	require.Equal(t, []string{"openrouter/deepseek", "gemini/flash"}, built)
}

func TestBuildRungs_DefaultFactorySkipsKeylessRungs(t *testing.T) {
	cfg := config.Config{
		LLMProvider:         llm.ProviderAzureOpenAI,
		LLMFallbackProvider: llm.ProviderOpenRouter,
		LLMFallbackModel:    "deepseek/deepseek-r1-0528:free",
		AzureOpenAIEndpoint: "https://lifeflow.openai.azure.com",
	}
	ladder, err := cfg.Ladder()
	require.NoError(t, err)
	require.Len(t, ladder, 2)

	rungs := BuildRungs(ladder, nil, logging.Nop())
	require.Empty(t, rungs)

	g := New(rungs, nil, nil, Options{Rand: fixedRand(0)})
	result, err := g.Generate(context.Background(), Request{Goal: "Apply for a driving licence"})
	require.NoError(t, err)
	require.Equal(t, OutcomePlaceholder, result.Outcome)
	require.Empty(t, result.Attempts)

	cfg.OpenRouterAPIKey = "or-key"
	ladder, err = cfg.Ladder()
	require.NoError(t, err)
	require.Equal(t, []string{llm.ProviderOpenRouter}, rungNames(BuildRungs(ladder, nil, nil)))
}

func TestBuildRungs_DefaultFactory(t *testing.T) {
	rungs := BuildRungs([]llm.Config{
		{Provider: "openrouter", Model: "deepseek/deepseek-r1-0528:free", APIKey: "k"},
		{Provider: "not-a-provider"},
	}, nil, logging.Nop())
	require.Len(t, rungs, 1)
	g := New(rungs, nil, nil, Options{})
	require.Equal(t, []string{"openrouter"}, g.Rungs())
}
