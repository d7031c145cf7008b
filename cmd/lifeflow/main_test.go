package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sujithputta02/LifeFlow-AI/internal/api"
	"github.com/sujithputta02/LifeFlow-AI/internal/config"
	"github.com/sujithputta02/LifeFlow-AI/internal/llm"
	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
	"github.com/sujithputta02/LifeFlow-AI/internal/store"
	"github.com/sujithputta02/LifeFlow-AI/internal/store/memory"
	"github.com/sujithputta02/LifeFlow-AI/internal/workflow"
)

type stubServer struct {
	err  error
	addr *string
}

func (s stubServer) Start(ctx context.Context, addr string) error {
	if s.addr != nil {
		*s.addr = addr
	}
	return s.err
}

type countingProvider struct {
	calls int
}

func (p *countingProvider) Generate(context.Context, []llm.Message, ...llm.Option) (string, error) {
	p.calls++
	return "", errors.New("unexpected call")
}

func captureDeps() func() {
	origLoadConfig := loadConfig
	origNewLogger := newLogger
	origInitTracing := initTracing
	origNewProvider := newProvider
	origOpenStore := openStore
	origNewServer := newServer
	origNotifyContext := notifyContext

	return func() {
		loadConfig = origLoadConfig
		newLogger = origNewLogger
		initTracing = origInitTracing
		newProvider = origNewProvider
		openStore = origOpenStore
		newServer = origNewServer
		notifyContext = origNotifyContext
	}
}

func stubDeps(t *testing.T, cfg config.Config) *memory.MemoryStore {
	t.Helper()
	restore := captureDeps()
	t.Cleanup(restore)

	mem := memory.New()
	loadConfig = func() (config.Config, error) { return cfg, nil }
	newLogger = func(string) (*logging.Logger, error) { return logging.Nop(), nil }
	openStore = func(config.Config) (store.Store, func() error, error) {
		return mem, func() error { return nil }, nil
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}
	return mem
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestServe_Success(t *testing.T) {
	stubDeps(t, config.Config{Port: "5000", UseMockData: true})
	var addr string
	newServer = func(store.Store, api.Generator, api.ProfileService, api.Broker, config.Config, *logging.Logger) server {
		return stubServer{addr: &addr}
	}

	_, err := execute(t)
	require.NoError(t, err)
	require.Equal(t, ":5000", addr)

	_, err = execute(t, "serve")
	require.NoError(t, err)
}

func TestServe_IgnoresServerClosed(t *testing.T) {
	stubDeps(t, config.Config{Port: "0"})
	newServer = func(store.Store, api.Generator, api.ProfileService, api.Broker, config.Config, *logging.Logger) server {
		return stubServer{err: errServerClosed}
	}
	_, err := execute(t, "serve")
	require.NoError(t, err)
}

func TestServe_StartError(t *testing.T) {
	stubDeps(t, config.Config{Port: "0"})
	newServer = func(store.Store, api.Generator, api.ProfileService, api.Broker, config.Config, *logging.Logger) server {
		return stubServer{err: errors.New("address in use")}
	}
	_, err := execute(t, "serve")
	require.EqualError(t, err, "address in use")
}

func TestServe_ConfigAndStoreErrors(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		stubDeps(t, config.Config{})
		loadConfig = func() (config.Config, error) { return config.Config{}, errors.New("bad config") }
		_, err := execute(t, "serve")
		require.EqualError(t, err, "bad config")
	})

	t.Run("logger", func(t *testing.T) {
		stubDeps(t, config.Config{})
		newLogger = func(string) (*logging.Logger, error) { return nil, errors.New("no logger") }
		_, err := execute(t, "serve")
		require.EqualError(t, err, "no logger")
	})

	t.Run("store", func(t *testing.T) {
		stubDeps(t, config.Config{})
		openStore = func(config.Config) (store.Store, func() error, error) { return nil, nil, errors.New("db down") }
		_, err := execute(t, "serve")
		require.EqualError(t, err, "db down")
	})

	t.Run("ladder file", func(t *testing.T) {
		stubDeps(t, config.Config{LLMLadderFile: filepath.Join(t.TempDir(), "missing.yaml")})
		_, err := execute(t, "serve")
		require.ErrorContains(t, err, "read ladder file")
	})
}

func TestGenerate_MockMode(t *testing.T) {
	mem := stubDeps(t, config.Config{UseMockData: true})
	provider := &countingProvider{}
	newProvider = func(llm.Config) (llm.Provider, error) { return provider, nil }

	out, err := execute(t, "generate", "Visit", "the", "hospital", "--guest", "guest-1")
	require.NoError(t, err)

	var wf workflow.Workflow
	require.NoError(t, json.Unmarshal([]byte(out), &wf))
	require.Equal(t, "Visit the hospital", wf.Goal)
	require.NotEmpty(t, wf.Steps)

	records, err := mem.ListWorkflows(context.Background(), "guest-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "English", records[0].Language)
	require.Zero(t, provider.calls)
}

func TestGenerate_RequiresGoal(t *testing.T) {
	stubDeps(t, config.Config{UseMockData: true})
	_, err := execute(t, "generate")
	require.Error(t, err)

	_, err = execute(t, "generate", "   ")
	require.EqualError(t, err, "goal is required")
}

func TestGenerate_NoProvidersFallsBackToPlaceholder(t *testing.T) {
	stubDeps(t, config.Config{LLMProvider: "unknown-provider"})
	out, err := execute(t, "generate", "Open a bank account")
	require.NoError(t, err)

	var wf workflow.Workflow
	require.NoError(t, json.Unmarshal([]byte(out), &wf))
	require.True(t, workflow.IsPlaceholder(wf))
}

func TestVerify(t *testing.T) {
	stubDeps(t, config.Config{UseMockData: true})

	out, err := execute(t, "verify", "--title", "Book appointment", "--proof", "Booked for Monday at 10am")
	require.NoError(t, err)
	var verdict workflow.Verification
	require.NoError(t, json.Unmarshal([]byte(out), &verdict))
	require.True(t, verdict.IsComplete)

	out, err = execute(t, "verify", "--title", "Book appointment", "--proof", "done")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &verdict))
	require.False(t, verdict.IsComplete)

	_, err = execute(t, "verify", "--title", "Book appointment")
	require.EqualError(t, err, "--title and --proof are required")
}

func TestOpenStore(t *testing.T) {
	t.Run("memory by default", func(t *testing.T) {
		st, closeFn, err := openStore(config.Config{})
		require.NoError(t, err)
		require.IsType(t, &memory.MemoryStore{}, st)
		require.NoError(t, closeFn())
	})

	t.Run("sqlite", func(t *testing.T) {
		st, closeFn, err := openStore(config.Config{StoreDriver: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "lf.db")})
		require.NoError(t, err)
		require.NoError(t, st.Ping(context.Background()))
		require.NoError(t, closeFn())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, _, err := openStore(config.Config{StoreDriver: "mongo"})
		require.ErrorContains(t, err, `unsupported store driver "mongo"`)
	})
}
