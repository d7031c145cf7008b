package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/sujithputta02/LifeFlow-AI/internal/config"
	"github.com/sujithputta02/LifeFlow-AI/internal/events"
	"github.com/sujithputta02/LifeFlow-AI/internal/gamification"
	"github.com/sujithputta02/LifeFlow-AI/internal/generator"
	"github.com/sujithputta02/LifeFlow-AI/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveWorkflow(ctx context.Context, record store.WorkflowRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) ListWorkflows(ctx context.Context, guestID string, limit int) ([]store.WorkflowRecord, error) {
	args := m.Called(ctx, guestID, limit)
	var result []store.WorkflowRecord
	if value := args.Get(0); value != nil {
		result = value.([]store.WorkflowRecord)
	}
	return result, args.Error(1)
}

func (m *MockStore) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) GetProfile(ctx context.Context, guestID string) (*store.GuestProfile, error) {
	args := m.Called(ctx, guestID)
	if value := args.Get(0); value != nil {
		return value.(*store.GuestProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) UpsertProfile(ctx context.Context, profile store.GuestProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req generator.Request) (generator.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(generator.Result), args.Error(1)
}

func (m *MockGenerator) Verify(ctx context.Context, req generator.VerifyRequest) (generator.VerifyResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(generator.VerifyResult), args.Error(1)
}

type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) Profile(ctx context.Context, guestID string) (store.GuestProfile, error) {
	args := m.Called(ctx, guestID)
	return args.Get(0).(store.GuestProfile), args.Error(1)
}

func (m *MockProfiles) Update(ctx context.Context, profile store.GuestProfile) (store.GuestProfile, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(store.GuestProfile), args.Error(1)
}

func (m *MockProfiles) CompleteStep(ctx context.Context, guestID string, verified bool) (gamification.Award, error) {
	args := m.Called(ctx, guestID, verified)
	return args.Get(0).(gamification.Award), args.Error(1)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(event events.GuestEvent) {
	m.Called(event)
}

func (m *MockBroker) Subscribe(ctx context.Context, guestID string) <-chan events.GuestEvent {
	args := m.Called(ctx, guestID)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.GuestEvent); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.GuestEvent); ok {
			return ch
		}
	}
	return nil
}

type deps struct {
	store     *MockStore
	generator *MockGenerator
	profiles  *MockProfiles
	broker    *MockBroker
}

func newDeps() deps {
	return deps{
		store:     &MockStore{},
		generator: &MockGenerator{},
		profiles:  &MockProfiles{},
		broker:    &MockBroker{},
	}
}

func (d deps) server(cfg config.Config) *Server {
	return NewServer(d.store, d.generator, d.profiles, d.broker, cfg, nil)
}

func (d deps) assert(t *testing.T) {
	t.Helper()
	d.store.AssertExpectations(t)
	d.generator.AssertExpectations(t)
	d.profiles.AssertExpectations(t)
	d.broker.AssertExpectations(t)
}

func newTestServer(t *testing.T, d deps, cfg config.Config) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(d.server(cfg).Router())
	t.Cleanup(server.Close)
	return server
}
