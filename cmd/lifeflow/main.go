package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sujithputta02/LifeFlow-AI/internal/api"
	"github.com/sujithputta02/LifeFlow-AI/internal/config"
	"github.com/sujithputta02/LifeFlow-AI/internal/generator"
	"github.com/sujithputta02/LifeFlow-AI/internal/llm"
	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
	"github.com/sujithputta02/LifeFlow-AI/internal/observability"
	"github.com/sujithputta02/LifeFlow-AI/internal/store"
	"github.com/sujithputta02/LifeFlow-AI/internal/store/memory"
	"github.com/sujithputta02/LifeFlow-AI/internal/store/postgres"
	"github.com/sujithputta02/LifeFlow-AI/internal/store/sqlite"
)

var version = "dev"

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newLogger   = logging.New
	initTracing = observability.Init
	newProvider = llm.NewProvider
	openStore   = func(cfg config.Config) (store.Store, func() error, error) {
		switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
		case "", config.StoreMemory:
			return memory.New(), func() error { return nil }, nil
		case config.StorePostgres:
			st, err := postgres.New(cfg.PostgresURL)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		case config.StoreSQLite:
			st, err := sqlite.New(cfg.SQLitePath)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		default:
			return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
		}
	}
	newServer = func(st store.Store, gen api.Generator, profiles api.ProfileService, broker api.Broker, cfg config.Config, log *logging.Logger) server {
		return api.NewServer(st, gen, profiles, broker, cfg, log)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lifeflow",
		Short:         "LifeFlow AI workflow generator",
		Long:          "LifeFlow turns a free-text life goal into an actionable step-by-step workflow.\n\nRun without arguments to start the HTTP API.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newGenerateCmd(), newVerifyCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var language, guestID string
	cmd := &cobra.Command{
		Use:   "generate [goal]",
		Short: "Generate a workflow for a goal and print it as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.TrimSpace(strings.Join(args, " "))
			if goal == "" {
				return errors.New("goal is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				result, err := a.generator.Generate(ctx, generator.Request{Goal: goal, Language: language})
				if err != nil {
					return err
				}
				a.log.Info("workflow generated", "provider", result.Provider, "outcome", string(result.Outcome), "steps", len(result.Workflow.Steps))
				if guestID != "" && result.Workflow.Persistable() {
					record := store.WorkflowRecord{
						ID:        uuid.New().String(),
						GuestID:   guestID,
						Language:  language,
						CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
						Workflow:  result.Workflow,
					}
					if err := a.store.SaveWorkflow(ctx, record); err != nil {
						a.log.Error("failed to save workflow", "error", err)
					}
				}
				return printJSON(cmd, result.Workflow)
			})
		},
	}
	cmd.Flags().StringVar(&language, "language", "English", "language for the generated steps")
	cmd.Flags().StringVar(&guestID, "guest", "", "save the workflow to this guest's history")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var req generator.VerifyRequest
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Judge a proof of step completion and print the verdict as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(req.StepTitle) == "" || strings.TrimSpace(req.UserProof) == "" {
				return errors.New("--title and --proof are required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				result, err := a.generator.Verify(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd, result.Verification)
			})
		},
	}
	cmd.Flags().StringVar(&req.StepTitle, "title", "", "step title")
	cmd.Flags().StringVar(&req.StepDescription, "description", "", "step description")
	cmd.Flags().StringVar(&req.UserProof, "proof", "", "what the user did to complete the step")
	return cmd
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func runServe(parent context.Context) error {
	return withApp(parent, func(ctx context.Context, a *app) error {
		srv := newServer(a.store, a.generator, a.profiles, a.broker, a.cfg, a.log)
		addr := fmt.Sprintf(":%s", a.cfg.Port)
		a.log.Info("LifeFlow API listening", "addr", addr, "providers", a.generator.Rungs(), "store", a.cfg.StoreDriver, "mock", a.cfg.UseMockData)
		if err := srv.Start(ctx, addr); err != nil && !errors.Is(err, errServerClosed) {
			return err
		}
		return nil
	})
}
