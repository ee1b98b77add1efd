package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/kugutsu/pipeline/internal/agent"
	"github.com/kugutsu/pipeline/internal/config"
	"github.com/kugutsu/pipeline/internal/depgraph"
	"github.com/kugutsu/pipeline/internal/eventbus"
	"github.com/kugutsu/pipeline/internal/gitrunner"
	"github.com/kugutsu/pipeline/internal/mergecoord"
	"github.com/kugutsu/pipeline/internal/pipeline"
	"github.com/kugutsu/pipeline/internal/review"
	"github.com/kugutsu/pipeline/internal/state"
	"github.com/kugutsu/pipeline/internal/worktree"
	"github.com/kugutsu/pipeline/pkg/models"
)

// setupError wraps any failure that happens before the pipeline starts
// running tasks (spec §6: exit code 2).
type setupError struct{ err error }

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

var (
	flagBaseRepo     string
	flagWorktreeBase string
	flagMaxEngineers int
	flagMaxTurns     int
	flagBaseBranch   string
	flagUseRemote    bool
	flagCleanup      bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kugutsu <request>",
		Short: "Orchestrate parallel agents to carry a request to a merged branch",
		Long: `kugutsu takes a single natural-language development request and carries
it through planning, parallel implementation, code review, and
integration into one Git branch.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVar(&flagBaseRepo, "base-repo", ".", "path to the base Git repository")
	cmd.Flags().StringVar(&flagWorktreeBase, "worktree-base", "", "root directory for task worktrees (default: <base-repo>/.worktrees)")
	cmd.Flags().IntVar(&flagMaxEngineers, "max-engineers", 0, "maximum concurrent development/review workers (1-100)")
	cmd.Flags().IntVar(&flagMaxTurns, "max-turns", 0, "maximum Agent Executor turns per invocation (1-50)")
	cmd.Flags().StringVar(&flagBaseBranch, "base-branch", "", "branch to integrate into")
	cmd.Flags().BoolVar(&flagUseRemote, "use-remote", false, "fast-forward pull the base branch from origin before each merge")
	cmd.Flags().BoolVar(&flagCleanup, "cleanup", false, "remove task worktrees after the pipeline finishes")

	return cmd
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)

	err := cmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.As(err, new(*setupError)):
		fmt.Fprintln(os.Stderr, "setup error:", err)
		return 2
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}

func runPipeline(ctx context.Context, request string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flagMaxEngineers != 0 && (flagMaxEngineers < 1 || flagMaxEngineers > 100) {
		return &setupError{fmt.Errorf("--max-engineers must be between 1 and 100, got %d", flagMaxEngineers)}
	}
	if flagMaxTurns != 0 && (flagMaxTurns < 1 || flagMaxTurns > 50) {
		return &setupError{fmt.Errorf("--max-turns must be between 1 and 50, got %d", flagMaxTurns)}
	}

	cfg, err := config.Load()
	if err != nil {
		return &setupError{fmt.Errorf("load config: %w", err)}
	}
	applyFlagOverrides(cfg)

	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return &setupError{err}
	}

	baseRepo, err := filepath.Abs(flagBaseRepo)
	if err != nil {
		return &setupError{fmt.Errorf("resolve base repo path: %w", err)}
	}
	worktreeBase := flagWorktreeBase
	if worktreeBase == "" {
		worktreeBase = filepath.Join(baseRepo, ".worktrees")
	}

	executor := agent.NewAPIExecutor(agent.APIExecutorConfig{APIKey: apiKey, Model: anthropicModel(cfg.Anthropic.Model)})

	tasks, err := planTasks(ctx, executor, request)
	if err != nil {
		return &setupError{fmt.Errorf("plan tasks: %w", err)}
	}

	graph := depgraph.New(logger)
	if err := graph.Load(tasks); err != nil {
		return &setupError{fmt.Errorf("load task graph: %w", err)}
	}

	wtMgr, err := worktree.New(worktree.Config{
		BaseDir:    worktreeBase,
		RepoPath:   baseRepo,
		BaseBranch: cfg.Git.BaseBranch,
		Git:        gitrunner.NewRunner(baseRepo),
		Logger:     logger,
	})
	if err != nil {
		return &setupError{fmt.Errorf("create worktree manager: %w", err)}
	}

	bus := eventbus.New(eventbus.WithLogger(logger))

	newGitRunner := func(workdir string) gitrunner.Runner { return gitrunner.NewRunner(workdir) }

	devStage := pipeline.NewDevStage(pipeline.DevStageConfig{
		Worktrees:    wtMgr,
		Executor:     executor,
		Bus:          bus,
		Concurrency:  cfg.Concurrency.MaxEngineers,
		MaxTurns:     cfg.Timeouts.MaxTurns,
		NewGitRunner: newGitRunner,
	})

	reviewWorkflow := review.New(executor, review.Config{
		MaxRetries:     cfg.Review.MaxRetries,
		DefaultVerdict: models.Verdict(cfg.Review.DefaultVerdict),
		MaxTurns:       cfg.Timeouts.MaxTurns,
	})
	reviewStage := pipeline.NewReviewStage(reviewWorkflow, bus, cfg.Concurrency.MaxReviewers)
	reviewStage.SetEscalator(review.NewEscalator(cfg.Review.ProtectedPatterns))

	mergeCoord := mergecoord.New(mergecoord.Config{
		BaseGit:    gitrunner.NewRunner(baseRepo),
		BaseBranch: cfg.Git.BaseBranch,
		HasRemote:  cfg.Git.UseRemote,
		Logger:     logger,
	})

	snapshotter := state.NewSnapshotter(filepath.Join(baseRepo, ".kugutsu"))
	snapshotter.Watch(bus, graph)

	mgr := pipeline.New(pipeline.ManagerConfig{
		DevStage:     devStage,
		ReviewStage:  reviewStage,
		MergeCoord:   mergeCoord,
		Review:       reviewWorkflow,
		Graph:        graph,
		Worktrees:    wtMgr,
		Bus:          bus,
		NewGitRunner: newGitRunner,
	})
	defer mgr.Close()

	mgr.WaitForCompletion()

	summary := mgr.Completion().Summary()
	fmt.Println(summary)

	if flagCleanup {
		for _, t := range tasks {
			wtMgr.Release(t.ID)
		}
	}

	if len(mgr.Completion().Failed()) > 0 {
		return errors.New("one or more tasks failed")
	}
	return nil
}

// anthropicModel maps an empty configured model name to the
// APIExecutor's own default rather than passing an empty anthropic.Model
// through, which the SDK would reject.
func anthropicModel(name string) anthropic.Model {
	if name == "" {
		return ""
	}
	return anthropic.Model(name)
}

// resolveAPIKey finds the Anthropic API key the Agent Executor needs,
// preferring the environment variable over a value set in config (which
// may itself be a "${VAR}" placeholder left unexpanded).
func resolveAPIKey(cfg *config.Config) (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	if cfg != nil && cfg.Anthropic.APIKey != "" && !strings.HasPrefix(cfg.Anthropic.APIKey, "${") {
		return cfg.Anthropic.APIKey, nil
	}
	return "", errors.New("no Anthropic API key configured: set ANTHROPIC_API_KEY or anthropic.api_key in .kugutsu.yaml")
}

func applyFlagOverrides(cfg *config.Config) {
	if flagMaxEngineers > 0 {
		cfg.Concurrency.MaxEngineers = flagMaxEngineers
		if cfg.Concurrency.MaxReviewers > flagMaxEngineers {
			cfg.Concurrency.MaxReviewers = flagMaxEngineers
		}
	}
	if flagMaxTurns > 0 {
		cfg.Timeouts.MaxTurns = flagMaxTurns
	}
	if flagBaseBranch != "" {
		cfg.Git.BaseBranch = flagBaseBranch
	}
	if flagUseRemote {
		cfg.Git.UseRemote = true
	}
}
