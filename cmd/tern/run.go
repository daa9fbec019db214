package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ternflow/tern/pkg/compute"
	"github.com/ternflow/tern/pkg/config"
	"github.com/ternflow/tern/pkg/events"
	"github.com/ternflow/tern/pkg/executor"
	"github.com/ternflow/tern/pkg/storage"
	"github.com/ternflow/tern/pkg/types"
	"github.com/ternflow/tern/pkg/worker"
)

var (
	runName    string
	runScript  string
	runWorkDir string
	runTarget  string
	runOutputs []string
	runEnv     []string
	runShell   []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a script task and wait for completion",
	Long: `Runs a single script task on an in-process grid: a local worker is
started, the task is staged, executed and un-staged, and the command exits
with the task's exit status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		initLogging(cfg)

		if runScript == "" {
			return fmt.Errorf("a script is required")
		}
		workDir := runWorkDir
		if workDir == "" {
			workDir, err = os.MkdirTemp("", "tern-work-")
			if err != nil {
				return err
			}
		}
		targetDir := runTarget
		if targetDir == "" {
			targetDir = workDir
		}

		grid := compute.NewGrid()
		w, err := worker.NewWorker(&worker.Config{
			Slots:     cfg.Slots,
			CacheRoot: cfg.CacheRoot,
		})
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Join(grid); err != nil {
			return err
		}

		var store storage.Store
		if cfg.DataDir != "" {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return err
			}
			boltStore, err := storage.NewBoltStore(cfg.DataDir)
			if err != nil {
				return err
			}
			defer boltStore.Close()
			store = boltStore
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		exec, err := executor.New(executor.Config{
			Grid:         grid,
			PollInterval: cfg.PollIntervalDuration(),
			Store:        store,
			Events:       broker,
		})
		if err != nil {
			return err
		}
		exec.Start()
		defer exec.Stop()

		task := &types.TaskRun{
			ID:          uuid.New().String(),
			Name:        runName,
			Kind:        types.TaskKindScript,
			WorkDir:     workDir,
			TargetDir:   targetDir,
			Script:      runScript,
			Shell:       runShell,
			Env:         parseEnv(runEnv),
			OutputFiles: runOutputs,
			CreatedAt:   time.Now(),
		}

		handler, err := exec.Submit(task)
		if err != nil {
			return err
		}
		for handler.State() != types.TaskStateCompleted {
			time.Sleep(50 * time.Millisecond)
		}
		grid.Close()

		if task.Error != nil {
			return fmt.Errorf("task failed: %w", task.Error)
		}
		fmt.Printf("task %s completed with exit status %d\n", task.Name, task.ExitStatus)
		fmt.Printf("stdout: %v\n", task.Stdout)
		if task.ExitStatus != 0 {
			os.Exit(task.ExitStatus)
		}
		return nil
	},
}

func parseEnv(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		if k, v, ok := strings.Cut(pair, "="); ok {
			env[k] = v
		}
	}
	return env
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "task", "Task name")
	runCmd.Flags().StringVar(&runScript, "script", "", "Script body to execute")
	runCmd.Flags().StringVar(&runWorkDir, "work-dir", "", "Shared working directory (default: temporary)")
	runCmd.Flags().StringVar(&runTarget, "target-dir", "", "Output target directory (default: work dir)")
	runCmd.Flags().StringArrayVar(&runOutputs, "output", nil, "Output file pattern (repeatable)")
	runCmd.Flags().StringArrayVar(&runEnv, "env", nil, "Environment variable KEY=VALUE (repeatable)")
	runCmd.Flags().StringArrayVar(&runShell, "shell", nil, "Shell argv prefix (default: /bin/bash -ue)")
}
