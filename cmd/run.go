package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/mdokit/optdriver/internal/bench"
	"github.com/mdokit/optdriver/internal/driver"
	"github.com/mdokit/optdriver/internal/solver"
	"github.com/mdokit/optdriver/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	problemName string
	optimizer   string
	title       string
	optFlags    []string
	configPath  string
	solverFD    bool
	fdStep      float64
	dataDir     string
	traceRun    bool
)

// runConfigFile mirrors the flags for YAML-based configuration. Flags set
// explicitly on the command line take precedence over file values.
type runConfigFile struct {
	Problem   string         `yaml:"problem"`
	Optimizer string         `yaml:"optimizer"`
	Title     string         `yaml:"title"`
	Options   map[string]any `yaml:"options"`
	SolverFD  bool           `yaml:"solverFd"`
	FDStep    float64        `yaml:"fdStep"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run single-shot optimization",
	Long: `Runs one optimization of a benchmark problem and prints the result.
Backend options are passed through verbatim with --opt key=value.`,
	RunE: runOptimizationCmd,
}

func init() {
	runCmd.Flags().StringVar(&problemName, "problem", "", "Benchmark problem name (required unless set in --config)")
	runCmd.Flags().StringVar(&optimizer, "optimizer", "MAYFLY", "Optimizer backend name")
	runCmd.Flags().StringVar(&title, "title", "", "Title recorded with the run")
	runCmd.Flags().StringArrayVar(&optFlags, "opt", nil, "Backend option as key=value (repeatable)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML config file with run settings")
	runCmd.Flags().BoolVar(&solverFD, "solver-fd", false, "Let the backend compute its own finite-difference gradients")
	runCmd.Flags().Float64Var(&fdStep, "fd-step", 0, "Finite-difference step size for backend FD")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "", "Persist the run record under this directory")
	runCmd.Flags().BoolVar(&traceRun, "trace", false, "Record a per-evaluation trace (requires --data-dir)")

	rootCmd.AddCommand(runCmd)
}

func runOptimizationCmd(cmd *cobra.Command, args []string) error {
	cfg := driver.Config{
		Optimizer: optimizer,
		Title:     title,
		Options:   make(map[string]any),
		SolverFD:  solverFD,
		FDStep:    fdStep,
	}

	if configPath != "" {
		file, err := loadRunConfig(configPath)
		if err != nil {
			return err
		}
		if problemName == "" {
			problemName = file.Problem
		}
		if !cmd.Flags().Changed("optimizer") && file.Optimizer != "" {
			cfg.Optimizer = file.Optimizer
		}
		if title == "" {
			cfg.Title = file.Title
		}
		if !cmd.Flags().Changed("solver-fd") {
			cfg.SolverFD = file.SolverFD
		}
		if !cmd.Flags().Changed("fd-step") {
			cfg.FDStep = file.FDStep
		}
		for k, v := range file.Options {
			cfg.Options[k] = v
		}
	}
	if problemName == "" {
		return fmt.Errorf("--problem is required")
	}

	// --opt flags override config file options
	for _, kv := range optFlags {
		key, value, err := parseOption(kv)
		if err != nil {
			return err
		}
		cfg.Options[key] = value
	}

	model, err := bench.New(problemName)
	if err != nil {
		return err
	}

	cfg.PrintResults = true
	drv := driver.New(model, cfg)

	var recorder *store.FSStore
	var trace *store.TraceWriter
	runID := uuid.New().String()
	if dataDir != "" {
		recorder, err = store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create store: %w", err)
		}
		if traceRun {
			trace, err = store.NewTraceWriter(recorder.BaseDir(), runID)
			if err != nil {
				return fmt.Errorf("failed to open trace: %w", err)
			}
			defer trace.Close()
			objName := model.Objectives()[0].Name()
			drv.SetObserver(func(eval int, point map[string][]float64, ev solver.Evaluation) {
				objective := 0.0
				if vals, ok := ev.Functions[objName]; ok && len(vals) > 0 {
					objective = vals[0]
				}
				trace.Write(store.TraceEntry{
					Eval:      eval,
					Objective: objective,
					Fail:      ev.Fail,
					Timestamp: time.Now(),
					Point:     point,
				})
			})
		}
	}

	slog.Info("Starting run", "problem", problemName, "optimizer", cfg.Optimizer)

	start := time.Now()
	sol, runErr := drv.Run(context.Background())
	elapsed := time.Since(start)

	if recorder != nil {
		record := &store.RunRecord{
			RunID: runID,
			Config: store.RunConfig{
				Problem:   problemName,
				Optimizer: cfg.Optimizer,
				Title:     cfg.Title,
				Options:   cfg.Options,
				SolverFD:  cfg.SolverFD,
				FDStep:    cfg.FDStep,
			},
			StartTime: start,
			EndTime:   time.Now(),
		}
		if runErr != nil {
			record.Status = "failed"
			record.Error = runErr.Error()
		} else {
			record.Status = sol.Status
			record.Objective = sol.Objective
			record.Variables = sol.Variables
			record.Evaluations = sol.Evaluations
		}
		if err := recorder.SaveRecord(runID, record); err != nil {
			slog.Error("Failed to save run record", "run_id", runID, "error", err)
		} else {
			fmt.Printf("Saved run %s\n", runID)
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("Optimization complete (%s, %d evaluations, %s)\n", sol.Status, sol.Evaluations, elapsed.Round(time.Millisecond))
	fmt.Printf("Objective: %.6g\n\n", sol.Objective)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIABLE\tVALUE")
	names := make([]string, 0, len(sol.Variables))
	for name := range sol.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%v\n", name, sol.Variables[name])
	}
	w.Flush()

	return nil
}

func loadRunConfig(path string) (*runConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var file runConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &file, nil
}

// parseOption splits key=value and coerces the value to int, float, bool,
// or string, in that order.
func parseOption(kv string) (string, any, error) {
	key, raw, found := strings.Cut(kv, "=")
	if !found || key == "" {
		return "", nil, fmt.Errorf("invalid option %q, expected key=value", kv)
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return key, i, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return key, f, nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return key, b, nil
	}
	return key, raw, nil
}
