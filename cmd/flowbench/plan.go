package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/config"
	"github.com/nerrad567/flowbench-core/internal/sequence"
)

var planCheckValves bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Work with sequence files offline",
}

var planCompileCmd = &cobra.Command{
	Use:   "compile <file.yaml>",
	Short: "Compile a sequence file and print the controller payload",
	Long: `Reads a YAML file with a top-level "steps" list, compiles it exactly as
the engine would before sending, and prints the JSON payload.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanCompile,
}

func init() {
	planCompileCmd.Flags().BoolVar(&planCheckValves, "check-valves", false, "reject valves not listed in the bench configuration")
	planCmd.AddCommand(planCompileCmd)
	rootCmd.AddCommand(planCmd)
}

// sequenceFile is the on-disk layout of an authored sequence.
type sequenceFile struct {
	Name  string          `yaml:"name"`
	Steps []sequence.Step `yaml:"steps"`
}

func runPlanCompile(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading sequence file: %w", err)
	}
	var file sequenceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing sequence file: %w", err)
	}

	if planCheckValves {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		known := cfg.ValveNames()
		for i, step := range file.Steps {
			for _, a := range step.Actions {
				if !slices.Contains(known, a.Valve) {
					return fmt.Errorf("step %d: unknown valve %q", i+1, a.Valve)
				}
			}
		}
	}

	plan, err := sequence.Compile(file.Steps)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan.Payload()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d steps, %d ms timed, valves %s\n",
		plan.StepCount(), plan.TotalDurationMS(), strings.Join(plan.Valves(), " "))
	return nil
}
