package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/flowbench-core/internal/profile"
)

var (
	profilePlateaus int
	profileShape    float64
	profileReverse  bool
	profileJSON     bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <kind> <resolution>",
	Short: "Print a servo motion profile",
	Long: `Generates the waypoints a servo valve follows when opening, one per line.
Kinds: linear, instant, stepped, exponential, logarithmic.`,
	Args: cobra.ExactArgs(2),
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().IntVar(&profilePlateaus, "plateaus", profile.DefaultPlateaus, "number of levels for the stepped profile")
	profileCmd.Flags().Float64Var(&profileShape, "shape", profile.DefaultShape, "curve constant for exponential and logarithmic profiles")
	profileCmd.Flags().BoolVar(&profileReverse, "reverse", false, "print the closing profile")
	profileCmd.Flags().BoolVar(&profileJSON, "json", false, "print the points as a JSON array")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	kind, err := profile.ParseKind(args[0])
	if err != nil {
		return err
	}
	resolution, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid resolution %q: %w", args[1], err)
	}

	points, err := profile.GenerateWithOptions(kind, resolution, profile.Options{
		Plateaus: profilePlateaus,
		Shape:    profileShape,
	})
	if err != nil {
		return err
	}
	if profileReverse {
		points = profile.Reverse(points)
	}

	out := cmd.OutOrStdout()
	if profileJSON {
		return json.NewEncoder(out).Encode(points)
	}
	for _, p := range points {
		fmt.Fprintln(out, strconv.FormatFloat(p, 'f', 6, 64))
	}
	return nil
}
