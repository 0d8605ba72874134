// Package main is the entry point for rangeboard.
package main

import (
	"context"
	"os"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "rangeboard.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rangeboard",
	Short: "Scoreboard server for cyber-defense exercises",
	Long: `rangeboard runs the scoreboard of a cyber-defense exercise: it probes every
team's services on a fixed tick, tracks scores and uptime, hands out inject
tasks, and collects team submissions.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+")")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
