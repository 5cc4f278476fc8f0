package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "scene-crew",
		Short: "Scene Crew - multi-agent scene builder for the Unreal editor",
		Long: `Scene Crew directs a team of AI agents that build 3D scenes.
The Boss gives a prompt; the Strategist plans tasks; the Architect,
Programmer and friends write Unreal Editor Python that is executed
remotely in the editor process.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
