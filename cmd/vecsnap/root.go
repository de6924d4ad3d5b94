package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. load is called lazily by each
// subcommand that needs the pipeline.
func NewRootCmd(version string, load loader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vecsnap",
		Short:         "Capture photos and find visually similar ones",
		Long:          `Capture, optimize and store photos locally, embed them and search a remote vector index.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	addSubcommands(rootCmd, load)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Config file (default: config/<ENV>.yaml)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command, load loader) {
	root.AddCommand(
		NewServeCmd(load),
		NewCaptureCmd(load),
		NewSearchCmd(load),
		NewImagesCmd(load),
		NewPublishCmd(load),
		NewPingCmd(load),
		NewVersionCmd(),
	)
}
