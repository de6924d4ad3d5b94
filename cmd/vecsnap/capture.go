package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewCaptureCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture one photo and store it",
		Long: `Acquire a photo from the capture device, optimize it and store it locally.
The device comes from capture.device unless --file, --stdin or --watch is given.`,
		Args: cobra.NoArgs,
		RunE: makeCaptureRunner(load),
	}

	addCaptureFlags(cmd)
	cmd.Flags().IntP("count", "n", 1, "Number of photos to capture")
	return cmd
}

func addCaptureFlags(cmd *cobra.Command) {
	cmd.Flags().String("file", "", "Read the photo from this file")
	cmd.Flags().Bool("stdin", false, "Read the photo from standard input")
	cmd.Flags().String("watch", "", "Wait for new photos in this folder")
	cmd.MarkFlagsMutuallyExclusive("file", "stdin", "watch")
}

func makeCaptureRunner(load loader) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		count, _ := cmd.Flags().GetInt("count")
		if count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}

		a, err := load(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		// auto-publish embeds, so the backend must be up
		if a.pipeline.Library.PublishEnabled() && a.cfg.Index.AutoPublish {
			if err := a.initEmbedding(cmd.Context()); err != nil {
				return err
			}
		}

		captured := make([]imageJSON, 0, count)
		for range count {
			img, err := a.pipeline.Capture.Ingest(cmd.Context())
			if err != nil {
				return fmt.Errorf("capture: %w", err)
			}
			if wantJSON(cmd) {
				captured = append(captured, toImageJSON(img))
				continue
			}
			printImage(cmd, img)
		}

		if wantJSON(cmd) {
			return writeJSON(cmd, captured)
		}
		return nil
	}
}
