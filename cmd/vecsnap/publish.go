package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

func NewPublishCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [image-id...]",
		Short: "Embed stored images and upsert them into the index",
		Long:  `Publish the given images, or every stored image with --all.`,
		RunE:  makePublishRunner(load),
	}

	cmd.Flags().Bool("all", false, "Publish every stored image")
	return cmd
}

func makePublishRunner(load loader) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return fmt.Errorf("give at least one image id or --all")
		}

		a, err := load(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		lib := a.pipeline.Library
		if !lib.PublishEnabled() {
			return fmt.Errorf("index.base_url is not set: %w", domain.ErrPublishDisabled)
		}
		if err := a.initEmbedding(cmd.Context()); err != nil {
			return err
		}

		ids := args
		if all {
			imgs, err := lib.List(cmd.Context(), 0)
			if err != nil {
				return err
			}
			ids = make([]string, len(imgs))
			for i, img := range imgs {
				ids[i] = img.ID
			}
		}

		published := make([]domain.UpsertItem, 0, len(ids))
		for _, id := range ids {
			item, err := lib.Publish(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("publish %s: %w", id, err)
			}
			if wantJSON(cmd) {
				item.Vector = nil
				published = append(published, item)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d dims\n", item.ID, len(item.Vector))
		}

		if wantJSON(cmd) {
			return writeJSON(cmd, published)
		}
		return nil
	}
}
