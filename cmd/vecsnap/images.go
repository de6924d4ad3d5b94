package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewImagesCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage stored images",
	}

	cmd.AddCommand(
		newImagesListCmd(load),
		newImagesGetCmd(load),
		newImagesDeleteCmd(load),
		newImagesClearCmd(load),
	)
	return cmd
}

func newImagesListCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored images, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			imgs, err := a.pipeline.Library.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if wantJSON(cmd) {
				out := make([]imageJSON, len(imgs))
				for i, img := range imgs {
					out[i] = toImageJSON(img)
				}
				return writeJSON(cmd, out)
			}
			for _, img := range imgs {
				printImage(cmd, img)
			}
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 0, "Maximum images (0 = all)")
	return cmd
}

func newImagesGetCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <image-id>",
		Short: "Show one stored image or write its bytes to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")

			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			img, err := a.pipeline.Library.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, img.Data, 0o600); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}
			if wantJSON(cmd) {
				return writeJSON(cmd, toImageJSON(img))
			}
			printImage(cmd, img)
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "Write the image bytes to this file")
	return cmd
}

func newImagesDeleteCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <image-id>...",
		Short: "Delete images locally and from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				if err := a.pipeline.Library.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
}

func newImagesClearCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored image and its index entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if force, _ := cmd.Flags().GetBool("force"); !force {
				return fmt.Errorf("refusing to clear without --force")
			}

			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.pipeline.Library.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Confirm deletion")
	return cmd
}
