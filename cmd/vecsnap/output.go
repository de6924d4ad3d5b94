package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

func wantJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type imageJSON struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Bytes     int       `json:"bytes"`
	Type      string    `json:"content_type"`
}

func toImageJSON(img domain.StoredImage) imageJSON {
	return imageJSON{
		ID:        img.ID,
		Timestamp: img.Timestamp.UTC(),
		Bytes:     len(img.Data),
		Type:      img.ContentType(),
	}
}

func printImage(cmd *cobra.Command, img domain.StoredImage) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d bytes\n",
		img.ID, img.Timestamp.UTC().Format(time.RFC3339), len(img.Data))
}

func outputHits(cmd *cobra.Command, hits []domain.SearchHit) error {
	if wantJSON(cmd) {
		if hits == nil {
			hits = []domain.SearchHit{}
		}
		return writeJSON(cmd, hits)
	}
	for _, h := range hits {
		fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s\n", h.Score, h.ID)
	}
	return nil
}
