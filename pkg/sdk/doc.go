// Package vecsnap embeds the capture and image-search pipeline in a Go program.
//
// Photos are optimized, kept in a local store (SQLite, Badger, Redis or
// Valkey), turned into unit-length vectors by a pluggable embedding
// backend and published to a remote nearest-neighbor index.
//
//	client, _ := vecsnap.New(ctx,
//	    vecsnap.WithSQLite("photos.db"),
//	    vecsnap.WithInferenceEmbedder("http://localhost:8080", "clip-vit-b32"),
//	    vecsnap.WithIndex("http://localhost:9000"),
//	    vecsnap.WithAutoPublish(),
//	)
//	defer client.Close()
//
//	img, _ := client.IngestFile(ctx, "snap.jpg")
//	hits, _ := client.Search(ctx, img.ID, 5)
//
// # Session search
//
// Session tracks a single "current" request the way an interactive UI does:
// repeated submissions of the same image are served by one run, and a result
// arriving for an image that is no longer current is discarded.
//
//	state, err := client.Session(ctx, img.ID)
//	if errors.Is(err, vecsnap.ErrSuperseded) {
//	    // a newer image took over
//	}
package vecsnap
