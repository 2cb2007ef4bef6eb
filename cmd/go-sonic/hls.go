package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/opd-ai/go-sonic/internal/downloader"
	"github.com/opd-ai/go-sonic/internal/hls"
	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/internal/storage"
)

func init() {
	hlsCmd.Flags().Uint("bit-rate", 0, "Requested bit rate in kbps when fetching by video id")
	hlsCmd.Flags().Bool("save", false, "Download every segment and store the joined video")
	hlsCmd.Flags().Bool("segments", false, "List every segment")
	rootCmd.AddCommand(hlsCmd)
}

var hlsCmd = &cobra.Command{
	Use:   "hls <file|video-id>",
	Short: "Parse a segmented playlist from a file or fetch one for a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		listSegments := lo.Must(cmd.Flags().GetBool("segments"))

		if f, err := os.Open(args[0]); err == nil {
			defer f.Close()
			pl, err := hls.ParseReader(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			printPlaylist(out, pl, listSegments)
			return nil
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		video, err := media.GetVideo(ctx, a.client, args[0])
		if err != nil {
			return err
		}
		video.SetMaxBitRate(lo.Must(cmd.Flags().GetUint("bit-rate")))

		pl, err := a.client.HLSPlaylist(ctx, video)
		if err != nil {
			return err
		}
		printPlaylist(out, pl, listSegments)

		if !lo.Must(cmd.Flags().GetBool("save")) {
			return nil
		}

		if err := a.config.Download.CreateDirectories(); err != nil {
			return err
		}
		store, err := storage.NewManager(a.config.Download.Database, a.logger)
		if err != nil {
			return err
		}
		defer store.Close()

		files := storage.NewFileManager(a.config.Download.Directory, a.logger)
		m := downloader.New(&a.config.Download, files, store, a.logger)
		job := downloader.Job{Kind: downloader.KindVideo, ID: args[0], Title: video.Title, Media: video}
		rec, err := m.SaveSegments(ctx, a.client, job, pl)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s (%d bytes)\n", rec.LocalPath, rec.Size)
		return nil
	},
}

func printPlaylist(w io.Writer, pl *hls.Playlist, segments bool) {
	fmt.Fprintf(w, "extension:       %s\n", pl.Extension())
	fmt.Fprintf(w, "version:         %d\n", pl.Version())
	fmt.Fprintf(w, "target duration: %ds\n", pl.TargetDuration())
	fmt.Fprintf(w, "segments:        %d\n", pl.Len())
	fmt.Fprintf(w, "total duration:  %ds\n", pl.Duration())
	if !segments {
		return
	}
	for i, seg := range pl.All() {
		fmt.Fprintf(w, "%4d  %3ds  %s\n", i, seg.Increment, seg.URL)
	}
}
