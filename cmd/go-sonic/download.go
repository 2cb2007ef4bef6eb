package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/opd-ai/go-sonic/internal/downloader"
	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/internal/storage"
)

const kindAlbum = "album"

func init() {
	downloadCmd.Flags().Bool("no-record", false, "Do not record downloads in the database")
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:       "download <song|video|episode|album> <id>...",
	Short:     "Download original media files",
	Long:      "Download original media files. Episodes are addressed by stream id; albums expand to their songs.",
	Args:      cobra.MinimumNArgs(2),
	ValidArgs: []string{downloader.KindSong, downloader.KindVideo, downloader.KindEpisode, kindAlbum},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if err := a.config.Download.CreateDirectories(); err != nil {
			return err
		}

		var store *storage.Manager
		if !lo.Must(cmd.Flags().GetBool("no-record")) {
			store, err = storage.NewManager(a.config.Download.Database, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()
		}

		kind, ids := args[0], args[1:]
		var jobs []downloader.Job
		for _, id := range ids {
			if kind == kindAlbum {
				album, err := a.client.Album(ctx, id)
				if err != nil {
					return err
				}
				jobs = append(jobs, lo.Map(album.Songs, func(s media.Song, _ int) downloader.Job {
					return downloader.Job{Kind: downloader.KindSong, ID: s.ID.String(), Title: s.Title, Ext: s.Suffix, Media: &s}
				})...)
				continue
			}
			job, err := downloader.ResolveJob(ctx, a.client, kind, id)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}

		files := storage.NewFileManager(a.config.Download.Directory, a.logger)
		m := downloader.New(&a.config.Download, files, store, a.logger)

		results := m.DownloadAll(ctx, a.client, jobs)
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(out, "FAIL %s %s: %v\n", r.Job.Kind, r.Job.ID, r.Err)
				continue
			}
			fmt.Fprintf(out, "OK   %s %s -> %s (%d bytes)\n", r.Job.Kind, r.Job.ID, r.Record.LocalPath, r.Record.Size)
		}

		if failed := lo.CountBy(results, func(r downloader.Result) bool { return r.Err != nil }); failed > 0 {
			return fmt.Errorf("%d of %d downloads failed", failed, len(results))
		}
		return nil
	},
}
