package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/opd-ai/go-sonic/internal/media"
)

func init() {
	nowPlayingCmd.Flags().Bool("json", false, "Print entries as JSON")
	rootCmd.AddCommand(nowPlayingCmd)
}

type nowPlayingRow struct {
	User       string `json:"user"`
	PlayerID   uint   `json:"player_id"`
	MinutesAgo uint   `json:"minutes_ago"`
	Kind       string `json:"kind"`
	MediaID    uint64 `json:"media_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
}

var nowPlayingCmd = &cobra.Command{
	Use:   "now-playing",
	Short: "Show what every user is currently playing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		entries, err := a.client.NowPlaying(ctx)
		if err != nil {
			return err
		}

		rows := make([]nowPlayingRow, 0, len(entries))
		for _, np := range entries {
			row := nowPlayingRow{
				User:       np.User(),
				PlayerID:   np.PlayerID(),
				MinutesAgo: np.MinutesAgo(),
				Kind:       lo.Ternary(np.IsVideo(), "video", "song"),
				MediaID:    np.MediaID(),
			}
			if err := describe(cmd, a, np, &row); err != nil {
				a.logger.Warn("Failed to resolve entry", "user", row.User, "media_id", row.MediaID, "error", err)
			}
			rows = append(rows, row)
		}

		out := cmd.OutOrStdout()
		if lo.Must(cmd.Flags().GetBool("json")) {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(rows) == 0 {
			fmt.Fprintln(out, "Nothing is playing.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USER\tPLAYER\tMIN AGO\tKIND\tID\tTITLE\tARTIST")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t%s\t%s\n",
				r.User, r.PlayerID, r.MinutesAgo, r.Kind, r.MediaID, r.Title, r.Artist)
		}
		return tw.Flush()
	},
}

func describe(cmd *cobra.Command, a *app, np *media.NowPlaying, row *nowPlayingRow) error {
	if np.IsVideo() {
		v, err := np.VideoInfo(cmd.Context(), a.client)
		if err != nil {
			return err
		}
		row.Title = v.Title
		return nil
	}
	s, err := np.SongInfo(cmd.Context(), a.client)
	if err != nil {
		return err
	}
	row.Title, row.Artist = s.Title, s.Artist
	return nil
}
