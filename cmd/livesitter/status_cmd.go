package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/livesitter/livesitter/internal/backend"
	"github.com/livesitter/livesitter/internal/platform/httpx"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the converter's active streams",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			client := backend.New(cfg.Backend.BaseURL, httpx.NewClient(cfg.Backend.Timeout))
			st, err := client.StreamStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("stream status: %s", backend.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			fmt.Fprintf(out, "%d active stream(s)\n", st.TotalStreams)
			if len(st.ActiveStreams) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STREAM\tSTATUS\tSTARTED\tSOURCE")
			for _, s := range st.ActiveStreams {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.StreamID, s.Status, s.StartedAt.Format("2006-01-02 15:04:05"), s.RTSPURL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status as JSON")
	return cmd
}
