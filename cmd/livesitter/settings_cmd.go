package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/livesitter/livesitter/internal/backend"
	"github.com/livesitter/livesitter/internal/platform/httpx"
)

func newSettingsCmd(flags *globalFlags) *cobra.Command {
	var (
		autoStart     bool
		quality       string
		maxStreams    int
		retentionDays int
		notifications bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the backend application settings",
		Long: "Without flags the current settings are printed. Any of the flags " +
			"sends a partial update and prints the result.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			client := backend.New(cfg.Backend.BaseURL, httpx.NewClient(cfg.Backend.Timeout))

			var u backend.SettingsUpdate
			changed := false
			fs := cmd.Flags()
			if fs.Changed("auto-start") {
				u.AutoStartStreams, changed = &autoStart, true
			}
			if fs.Changed("quality") {
				u.DefaultStreamQuality, changed = &quality, true
			}
			if fs.Changed("max-streams") {
				u.MaxConcurrentStreams, changed = &maxStreams, true
			}
			if fs.Changed("retention-days") {
				u.RetentionDays, changed = &retentionDays, true
			}
			if fs.Changed("notifications") {
				u.NotificationsEnabled, changed = &notifications, true
			}
			if changed {
				if err := client.UpdateSettings(cmd.Context(), u); err != nil {
					return fmt.Errorf("update settings: %s", backend.UserMessage(err))
				}
			}

			st, err := client.Settings(cmd.Context())
			if err != nil {
				return fmt.Errorf("settings: %s", backend.UserMessage(err))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	fs := cmd.Flags()
	fs.BoolVar(&autoStart, "auto-start", false, "start streams automatically")
	fs.StringVar(&quality, "quality", "", "default stream quality")
	fs.IntVar(&maxStreams, "max-streams", 0, "maximum concurrent streams")
	fs.IntVar(&retentionDays, "retention-days", 0, "recording retention in days")
	fs.BoolVar(&notifications, "notifications", false, "enable notifications")
	return cmd
}
