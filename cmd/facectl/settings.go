package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"facewatch/internal/config"
	"facewatch/internal/repository/sqlite"
)

var settingsSet []string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
	Example: "  facectl settings\n" +
		"  facectl settings --set recognition_threshold=0.6 --set battery_saver=true",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.LoadSettings(cfg.SettingsPath)
		if err != nil {
			return err
		}

		if len(settingsSet) > 0 {
			next := store.Get()
			for _, kv := range settingsSet {
				key, value, ok := strings.Cut(kv, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("invalid --set %q, want key=value", kv)
				}
				if err := yaml.Unmarshal([]byte(strings.TrimSpace(key)+": "+value), &next); err != nil {
					return fmt.Errorf("invalid value for %s: %w", key, err)
				}
			}
			if _, err := store.Update(func(s *config.Settings) { *s = next }); err != nil {
				return err
			}
		}

		out, err := yaml.Marshal(store.Get())
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show detection statistics of past server sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		sessions := sqlite.NewSessionRepository(db)
		totals, err := sessions.Totals()
		if err != nil {
			return err
		}

		rate := 0.0
		if totals.TotalDetections > 0 {
			rate = float64(totals.SuccessfulRecognitions) / float64(totals.TotalDetections) * 100
		}
		fmt.Printf("Sessions: %d\nDetections: %d\nRecognized: %d (%.1f%%)\nEnrollments: %d\n",
			totals.Sessions, totals.TotalDetections, totals.SuccessfulRecognitions, rate, totals.RegistrationCount)
		if totals.LastDetectionTime != nil {
			fmt.Printf("Last detection: %s\n", totals.LastDetectionTime.Local().Format("2006-01-02 15:04:05"))
		}

		recent, err := sessions.GetAll(10)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			return nil
		}

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTARTED\tDETECTIONS\tRECOGNIZED\tRATE")
		for _, s := range recent {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.1f%%\n", s.ID, s.Stats.StartedAt.Local().Format("2006-01-02 15:04"),
				s.Stats.TotalDetections, s.Stats.SuccessfulRecognitions, s.Stats.RecognitionRate())
		}
		return w.Flush()
	},
}

func init() {
	settingsCmd.Flags().StringArrayVar(&settingsSet, "set", nil, "set an option, e.g. detection_sensitivity=1.2")
	rootCmd.AddCommand(settingsCmd, statsCmd)
}
