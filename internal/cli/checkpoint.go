package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhollis/airscore/internal/store"
)

var checkpointDB string

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and reset the build checkpoint",
	Long: `The checkpoint records the last airport whose transaction committed.
A resumed build skips every airport at or before it. Resetting the
checkpoint is the explicit operator action that makes the next resumed
build start from the beginning.`,
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(checkpointDB)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		cp, err := st.Checkpoint()
		if err != nil {
			return err
		}
		if cp.LastSuccessfulICAO == "" {
			fmt.Println("no checkpoint (no airport committed yet)")
			return nil
		}
		fmt.Printf("checkpoint: %s (committed %s)\n", cp.LastSuccessfulICAO, cp.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the checkpoint and skip markers",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(checkpointDB)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.ResetCheckpoint(); err != nil {
			return err
		}
		if err := st.ClearSkipMarkers(); err != nil {
			return err
		}
		fmt.Println("checkpoint and skip markers cleared")
		return nil
	},
}

var checkpointSkippedCmd = &cobra.Command{
	Use:   "skipped",
	Short: "List airports marked skip-until-forced",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(checkpointDB)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		icaos, err := st.SkippedAirports()
		if err != nil {
			return err
		}
		if len(icaos) == 0 {
			fmt.Println("no airports marked skipped")
			return nil
		}
		for _, icao := range icaos {
			fmt.Println(icao)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.PersistentFlags().StringVar(&checkpointDB, "db", "airscore.db", "embedded database path")
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)
	checkpointCmd.AddCommand(checkpointSkippedCmd)
}
