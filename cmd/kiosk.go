package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/spf13/cobra"
)

var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Run the attendance terminal",
	Long: `Run the interactive attendance terminal. The kiosk scans faces from
the configured camera, toggles check-in/check-out events and shows the
on-time/late verdict for arrivals. Enrollment and deletion are gated by
the admin password.

Examples:
  # Run against the configured camera
  face-attendance kiosk

  # Keep similarity search in memory for a large roster
  face-attendance kiosk --hnsw`,
	RunE: runKiosk,
}

func init() {
	rootCmd.AddCommand(kioskCmd)
	kioskCmd.Flags().Bool("hnsw", false, "Serve similarity search from an in-memory HNSW index")
}

func runKiosk(cmd *cobra.Command, args []string) error {
	useHNSW, _ := cmd.Flags().GetBool("hnsw")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Vision.CameraURL == "" {
		return fmt.Errorf("CAMERA_URL is required for the kiosk")
	}

	gate := kiosk.NewAdminGate(a.cfg.Kiosk.AdminPasswordHash, a.cfg.Kiosk.AdminPassword)
	if !gate.Configured() {
		return fmt.Errorf("set KIOSK_ADMIN_PASSWORD_HASH (or KIOSK_ADMIN_PASSWORD for development)")
	}

	if useHNSW {
		if err := a.persons.EnableHNSW(context.Background(), a.cfg.Database.HNSWIndexPath); err != nil {
			return fmt.Errorf("enabling HNSW index: %w", err)
		}
		defer func() {
			if err := a.persons.SaveHNSWIndex(context.Background()); err != nil {
				a.log.Warn().Err(err).Msg("saving HNSW index")
			}
		}()
	}

	model := kiosk.New(a.cfg.Kiosk, kiosk.Deps{
		Frames:     vision.NewSnapshotSource(a.cfg.Vision.CameraURL),
		Pipeline:   a.pipeline,
		Resolver:   a.resolver(),
		Ledger:     a.ledger(),
		Evaluator:  attendance.NewEvaluator(a.schedule),
		Enrollment: a.enrollment(),
		Deletion:   a.deletion(),
		Gate:       gate,
	}, a.log)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("kiosk session failed: %w", err)
	}
	return nil
}
