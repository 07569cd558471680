package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> <photo.jpg>",
	Short: "Enroll a person from a photo",
	Long: `Enroll a person from a photo file instead of the kiosk camera.
The photo must contain exactly one clear face. A work schedule for today
is stored with the enrollment.

Examples:
  face-attendance enroll "Jana Malá" jana.jpg
  face-attendance enroll "Jana Malá" jana.jpg --start 08:00 --end 16:30`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().String("start", "09:00", "Scheduled start time (HH:MM)")
	enrollCmd.Flags().String("end", "18:00", "Scheduled end time (HH:MM)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := args[0]
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")

	frame, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	person, err := a.enrollment().Enroll(context.Background(), name, start, end, frame)
	if err != nil {
		return fmt.Errorf("enrolling %q: %w", name, err)
	}

	fmt.Printf("Enrolled %s (id %d), schedule %s-%s\n", person.Name, person.ID, start, end)
	return nil
}
