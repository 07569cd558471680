package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var personCmd = &cobra.Command{
	Use:   "person",
	Short: "Manage enrolled persons",
}

var personListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled persons with today's check-in state",
	RunE:  runPersonList,
}

var personDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a person and all their records",
	Long: `Delete an enrolled person. The schedule rows, attendance events and
face embeddings are removed together in one transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonDelete,
}

var personRenameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Correct a person's name",
	Args:  cobra.ExactArgs(2),
	RunE:  runPersonRename,
}

func init() {
	rootCmd.AddCommand(personCmd)
	personCmd.AddCommand(personListCmd)
	personCmd.AddCommand(personDeleteCmd)
	personCmd.AddCommand(personRenameCmd)

	personListCmd.Flags().String("filter", "", "Case-insensitive name filter")
	personListCmd.Flags().Int("page", 1, "Page to show")
}

func runPersonList(cmd *cobra.Command, args []string) error {
	filter, _ := cmd.Flags().GetString("filter")
	page, _ := cmd.Flags().GetInt("page")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	listing, err := a.deletion().List(context.Background(), filter, page-1)
	if err != nil {
		return fmt.Errorf("listing persons: %w", err)
	}

	if listing.Total == 0 {
		fmt.Println("No enrolled persons match.")
		return nil
	}
	for _, e := range listing.Entries {
		status := "out"
		if e.CheckedIn {
			status = "in"
		}
		fmt.Printf("%-32s %s\n", e.Person.Name, status)
	}
	fmt.Printf("\nPage %d/%d, %d total\n", listing.Page+1, listing.TotalPages, listing.Total)
	return nil
}

func runPersonDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.deletion().Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("deleting %q: %w", args[0], err)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runPersonRename(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.enrollment().Rename(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("renaming %q: %w", args[0], err)
	}
	fmt.Printf("Renamed %s to %s\n", args[0], args[1])
	return nil
}
