package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

var resetStateCmd = &cobra.Command{
	Use:   "reset-state [state]",
	Short: "Remove a state's politicians so the next run fetches the state again",
	Args:  cobra.ExactArgs(1),
	Run:   runResetState,
}

var resetSectorsCmd = &cobra.Command{
	Use:   "reset-sectors [candidate_id] [cycle]",
	Short: "Remove a candidate's sector rows for one cycle so the next run fetches them again",
	Args:  cobra.ExactArgs(2),
	Run:   runResetSectors,
}

func init() {
	rootCmd.AddCommand(resetStateCmd)
	rootCmd.AddCommand(resetSectorsCmd)
}

func runResetState(cmd *cobra.Command, args []string) {
	state := strings.ToUpper(args[0])
	removed := resetRows(domain.TablePoliticians, domain.RosterSchema, func(t *domain.Table, r domain.Row) bool {
		office, ok := t.Value(r, domain.ColumnOffice)
		return ok && strings.HasPrefix(office, state)
	})
	fmt.Printf("Removed %d politicians for %s\n", removed, state)
}

func runResetSectors(cmd *cobra.Command, args []string) {
	cid := args[0]
	cycle, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("Invalid cycle: %v\n", err)
		os.Exit(1)
	}
	c := strconv.Itoa(cycle)
	removed := resetRows(domain.TableSectors, domain.SectorSchema, func(t *domain.Table, r domain.Row) bool {
		id, _ := t.Value(r, domain.ColumnCandidateID)
		v, _ := t.Value(r, domain.ColumnCycle)
		return id == cid && v == c
	})
	fmt.Printf("Removed %d sector rows for %s in %d\n", removed, cid, cycle)
}

// resetRows deletes matching rows from a stored table and saves it back.
func resetRows(name domain.TableName, schema domain.Schema, match func(*domain.Table, domain.Row) bool) int {
	cfg := loadConfig()
	ctx := context.Background()

	store, err := control.OpenStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	t, err := storage.LoadOrNil(ctx, store, name, schema)
	if err != nil {
		slog.Error("Failed to load table", "table", name, "error", err)
		os.Exit(1)
	}
	if t == nil {
		return 0
	}

	removed := t.Delete(func(r domain.Row) bool { return match(t, r) })
	if removed == 0 {
		return 0
	}
	if err := store.Save(ctx, t); err != nil {
		slog.Error("Failed to save table", "table", name, "error", err)
		os.Exit(1)
	}
	return removed
}
