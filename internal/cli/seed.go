package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

var forceSeed bool

var seedStatesCmd = &cobra.Command{
	Use:   "seed-states",
	Short: "Write the 50 states and DC into the States reference table",
	Run:   runSeedStates,
}

func init() {
	seedStatesCmd.Flags().BoolVar(&forceSeed, "force", false, "overwrite an existing States table")
	rootCmd.AddCommand(seedStatesCmd)
}

func runSeedStates(cmd *cobra.Command, args []string) {
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

	existing, err := storage.LoadOrNil(ctx, store, domain.TableStates, domain.StatesSchema)
	if err != nil {
		slog.Error("Failed to load states", "error", err)
		os.Exit(1)
	}
	if existing.Len() > 0 && !forceSeed {
		fmt.Printf("States table already has %d rows; use --force to overwrite\n", existing.Len())
		return
	}

	states := domain.NewStates(domain.USStates)
	if err := store.Save(ctx, states); err != nil {
		slog.Error("Failed to save states", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d states\n", states.Len())
}
