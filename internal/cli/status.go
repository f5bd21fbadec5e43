package cli

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local table sizes and units whose last fetch failed",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	tables := []struct {
		name   domain.TableName
		schema domain.Schema
		detail func(*domain.Table) string
	}{
		{domain.TableStates, domain.StatesSchema, func(t *domain.Table) string {
			return ""
		}},
		{domain.TablePoliticians, domain.RosterSchema, func(t *domain.Table) string {
			return strconv.Itoa(len(rosterStates(t))) + " states"
		}},
		{domain.TableSectors, domain.SectorSchema, func(t *domain.Table) string {
			return strconv.Itoa(len(t.Distinct(domain.ColumnCandidateID))) + " candidates, cycles " +
				joinSorted(t.Distinct(domain.ColumnCycle))
		}},
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Table", "Rows", "Detail"})
	for _, tbl := range tables {
		loaded, err := storage.LoadOrNil(ctx, store, tbl.name, tbl.schema)
		if err != nil {
			slog.Error("Failed to load table", "table", tbl.name, "error", err)
			os.Exit(1)
		}
		if loaded == nil {
			t.AppendRow(table.Row{tbl.name, "-", "not harvested"})
			continue
		}
		t.AppendRow(table.Row{tbl.name, loaded.Len(), tbl.detail(loaded)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	ledger := control.OpenLedger(cfg.Redis)
	defer func() {
		_ = ledger.Close()
	}()
	failed, err := ledger.Failed.List(ctx)
	if err != nil {
		slog.Error("Failed to list failed units", "error", err)
		os.Exit(1)
	}
	if len(failed) == 0 {
		return
	}

	ft := table.NewWriter()
	ft.SetOutputMirror(os.Stdout)
	ft.AppendHeader(table.Row{"Failed unit", "Attempts", "Last attempt", "Run", "Error"})
	for _, f := range failed {
		ft.AppendRow(table.Row{f.Unit.String(), f.Attempts, f.LastAttempt.Format(time.RFC3339), f.RunID, f.Error})
	}
	ft.SetStyle(table.StyleRounded)
	ft.Render()
}

func rosterStates(t *domain.Table) []string {
	seen := make(map[string]struct{})
	for _, office := range t.Distinct(domain.ColumnOffice) {
		seen[domain.StateOf(office)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	return out
}

func joinSorted(values []string) string {
	sort.Strings(values)
	return strings.Join(values, ",")
}
