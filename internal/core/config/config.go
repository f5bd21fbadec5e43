package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	redisclient "github.com/vietddude/harvester/internal/infra/redis"
	"github.com/vietddude/harvester/internal/infra/storage/postgres"
)

// Storage drivers.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	API     APIConfig          `yaml:"api"`
	Harvest HarvestConfig      `yaml:"harvest"`
	Storage StorageConfig      `yaml:"storage"`
	Redis   redisclient.Config `yaml:"redis"`
	Metrics MetricsConfig      `yaml:"metrics"`
	Logging LoggingConfig      `yaml:"logging"`
}

// APIConfig holds the remote API settings.
type APIConfig struct {
	Key        string        `yaml:"key"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	DailyQuota int           `yaml:"daily_quota"` // 0 = unlimited
}

// HarvestConfig selects what a run fetches.
type HarvestConfig struct {
	WaitTime    time.Duration           `yaml:"wait_time"` // default pre-call delay
	LockTTL     time.Duration           `yaml:"lock_ttl"`
	Cycles      CyclesConfig            `yaml:"cycles"`
	States      domain.Selector[string] `yaml:"states"`
	Politicians domain.Selector[string] `yaml:"politicians"`
}

// CyclesConfig is either an explicit list or an inclusive year range.
type CyclesConfig struct {
	Start int   `yaml:"start"`
	End   int   `yaml:"end"`
	List  []int `yaml:"list"`
}

// StorageConfig selects and configures the table store.
type StorageConfig struct {
	Driver     string          `yaml:"driver"`   // csv, sqlite, postgres, memory
	DataDir    string          `yaml:"data_dir"` // csv directory; must exist
	SQLitePath string          `yaml:"sqlite_path"`
	Postgres   postgres.Config `yaml:"postgres"`
}

// MetricsConfig holds metrics server and Pushgateway settings.
type MetricsConfig struct {
	Port           int    `yaml:"port"` // 0 disables the server
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Validate checks the settings a harvest run cannot start without.
func (c *AppConfig) Validate() error {
	if c.API.Key == "" {
		return errors.New("api.key is required")
	}
	switch c.Storage.Driver {
	case DriverCSV, DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverPostgres && c.Storage.Postgres.URL == "" {
		return errors.New("storage.postgres.url is required for the postgres driver")
	}
	return domain.ValidateCycles(c.Harvest.Cycles.List)
}

// Resolve returns the target cycles. An explicit list wins and must be on
// the cycle grid; a range is filtered to it; with neither, the latest cycle
// not after now is used.
func (c CyclesConfig) Resolve(now time.Time) ([]int, error) {
	if len(c.List) > 0 {
		if err := domain.ValidateCycles(c.List); err != nil {
			return nil, err
		}
		return c.List, nil
	}
	if c.Start == 0 && c.End == 0 {
		return []int{domain.LatestElectionCycle(now)}, nil
	}

	start, end := c.Start, c.End
	if end == 0 {
		end = now.Year()
	}
	if start == 0 {
		start = end
	}
	cycles := domain.CyclesBetween(start, end)
	if len(cycles) == 0 {
		return nil, fmt.Errorf("no election cycle between %d and %d", start, end)
	}
	return cycles, nil
}
