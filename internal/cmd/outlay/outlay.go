// Package outlay parses daemon flags and launches the payment runtime.
package outlay

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/finialabs/outlay/internal/executor"
	"github.com/finialabs/outlay/internal/identity"
	"github.com/finialabs/outlay/internal/ledger"
	entrypoint "github.com/finialabs/outlay/internal/platform/cmd"
	"github.com/finialabs/outlay/internal/storage/sqlite"
	"github.com/finialabs/outlay/internal/telemetry"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/finialabs/outlay/internal/treasury/service"
	"github.com/shopspring/decimal"
)

// Config holds daemon configuration.
type Config struct {
	DBPath string `env:"OUTLAY_DB_PATH" envDefault:"data/outlay.db"`
	// Manager is the address allowed to open, edit, and cancel payments.
	Manager string `env:"OUTLAY_MANAGER"`
	// Assets lists settled assets as code:decimals pairs, e.g. "usdc:6,flux:18".
	Assets string `env:"OUTLAY_ASSETS" envDefault:"usdc:6"`
	// Funding lists initial treasury balances as code:amount pairs.
	Funding string `env:"OUTLAY_FUNDING"`
	// Handles seeds the registry snapshot as handle=address pairs.
	Handles string `env:"OUTLAY_HANDLES"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The payment SQLite database path")
	fs.StringVar(&cfg.Manager, "manager", cfg.Manager, "The treasury manager address")
	fs.StringVar(&cfg.Assets, "assets", cfg.Assets, "Settled assets as code:decimals pairs")
	fs.StringVar(&cfg.Funding, "funding", cfg.Funding, "Initial treasury balances as code:amount pairs")
	fs.StringVar(&cfg.Handles, "handles", cfg.Handles, "Registry seed as handle=address pairs")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run wires the payment runtime and blocks until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceOutlay, func(ctx context.Context) error {
		runtime, err := Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := runtime.Close(); err != nil {
				log.Printf("close payment store: %v", err)
			}
		}()

		log.Printf("payment runtime ready db=%s assets=%s", cfg.DBPath, cfg.Assets)
		<-ctx.Done()
		return nil
	})
}

// Runtime is the wired payment core and its owned resources.
type Runtime struct {
	Service  *service.Service
	Registry *identity.Snapshot
	Vault    *executor.Vault
	store    *sqlite.Store
}

// Close releases the runtime's resources.
func (r *Runtime) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

// Build assembles the payment runtime from configuration: sqlite store,
// treasury vault, per-asset settlement books, registry snapshot, and the
// orchestration service on top.
func Build(ctx context.Context, cfg Config) (*Runtime, error) {
	assets, err := ParseAssets(cfg.Assets)
	if err != nil {
		return nil, fmt.Errorf("parse assets: %w", err)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("at least one settled asset is required")
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open payment store: %w", err)
	}

	vault := executor.NewVault()
	exec := executor.NewLocal(vault)

	byCode := make(map[string]domain.Asset, len(assets))
	for _, asset := range assets {
		byCode[asset.Code] = asset
	}
	factory := func(asset domain.Asset) (ledger.Ledger, error) {
		known, ok := byCode[asset.Code]
		if !ok {
			return nil, fmt.Errorf("asset %q is not settled here", asset.Code)
		}
		book := ledger.NewBook(known.Code, known.Decimals, nil)
		exec.Register(book)
		return book, nil
	}

	registry := identity.NewSnapshot()
	if err := seedRegistry(registry, cfg.Handles); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed registry: %w", err)
	}
	if err := seedFunding(vault, byCode, cfg.Funding); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed treasury funding: %w", err)
	}

	svc, err := service.New(service.Config{
		Manager:  cfg.Manager,
		Registry: registry,
		Store:    store,
		Ledgers:  factory,
		Executor: exec,
		Funds:    vault,
		Emitter:  telemetry.NewEmitter(store),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build payment service: %w", err)
	}

	return &Runtime{Service: svc, Registry: registry, Vault: vault, store: store}, nil
}

// ParseAssets parses a comma-separated list of code:decimals pairs.
func ParseAssets(spec string) ([]domain.Asset, error) {
	var assets []domain.Asset
	for _, pair := range splitPairs(spec) {
		code, decimals, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("asset %q must be code:decimals", pair)
		}
		count, err := strconv.ParseInt(strings.TrimSpace(decimals), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("asset %q decimals: %w", pair, err)
		}
		asset, err := domain.NormalizeAsset(domain.Asset{Code: code, Decimals: int32(count)})
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", pair, err)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func seedRegistry(registry *identity.Snapshot, spec string) error {
	for _, pair := range splitPairs(spec) {
		handle, address, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("handle %q must be handle=address", pair)
		}
		if err := registry.Assign(handle, address, time.Now()); err != nil {
			return fmt.Errorf("handle %q: %w", pair, err)
		}
	}
	return nil
}

func seedFunding(vault *executor.Vault, assets map[string]domain.Asset, spec string) error {
	for _, pair := range splitPairs(spec) {
		code, raw, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("funding %q must be code:amount", pair)
		}
		code = strings.ToLower(strings.TrimSpace(code))
		if _, settled := assets[code]; !settled {
			return fmt.Errorf("funding %q names an unsettled asset", pair)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("funding %q amount: %w", pair, err)
		}
		if amount.Sign() < 0 {
			return fmt.Errorf("funding %q must not be negative", pair)
		}
		vault.Credit(code, amount)
	}
	return nil
}

func splitPairs(spec string) []string {
	var pairs []string
	for _, part := range strings.Split(spec, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			pairs = append(pairs, trimmed)
		}
	}
	return pairs
}
