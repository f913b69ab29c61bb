package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"nftmarket/config"
	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/native/bank"
	"nftmarket/native/common"
	"nftmarket/native/custody"
	"nftmarket/native/escrow"
	"nftmarket/native/market"
	"nftmarket/observability/logging"
	"nftmarket/observability/metrics"
	"nftmarket/rpc"
	"nftmarket/storage"
)

// logEmitter forwards engine events to the structured logger so operators
// can trace settlements without an external indexer.
type logEmitter struct {
	log *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if evt.EventType() == escrow.EventTypeCreditStored {
		metrics.Market().CreditStored()
	}
	attrs := []any{slog.String("type", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.log.Info("market event", attrs...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MARKET_ENV"))
	logger := logging.Setup("marketd", env)

	if err := run(*configFile, logger); err != nil {
		logger.Error("marketd failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configFile string, logger *slog.Logger) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	allowList, err := cfg.AllowList()
	if err != nil {
		return fmt.Errorf("parse whitelisted collections: %w", err)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	emitter := logEmitter{log: logger}

	book := bank.NewBook(manager)
	registry := custody.NewRegistry(manager)

	ledger := escrow.NewLedger()
	ledger.SetState(manager)
	ledger.SetBank(book)
	ledger.SetVault(market.Vault())
	ledger.SetEmitter(emitter)

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetCustodian(registry)
	engine.SetBank(book)
	engine.SetLedger(ledger)
	engine.SetEmitter(emitter)
	engine.SetAllowList(allowList)
	engine.SetWithdrawPeriod(cfg.WithdrawPeriod)
	engine.SetMaxFeeRecipients(cfg.MaxFeeRecipients)
	engine.SetPauses(common.StaticPauses(cfg.Pauses()))

	server := rpc.NewServer(engine, logger)
	logger.Info("marketd ready",
		slog.String("data_dir", cfg.DataDir),
		slog.Int("whitelisted_collections", len(allowList)),
		slog.Int64("withdraw_period", cfg.WithdrawPeriod))
	return server.Start(cfg.RPCAddress)
}
