// Command engine runs the live execution engine: a paper-trading
// backend by default, driven by wall-clock time, with SQLite interop
// persistence and a restart state store.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/backend"
	"github.com/web3guy0/polybot/internal/clock"
	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/engine"
	"github.com/web3guy0/polybot/internal/price"
	"github.com/web3guy0/polybot/internal/storage"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Msg("engine starting")

	sidecar, err := storage.OpenSidecar(cfg.SidecarPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open persistence sidecar")
	}
	defer sidecar.Close()

	state, err := storage.OpenStateStore(cfg.StateDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state store")
	}
	defer state.Close()

	eng := engine.New(clock.Wall{}).
		WithSidecar(sidecar).
		WithTickInterval(cfg.TickInterval)

	paper := backend.NewPaper("paper", price.FromDouble(cfg.StartingBalance.InexactFloat64()))
	eng.RegisterBackend(paper)

	if balance, err := state.LatestBalance(); err == nil && balance != 0 {
		log.Info().Int64("balance_raw", balance).Msg("restored balance snapshot from prior run")
	}

	live := engine.NewLive(eng).WithSyncInterval(cfg.LiveSyncInterval)
	live.Start()

	log.Info().Msg("engine running, press ctrl-c to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	live.Stop()

	if err := state.SaveBalance(eng.GetBalance().Raw); err != nil {
		log.Error().Err(err).Msg("failed to persist balance snapshot")
	}
	positions := make(map[uint32]int64)
	tickers := make(map[uint32]string)
	for _, pos := range backend.ParsePositions(mustPositions(paper)) {
		positions[pos.MarketHash] = pos.Size
		tickers[pos.MarketHash] = pos.Ticker
	}
	if err := state.SavePositions(positions, tickers); err != nil {
		log.Error().Err(err).Msg("failed to persist positions snapshot")
	}

	log.Info().Msg("goodbye")
}

func mustPositions(b *backend.Paper) string {
	raw, err := b.GetPositions()
	if err != nil {
		return ""
	}
	return raw
}
