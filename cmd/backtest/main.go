// Command backtest replays a recorded price tape (CSV or JSON)
// through the execution engine using a virtual clock, so algorithm and
// tracker code runs exactly as it would live.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/backtest"
	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/price"
)

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

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: backtest <tape.csv|tape.json>")
	}
	tapePath := os.Args[1]

	e := backtest.New(0)
	paper := e.AddBackend("paper", price.FromDouble(cfg.StartingBalance.InexactFloat64()),
		backtest.LatencyModel{MeanLatencyNs: cfg.Latency.MeanLatencyNs},
		backtest.SlippageModel{FixedBps: cfg.Slippage.FixedBps, VolMultiplier: cfg.Slippage.VolMultiplier})

	var runErr error
	if strings.EqualFold(filepath.Ext(tapePath), ".json") {
		runErr = e.RunFromJSON(tapePath)
	} else {
		runErr = e.RunFromCSV(tapePath)
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("backtest run failed")
	}

	log.Info().
		Str("backend", paper.Name()).
		Str("balance", paper.GetBalance().String()).
		Msg("backtest complete")
}
