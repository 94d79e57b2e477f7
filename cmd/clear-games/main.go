// cmd/clear-games
//
// Deletes every game record from the configured store (STORE_DRIVER, REDIS_URL,
// SQLITE_PATH). Redis keys are walked with SCAN, never KEYS.
//
//	go run ./cmd/clear-games          # asks for confirmation
//	go run ./cmd/clear-games -yes     # no prompt
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/internal/config"
	"github.com/robalobadob/wavelength/internal/store"
)

func main() {
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	envFile := flag.String("env", ".env", "dotenv file to load if present")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Warn().Err(err).Msg("read env file")
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.StoreDriver == config.DriverMemory {
		log.Fatal().Msg("STORE_DRIVER=memory keeps games inside the server process; nothing to clear from here")
	}

	if !*yes && !confirm(fmt.Sprintf("Delete ALL games from the %s store? [y/N] ", cfg.StoreDriver)) {
		fmt.Println("aborted")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	st, err := store.Open(ctx, cfg.StoreDriver, cfg.RedisURL, cfg.SQLitePath, cfg.StoreOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("open game store")
	}
	defer st.Close()

	n, err := st.Clear(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("deleted", n).Msg("clear games")
	}
	log.Info().Int("deleted", n).Str("store", cfg.StoreDriver).Msg("cleared games")
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
