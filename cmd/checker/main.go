// Command checker prints wallet balances on one chain as JSON and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"chain_provider/internal/app/bootstrap"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/infrastructure/configloader"
	"chain_provider/internal/infrastructure/walletloader"
	"chain_provider/internal/pkg/logger"
)

func main() {
	var (
		cfgPath     = flag.String("config", configloader.PathFromEnv(), "path to the YAML configuration")
		chain       = flag.String("chain", "ethereum", "chain identifier or numeric chain id")
		address     = flag.String("address", "", "wallet address")
		walletsFile = flag.String("wallets", "", "file with one wallet address per line")
		tokens      = flag.String("tokens", "", "comma separated token addresses; default is the chain's token list")
		timeout     = flag.Duration("timeout", 30*time.Second, "overall deadline")
	)
	flag.Parse()

	if *address == "" && *walletsFile == "" {
		fmt.Fprintln(os.Stderr, "-address or -wallets is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := configloader.Load(*cfgPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	zapLogger, err := logger.New("warn", false)
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	wallets := []string{*address}
	if *walletsFile != "" {
		wallets, err = walletloader.Load(*walletsFile, logger.NewZapAdapter(zapLogger))
		if err != nil {
			logrus.Fatalf("Failed to load wallets: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to build provider", zap.Error(err))
	}
	defer app.Close()

	var list []string
	if *tokens != "" {
		list = strings.Split(*tokens, ",")
	}

	results := make([]*entity.WalletBalances, 0, len(wallets))
	partial := false
	for _, w := range wallets {
		res, err := app.Balances.GetWalletBalances(ctx, *chain, w, list)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", w, err)
			os.Exit(1)
		}
		partial = partial || len(res.Errors) > 0
		results = append(results, res)
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if partial {
		os.Exit(3)
	}
}
