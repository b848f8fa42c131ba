package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	redisadapter "github.com/flashbots/dex-arb-bot/adapters/redis"
	"github.com/flashbots/dex-arb-bot/arbitrage"
	"github.com/flashbots/dex-arb-bot/config"
	"github.com/flashbots/dex-arb-bot/relay"
	"github.com/flashbots/dex-arb-bot/venue"
	"github.com/flashbots/go-utils/cli"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

var (
	version = "dev" // is set during build process

	// Default values
	defaultDebug            = os.Getenv("DEBUG") == "1"
	defaultLogProd          = os.Getenv("LOG_PROD") == "1"
	defaultLogService       = os.Getenv("LOG_SERVICE")
	defaultMetricsPort      = cli.GetEnv("METRICS_PORT", "8088")
	defaultEthEndpoint      = cli.GetEnv("ETH_ENDPOINT", "http://127.0.0.1:8545")
	defaultRelayEndpoint    = cli.GetEnv("RELAY_ENDPOINT", "https://relay.flashbots.net")
	defaultContract         = cli.GetEnv("ARBITRAGE_CONTRACT", "")
	defaultMarketsConfig    = cli.GetEnv("MARKETS_CONFIG", "markets.yaml")
	defaultMaxGasPriceGwei  = cli.GetEnv("MAX_GAS_PRICE_GWEI", "100")
	defaultMinProfit        = cli.GetEnv("MIN_PROFIT", "0.01")
	defaultFlashLoanFeeBps  = cli.GetEnv("FLASH_LOAN_FEE_BPS", "9")
	defaultCacheTTL         = cli.GetEnv("CACHE_TTL", "5s")
	defaultPollInterval     = cli.GetEnv("POLL_INTERVAL", "1s")
	defaultQuoteTimeout     = cli.GetEnv("QUOTE_TIMEOUT", "2s")
	defaultNodeTimeout      = cli.GetEnv("NODE_TIMEOUT", "2s")
	defaultVenueConcurrency = cli.GetEnv("VENUE_CONCURRENCY", "8")
	defaultPairConcurrency  = cli.GetEnv("PAIR_CONCURRENCY", "4")
	defaultQuoteRateLimit   = cli.GetEnv("QUOTE_RATE_LIMIT", "0")
	defaultRedisEndpoint    = cli.GetEnv("REDIS_ENDPOINT", "")
	defaultChannelName      = cli.GetEnv("REDIS_CHANNEL_NAME", "arb-executions")
	defaultPostgresDSN      = cli.GetEnv("POSTGRES_DSN", "")

	// Flags
	debugPtr            = flag.Bool("debug", defaultDebug, "print debug output")
	logProdPtr          = flag.Bool("log-prod", defaultLogProd, "log in production mode (json)")
	logServicePtr       = flag.String("log-service", defaultLogService, "'service' tag to logs")
	metricsPortPtr      = flag.String("metrics-port", defaultMetricsPort, "port for metrics and pprof")
	ethPtr              = flag.String("eth", defaultEthEndpoint, "eth endpoint")
	relayPtr            = flag.String("relay", defaultRelayEndpoint, "bundle relay endpoint")
	contractPtr         = flag.String("contract", defaultContract, "arbitrage contract address")
	marketsConfigPtr    = flag.String("markets-config", defaultMarketsConfig, "tokens, pairs and venues config file")
	maxGasPriceGweiPtr  = flag.String("max-gas-price-gwei", defaultMaxGasPriceGwei, "do not scan above this gas price (gwei)")
	minProfitPtr        = flag.String("min-profit", defaultMinProfit, "minimum net profit of an opportunity")
	flashLoanFeeBpsPtr  = flag.Int64("flash-loan-fee-bps", mustParseInt(defaultFlashLoanFeeBps), "flash loan fee (basis points)")
	cacheTTLPtr         = flag.Duration("cache-ttl", mustParseDuration(defaultCacheTTL), "price snapshot ttl")
	pollIntervalPtr     = flag.Duration("poll-interval", mustParseDuration(defaultPollInterval), "sleep between scanning passes")
	quoteTimeoutPtr     = flag.Duration("quote-timeout", mustParseDuration(defaultQuoteTimeout), "timeout of a single venue call")
	nodeTimeoutPtr      = flag.Duration("node-timeout", mustParseDuration(defaultNodeTimeout), "timeout of a single gas price, nonce or block number read")
	venueConcurrencyPtr = flag.Int("venue-concurrency", int(mustParseInt(defaultVenueConcurrency)), "concurrent venue calls per pair")
	pairConcurrencyPtr  = flag.Int("pair-concurrency", int(mustParseInt(defaultPairConcurrency)), "pairs analyzed concurrently")
	quoteRateLimitPtr   = flag.Float64("quote-rate-limit", mustParseFloat(defaultQuoteRateLimit), "venue calls per second against the node, 0 is unlimited")
	redisPtr            = flag.String("redis", defaultRedisEndpoint, "redis url string, execution feed is disabled when empty")
	channelPtr          = flag.String("channel", defaultChannelName, "redis pub/sub channel name string")
	postgresDSNPtr      = flag.String("postgres-dsn", defaultPostgresDSN, "postgres dsn, execution journal is disabled when empty")
)

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	if *logProdPtr {
		atom := zap.NewAtomicLevel()
		if *debugPtr {
			atom.SetLevel(zap.DebugLevel)
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		logger = zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(os.Stdout),
			atom,
		))
	}
	defer func() { _ = logger.Sync() }()
	if *logServicePtr != "" {
		logger = logger.With(zap.String("service", *logServicePtr))
	}

	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	logger.Info("Starting dex-arb-bot", zap.String("version", version))

	// private keys are only read from the environment
	signingKey, err := crypto.HexToECDSA(strings.TrimPrefix(os.Getenv("PRIVATE_KEY"), "0x"))
	if err != nil {
		logger.Fatal("Failed to load PRIVATE_KEY", zap.Error(err))
	}
	relayKey := signingKey
	if v := os.Getenv("RELAY_SIGNING_KEY"); v != "" {
		relayKey, err = crypto.HexToECDSA(strings.TrimPrefix(v, "0x"))
		if err != nil {
			logger.Fatal("Failed to load RELAY_SIGNING_KEY", zap.Error(err))
		}
	}

	if !common.IsHexAddress(*contractPtr) {
		logger.Fatal("Invalid arbitrage contract address", zap.String("contract", *contractPtr))
	}
	contract := common.HexToAddress(*contractPtr)

	cfg, err := engineConfig()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	markets, err := config.Load(*marketsConfigPtr)
	if err != nil {
		logger.Fatal("Failed to load markets config", zap.Error(err))
	}

	ethBackend, err := ethclient.Dial(*ethPtr)
	if err != nil {
		logger.Fatal("Failed to connect to ethBackend endpoint", zap.Error(err))
	}

	var chainID *big.Int
	err = backoff.Retry(func() error {
		chainID, err = ethBackend.ChainID(ctx)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
	if err != nil {
		logger.Fatal("Failed to get chain id", zap.Error(err))
	}

	venues, err := buildVenues(logger, markets.Venues, ethBackend, *quoteRateLimitPtr)
	if err != nil {
		logger.Fatal("Failed to build venues", zap.Error(err))
	}

	submitter := arbitrage.NewSubmitter(arbitrage.SubmitterOpts{
		Log:            logger,
		Eth:            ethBackend,
		Relay:          relay.NewClient(*relayPtr, relayKey),
		SigningKey:     signingKey,
		ChainID:        chainID,
		Contract:       contract,
		BundleValidity: cfg.BundleValidity,
		NodeTimeout:    cfg.NodeTimeout,
	})
	logger.Info("Trading account", zap.String("address", submitter.Address().Hex()),
		zap.String("chainID", chainID.String()), zap.String("contract", contract.Hex()))

	var sinks []arbitrage.ResultSink
	if *redisPtr != "" {
		redisOpts, err := redis.ParseURL(*redisPtr)
		if err != nil {
			logger.Fatal("Failed to parse redis url", zap.Error(err))
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		sinks = append(sinks, redisadapter.NewExecutionFeed(redisClient, *channelPtr, 24*time.Hour, "arb-executions:"))
	}
	if *postgresDSNPtr != "" {
		dbBackend, err := arbitrage.NewDBBackend(*postgresDSNPtr)
		if err != nil {
			logger.Fatal("Failed to create postgres backend", zap.Error(err))
		}
		defer dbBackend.Close()
		sinks = append(sinks, dbBackend)
	}

	engine := arbitrage.NewEngine(arbitrage.EngineOpts{
		Log:      logger,
		Config:   cfg,
		Eth:      ethBackend,
		Venues:   venues,
		Pairs:    markets.Pairs,
		Executor: submitter,
		Sinks:    sinks,
	})

	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	go func() {
		metricsMux.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
		metricsMux.Handle("/debug/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
		metricsMux.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
		metricsMux.Handle("/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
		metricsMux.Handle("/debug/pprof/trace", http.HandlerFunc(pprof.Trace))

		metricsServer := &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%s", *metricsPortPtr),
			ReadHeaderTimeout: 5 * time.Second,
			Handler:           metricsMux,
		}

		err := metricsServer.ListenAndServe()
		if err != nil {
			logger.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}()

	go func() {
		notifier := make(chan os.Signal, 1)
		signal.Notify(notifier, os.Interrupt, syscall.SIGTERM)
		<-notifier
		logger.Info("Shutting down...")
		ctxCancel()
	}()

	err = engine.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Engine stopped", zap.Error(err))
	}

	stats := engine.Stats()
	logger.Info("Final stats", zap.Uint64("opportunitiesFound", stats.OpportunitiesFound),
		zap.Uint64("tradesExecuted", stats.TradesExecuted), zap.Uint64("failedTrades", stats.FailedTrades),
		zap.String("totalProfit", stats.TotalProfit.String()))
}

func engineConfig() (arbitrage.Config, error) {
	cfg := arbitrage.DefaultConfig()

	maxGasGwei, err := decimal.NewFromString(*maxGasPriceGweiPtr)
	if err != nil {
		return cfg, fmt.Errorf("max gas price: %w", err)
	}
	cfg.MaxGasPrice = maxGasGwei.Mul(decimal.NewFromInt(params.GWei)).BigInt()

	cfg.MinProfit, err = decimal.NewFromString(*minProfitPtr)
	if err != nil {
		return cfg, fmt.Errorf("min profit: %w", err)
	}
	if *flashLoanFeeBpsPtr < 0 {
		return cfg, errors.New("flash loan fee must not be negative")
	}
	cfg.FlashLoanFee = arbitrage.FeeFromBps(*flashLoanFeeBpsPtr)
	cfg.CacheTTL = *cacheTTLPtr
	cfg.PollInterval = *pollIntervalPtr
	cfg.QuoteTimeout = *quoteTimeoutPtr
	cfg.NodeTimeout = *nodeTimeoutPtr
	if *venueConcurrencyPtr < 1 || *pairConcurrencyPtr < 1 {
		return cfg, errors.New("concurrency must be greater than 0")
	}
	cfg.VenueConcurrency = *venueConcurrencyPtr
	cfg.PairConcurrency = *pairConcurrencyPtr
	return cfg, nil
}

// buildVenues skips venues that cannot be constructed. Starting without any venue is an error.
func buildVenues(logger *zap.Logger, specs []venue.Spec, caller *ethclient.Client, rateLimit float64) (*venue.Registry, error) {
	var limiter *rate.Limiter
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), 1)
	}

	quoters := make([]venue.Quoter, 0, len(specs))
	for _, spec := range specs {
		q, err := venue.Build(spec, caller)
		if err != nil {
			logger.Warn("Skipping venue", zap.String("venue", spec.Name), zap.Error(err))
			continue
		}
		if spec.Kind == venue.KindStableSwap {
			logger.Warn("Stable-swap venue adapter is not available, venue will be excluded from snapshots", zap.String("venue", spec.Name))
		}
		if limiter != nil {
			q = venue.RateLimited(q, limiter)
		}
		quoters = append(quoters, q)
	}
	if len(quoters) == 0 {
		return nil, errors.New("no usable venues")
	}
	return venue.NewRegistry(quoters...)
}

func mustParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q: %v", s, err))
	}
	return d
}

func mustParseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid integer %q: %v", s, err))
	}
	return n
}

func mustParseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid number %q: %v", s, err))
	}
	return f
}
