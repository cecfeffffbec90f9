// Package main runs the transfer engine: the ledger manager, the rate
// snapshot ingestion loop, the quote sweeper, and the metrics endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"

	"github.com/moventis/transfer-engine/internal/accountrepo"
	"github.com/moventis/transfer-engine/internal/feerulerepo"
	"github.com/moventis/transfer-engine/internal/feeservice"
	"github.com/moventis/transfer-engine/internal/ledgerservice"
	"github.com/moventis/transfer-engine/internal/quoterepo"
	"github.com/moventis/transfer-engine/internal/quoteservice"
	"github.com/moventis/transfer-engine/internal/raterepo"
	"github.com/moventis/transfer-engine/internal/rateservice"
	"github.com/moventis/transfer-engine/internal/transferrepo"
	"github.com/moventis/transfer-engine/pkg/configpkg"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/loggerpkg"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := loggerpkg.New(config)

	conn, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	accountRepo := accountrepo.NewRepoPGS(conn)
	transferRepo := transferrepo.NewRepoPGS(conn)
	rateRepo := raterepo.NewRepoPGS(conn)
	quoteRepo := quoterepo.NewRepoPGS(conn)
	feeRuleRepo := feerulerepo.NewRepoPGS(conn)

	ledgerService, err := ledgerservice.New(transferRepo, accountRepo, config.DailyTransferLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create ledger service")
	}

	rateProvider := rateservice.NewHTTPProvider(rateservice.HTTPProviderConfig{
		Name:    config.RateProviderName,
		BaseURL: config.RateProviderURL,
		APIKey:  config.RateProviderKey,
		Timeout: config.RateProviderTimeout,
	})

	rateService := rateservice.New(rateProvider, rateRepo, rateservice.Config{
		BaseCurrency:     config.BaseCurrency,
		StaleAfter:       config.SnapshotStaleAfter,
		VolatilityMaxPct: config.VolatilityMaxPct,
		CacheTTL:         config.SnapshotCacheTTL,
	})

	feeService := feeservice.New(feeRuleRepo)

	quoteService := quoteservice.New(
		quoteRepo,
		accountRepo,
		rateService,
		feeService,
		ledgerService,
		quoteservice.AllowAllOracle{},
		quoteservice.LogNotifier{},
		quoteservice.Config{
			QuoteTTL:         config.QuoteTTL,
			WeekendPolicy:    config.WeekendPolicy,
			WeekendBufferPct: config.WeekendBufferPct,
		},
	)

	go runIngestLoop(ctx, rateService, config.IngestInterval)
	go runSweepLoop(ctx, quoteService, config.SweepInterval)
	go runMetricsServer(ctx, logger, config.MetricsAddress)

	logger.Info().Msg("transfer engine started")

	<-ctx.Done()
	logger.Info().Msg("transfer engine shutting down")
}

// maxIngestBackoff caps the retry delay after consecutive provider or
// store failures.
const maxIngestBackoff = 10 * time.Minute

// runIngestLoop pulls the provider feed on a fixed cadence, backing off
// exponentially while the pull itself keeps failing. One failed or
// rejected pull never stops the loop; the previous accepted snapshot
// keeps serving quotes until it goes stale.
func runIngestLoop(ctx context.Context, rates *rateservice.Service, interval time.Duration) {
	l := zerolog.Ctx(ctx)

	if interval <= 0 {
		interval = time.Minute
	}

	delay := interval

	for {
		if _, err := rates.Ingest(ctx); err != nil {
			delay = nextIngestDelay(delay)
			l.Error().Err(err).Dur("retry_in", delay).Msg("rate ingestion failed")
		} else {
			delay = interval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// nextIngestDelay doubles the current delay up to maxIngestBackoff.
func nextIngestDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > maxIngestBackoff {
		return maxIngestBackoff
	}

	return next
}

// runSweepLoop expires overdue quotes so reads observe EXPIRED even
// when no execution attempt ever touches them.
func runSweepLoop(ctx context.Context, quotes *quoteservice.Service, interval time.Duration) {
	l := zerolog.Ctx(ctx)

	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		swept, err := quotes.SweepExpired(ctx)
		if err != nil {
			l.Error().Err(err).Msg("quote sweep failed")
			continue
		}

		if swept > 0 {
			l.Info().Int64("count", swept).Msg("expired quotes swept")
		}
	}
}

func runMetricsServer(ctx context.Context, logger zerolog.Logger, address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("cannot start metrics server")
	}
}
