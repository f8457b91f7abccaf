package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/openvaxlabs/vaxmart/pkg/clickhouse"
	"github.com/openvaxlabs/vaxmart/pkg/export"
	"github.com/openvaxlabs/vaxmart/pkg/extract"
	"github.com/openvaxlabs/vaxmart/pkg/logger"
	"github.com/openvaxlabs/vaxmart/pkg/metrics"
	"github.com/openvaxlabs/vaxmart/pkg/pipeline"
	"github.com/openvaxlabs/vaxmart/pkg/views"
	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// Extract inputs
	coverageFlag := flag.String("coverage", "", "path to the vaccination coverage CSV extract")
	incidenceFlag := flag.String("incidence", "", "path to the disease incidence CSV extract")
	reportedCasesFlag := flag.String("reported-cases", "", "path to the reported cases CSV extract")
	introductionsFlag := flag.String("introductions", "", "path to the vaccine introduction CSV extract")
	schedulesFlag := flag.String("schedules", "", "path to the vaccine schedule CSV extract")

	// Pipeline options
	thresholdsFlag := flag.String("thresholds", "", "path to a YAML thresholds override file")
	policyFlag := flag.String("policy", string(warehouse.PolicyReject), "duplicate policy: reject or overwrite")
	minYearFlag := flag.Int("min-year", 0, "earliest accepted record year")
	maxCoverageFlag := flag.Float64("max-coverage", 0, "upper bound for coverage percentages")
	maxConcurrencyFlag := flag.Int("max-concurrency", 8, "maximum concurrent view computations")

	// ClickHouse configuration
	clickhouseAddrFlag := flag.String("clickhouse-addr", "", "ClickHouse address (host:port) (or set CLICKHOUSE_ADDR_TCP env var)")
	clickhouseDatabaseFlag := flag.String("clickhouse-database", clickhouse.DefaultDatabase, "ClickHouse database name (or set CLICKHOUSE_DATABASE env var)")
	clickhouseUsernameFlag := flag.String("clickhouse-username", "default", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	clickhousePasswordFlag := flag.String("clickhouse-password", "", "ClickHouse password (or set CLICKHOUSE_PASSWORD env var)")
	clickhouseSecureFlag := flag.Bool("clickhouse-secure", false, "Enable TLS for ClickHouse Cloud (or set CLICKHOUSE_SECURE=true env var)")

	// Commands
	migrateFlag := flag.Bool("migrate", false, "Run ClickHouse migrations using goose and exit")
	migrateStatusFlag := flag.Bool("migrate-status", false, "Show ClickHouse migration status and exit")
	exportFlag := flag.Bool("export", false, "Export the rebuilt snapshot and views to ClickHouse")
	listenFlag := flag.String("listen", "", "Address for the health/metrics HTTP server (empty = disabled)")

	flag.Parse()

	// Load a .env file if present; real environment wins.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	// Override ClickHouse flags with environment variables if set
	if envClickhouseAddr := os.Getenv("CLICKHOUSE_ADDR_TCP"); envClickhouseAddr != "" {
		*clickhouseAddrFlag = envClickhouseAddr
	}
	if envClickhouseDatabase := os.Getenv("CLICKHOUSE_DATABASE"); envClickhouseDatabase != "" {
		*clickhouseDatabaseFlag = envClickhouseDatabase
	}
	if envClickhouseUsername := os.Getenv("CLICKHOUSE_USERNAME"); envClickhouseUsername != "" {
		*clickhouseUsernameFlag = envClickhouseUsername
	}
	if envClickhousePassword := os.Getenv("CLICKHOUSE_PASSWORD"); envClickhousePassword != "" {
		*clickhousePasswordFlag = envClickhousePassword
	}
	if os.Getenv("CLICKHOUSE_SECURE") == "true" {
		*clickhouseSecureFlag = true
	}

	migrationCfg := clickhouse.MigrationConfig{
		Addr:     *clickhouseAddrFlag,
		Database: *clickhouseDatabaseFlag,
		Username: *clickhouseUsernameFlag,
		Password: *clickhousePasswordFlag,
		Secure:   *clickhouseSecureFlag,
	}

	if *migrateFlag {
		if *clickhouseAddrFlag == "" {
			return fmt.Errorf("--clickhouse-addr is required for --migrate")
		}
		return clickhouse.RunMigrations(context.Background(), log, migrationCfg)
	}
	if *migrateStatusFlag {
		if *clickhouseAddrFlag == "" {
			return fmt.Errorf("--clickhouse-addr is required for --migrate-status")
		}
		return clickhouse.MigrationStatus(context.Background(), log, migrationCfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	if *listenFlag != "" {
		router := chi.NewRouter()
		router.Use(middleware.Recoverer)
		router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})
		router.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:         *listenFlag,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			log.Info("metrics server listening", "addr", *listenFlag)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	thresholds := views.DefaultThresholds()
	if *thresholdsFlag != "" {
		var err error
		thresholds, err = views.LoadThresholds(*thresholdsFlag)
		if err != nil {
			return err
		}
	}

	paths := extract.SnapshotPaths{
		Coverage:      *coverageFlag,
		Incidence:     *incidenceFlag,
		ReportedCases: *reportedCasesFlag,
		Introductions: *introductionsFlag,
		Schedules:     *schedulesFlag,
	}
	snap, err := extract.ReadSnapshot(paths)
	if err != nil {
		return err
	}

	store, err := warehouse.NewStore(log)
	if err != nil {
		return err
	}

	pipe, err := pipeline.New(pipeline.Config{
		Logger:         log,
		Store:          store,
		Thresholds:     thresholds,
		Policy:         warehouse.Policy(*policyFlag),
		MaxCoverage:    *maxCoverageFlag,
		MinYear:        *minYearFlag,
		MaxConcurrency: *maxConcurrencyFlag,
	})
	if err != nil {
		return err
	}

	result, err := pipe.Run(ctx, snap)
	if err != nil {
		return err
	}

	for kind, category := range result.Report.Categories {
		log.Info("category report",
			"category", string(kind),
			"accepted", category.Accepted,
			"rejected", category.RejectedTotal(),
			"overwrites", category.Overwrites,
		)
	}

	if *exportFlag {
		if *clickhouseAddrFlag == "" {
			return fmt.Errorf("--clickhouse-addr is required for --export")
		}
		client, err := clickhouse.NewClient(ctx, log, *clickhouseAddrFlag, *clickhouseDatabaseFlag,
			*clickhouseUsernameFlag, *clickhousePasswordFlag, *clickhouseSecureFlag)
		if err != nil {
			return err
		}
		defer client.Close()

		exporter, err := export.New(export.Config{Logger: log, Client: client})
		if err != nil {
			return err
		}
		if err := exporter.Export(ctx, result.Snapshot, pipe.Engine()); err != nil {
			return err
		}
	}

	return nil
}
