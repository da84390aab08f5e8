package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mfl/mfl/internal/config"
	"github.com/mfl/mfl/internal/domain/chul"
	"github.com/mfl/mfl/internal/domain/common"
	"github.com/mfl/mfl/internal/domain/facilities"
	"github.com/mfl/mfl/internal/domain/users"
	"github.com/mfl/mfl/internal/platform/apperr"
	"github.com/mfl/mfl/internal/platform/auth"
	"github.com/mfl/mfl/internal/platform/db"
	"github.com/mfl/mfl/internal/platform/export"
	"github.com/mfl/mfl/internal/platform/history"
	"github.com/mfl/mfl/internal/platform/middleware"
	"github.com/mfl/mfl/internal/platform/reporting"
	"github.com/mfl/mfl/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mfl-server",
		Short: "Master Facility List API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MFL API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationsFS returns the embedded migrations unless dir overrides them.
func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsFS(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsFS(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, at := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, at)
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render reports outside the HTTP API",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Render a report and write it to the export store",
		RunE: func(cmd *cobra.Command, args []string) error {
			reportType, _ := cmd.Flags().GetString("type")
			filters, _ := cmd.Flags().GetString("filters")
			county, _ := cmd.Flags().GetString("county")
			constituency, _ := cmd.Flags().GetString("constituency")
			out, _ := cmd.Flags().GetString("out")

			req, err := reporting.ParseRequest(reportValues(reportType, filters, county, constituency))
			if err != nil {
				return err
			}

			logger := newLogger(os.Getenv("ENV"))
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			reports, err := reporting.LoadReports(cfg.ReportsConfig)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			engine := reporting.NewEngine(reporting.NewPGStore(pool), reports, nil, logger)

			var store export.Store
			if out != "-" {
				if store, err = newExportStore(ctx, cfg); err != nil {
					return err
				}
			}
			loc, err := exportReport(ctx, engine, store, req, time.Now(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if loc != "" {
				logger.Info().Str("report_type", req.ReportType).Str("location", loc).Msg("report exported")
			}
			return nil
		},
	}
	exportCmd.Flags().String("type", reporting.DefaultReportType, "Report type")
	exportCmd.Flags().String("filters", "", "Extra filter, field=<uuid>")
	exportCmd.Flags().String("county", "", "County id")
	exportCmd.Flags().String("constituency", "", "Constituency id")
	exportCmd.Flags().String("out", "", `Write to stdout with "-" instead of the export store`)
	cmd.AddCommand(exportCmd)

	return cmd
}

// reportValues builds the same query the HTTP report endpoint receives.
func reportValues(reportType, filters, county, constituency string) url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("report_type", reportType)
	set("filters", filters)
	set("county", county)
	set("constituency", constituency)
	return v
}

// exportReport renders req and writes it to store, or to w when store is nil.
// It returns the store location of the written object.
func exportReport(ctx context.Context, engine *reporting.Engine, store export.Store,
	req reporting.Request, now time.Time, w io.Writer) (string, error) {
	result, err := engine.Run(ctx, req)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	if store == nil {
		_, err := w.Write(append(body, '\n'))
		return "", err
	}

	reportType := req.ReportType
	if reportType == "" {
		reportType = reporting.DefaultReportType
	}
	return store.Put(ctx, export.ReportKey(reportType, now), bytes.NewReader(body), echo.MIMEApplicationJSON)
}

func newExportStore(ctx context.Context, cfg *config.Config) (export.Store, error) {
	if cfg.ExportS3Bucket != "" {
		return export.NewS3Store(ctx, export.S3Config{
			Bucket:    cfg.ExportS3Bucket,
			Region:    cfg.ExportS3Region,
			Endpoint:  cfg.ExportS3URL,
			PathStyle: cfg.ExportS3Path,
		})
	}
	return export.NewFileStore(cfg.ExportDir)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// authSetup picks the authentication middleware for the configured mode. The
// token issuer is nil unless the server signs its own tokens.
func authSetup(cfg *config.Config) (echo.MiddlewareFunc, *auth.TokenIssuer, error) {
	key := []byte(cfg.AuthSigningKey)

	switch mode := cfg.ResolvedAuthMode(); mode {
	case "development":
		var issuer *auth.TokenIssuer
		if len(key) > 0 {
			issuer = auth.NewTokenIssuer(key, cfg.AuthIssuer, cfg.AuthAudience, cfg.TokenTTL)
		}
		return auth.DevAuthMiddleware(key), issuer, nil
	case "standalone":
		mw, err := auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: key,
			Skipper:    auth.AuthSkipper,
		})
		if err != nil {
			return nil, nil, err
		}
		return mw, auth.NewTokenIssuer(key, cfg.AuthIssuer, cfg.AuthAudience, cfg.TokenTTL), nil
	case "external":
		mw, err := auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		})
		return mw, nil, err
	default:
		return nil, nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// newEcho builds the server with global middleware, health and metrics routes.
// Authentication is left to the caller.
func newEcho(cfg *config.Config, logger zerolog.Logger, reg *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.ErrorHandler

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.NewHTTPMetrics(reg).Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
		Routes: map[string]time.Duration{
			"/api/v1/reporting":           2 * time.Minute,
			"/api/v1/reporting/":          2 * time.Minute,
			"/api/v1/reporting/upgrades":  2 * time.Minute,
			"/api/v1/reporting/upgrades/": 2 * time.Minute,
			"/metrics":                    0,
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	return e
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return rl
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	reports, err := reporting.LoadReports(cfg.ReportsConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load report definitions")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e := newEcho(cfg, logger, reg)

	authMW, issuer, err := authSetup(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure authentication")
	}
	logger.Info().Str("auth_mode", cfg.ResolvedAuthMode()).Bool("token_endpoint", issuer != nil).Msg("authentication configured")
	e.Use(authMW)

	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	tx := db.PoolTransactor{Pool: pool}

	commonSvc := common.NewService(common.NewGeographyRepo(pool), common.NewContactRepo(pool))
	common.NewHandler(commonSvc).RegisterRoutes(apiV1)

	facilitySvc := facilities.NewService(
		facilities.NewLookupRepo(pool),
		facilities.NewFacilityRepo(pool),
		commonSvc,
		commonSvc,
		tx,
		history.NewTracker(history.NewPGRepository(pool)),
	)
	facilities.NewHandler(facilitySvc).RegisterRoutes(apiV1)

	chulSvc := chul.NewService(
		chul.NewLookupRepo(pool),
		chul.NewUnitRepo(pool),
		chul.NewWorkerRepo(pool),
		facilitySvc,
		commonSvc,
		tx,
	)
	chul.NewHandler(chulSvc).RegisterRoutes(apiV1)

	userSvc := users.NewService(users.NewUserRepo(pool), users.NewGroupRepo(pool), commonSvc, tx)
	userHandler := users.NewHandler(userSvc, issuer)
	userHandler.RegisterPublicRoutes(apiV1)
	userHandler.RegisterRoutes(apiV1)

	engine := reporting.NewEngine(
		reporting.NewPGStore(pool),
		reports,
		reporting.NewMetrics(reg),
		logger,
	)
	reporting.NewHandler(engine).RegisterRoutes(apiV1)
	logger.Info().Strs("configured_reports", reports.Names()).Msg("reporting enabled")

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
