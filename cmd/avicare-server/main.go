package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/avicare/avicare/internal/config"
	"github.com/avicare/avicare/internal/domain/account"
	"github.com/avicare/avicare/internal/domain/appointment"
	"github.com/avicare/avicare/internal/domain/catalog"
	"github.com/avicare/avicare/internal/domain/subscription"
	"github.com/avicare/avicare/internal/platform/db"
	"github.com/avicare/avicare/internal/platform/metrics"
	"github.com/avicare/avicare/internal/platform/middleware"
	"github.com/avicare/avicare/internal/platform/notification"
	"github.com/avicare/avicare/internal/platform/payment"
	"github.com/avicare/avicare/internal/platform/session"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "avicare-server",
		Short: "Exotic bird retail and vet consultation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
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

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
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

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			if username == "" {
				return fmt.Errorf("--username is required")
			}

			fmt.Print("Password: ")
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

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

			sms := notification.NewManager(&notification.MockSMSSender{}, notification.NewTemplateEngine())
			svc := account.NewService(
				account.NewUserRepoPG(pool),
				account.NewAdminRepoPG(pool),
				session.NewPGStore(pool),
				sms,
				[]byte(cfg.SessionSecret),
				time.Duration(cfg.SessionTTLHours)*time.Hour,
				zerolog.Nop(),
			)

			admin, err := svc.CreateAdmin(ctx, username, string(pw))
			if err != nil {
				return err
			}
			fmt.Printf("Admin %s created (id %s).\n", admin.Username, admin.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Admin username")
	cmd.AddCommand(createCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Platform services
	var sender notification.SMSSender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sender = notification.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	} else {
		logger.Warn().Msg("twilio credentials not set; SMS delivery disabled")
		sender = &notification.MockSMSSender{}
	}
	sms := notification.NewManager(sender, notification.NewTemplateEngine())

	var gateway payment.Gateway
	if cfg.RazorpayKeyID != "" {
		gateway = payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	} else {
		logger.Warn().Msg("razorpay credentials not set; using mock payment gateway")
		gateway = &payment.MockGateway{}
	}

	viewStore := metrics.NewTTLStore()
	janitorCtx, janitorCancel := context.WithCancel(ctx)
	defer janitorCancel()
	viewStore.StartJanitor(janitorCtx, time.Minute)

	sessionStore := session.NewPGStore(pool)
	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour

	// Domain services
	accountSvc := account.NewService(
		account.NewUserRepoPG(pool),
		account.NewAdminRepoPG(pool),
		sessionStore,
		sms,
		[]byte(cfg.SessionSecret),
		sessionTTL,
		logger,
	)
	catalogSvc := catalog.NewService(catalog.NewRepoPG(pool), viewStore)
	subscriptionSvc := subscription.NewService(subscription.NewRepoPG(pool), gateway, sms, logger)
	appointmentSvc := appointment.NewService(
		appointment.NewRepoPG(pool),
		appointment.NewSettingsRepoPG(pool),
		appointment.NewBlockedSlotRepoPG(pool),
		subscriptionSvc,
		sms,
		func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
		logger,
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(session.Middleware(sessionStore))

	api := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	user := api.Group("", session.RequireUser())
	admin := api.Group("/admin", session.RequireAdmin())

	secureCookies := cfg.IsProduction()
	account.NewHandler(accountSvc, secureCookies).RegisterRoutes(api, user)
	catalog.NewHandler(catalogSvc).RegisterRoutes(api, admin)
	subscription.NewHandler(subscriptionSvc).RegisterRoutes(api, user, admin)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api, user, admin)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Expired sessions accumulate otherwise; sweep hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-janitorCtx.Done():
				return
			case <-ticker.C:
				if n, err := sessionStore.DeleteExpired(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("session sweep failed")
				} else if n > 0 {
					logger.Info().Int64("deleted", n).Msg("expired sessions swept")
				}
			}
		}
	}()

	// Graceful shutdown
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
