package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/dividendlog/backend/src/config"
	"github.com/username/dividendlog/backend/src/database"
	"github.com/username/dividendlog/backend/src/handlers"
	"github.com/username/dividendlog/backend/src/logger"
	"github.com/username/dividendlog/backend/src/model"
	"github.com/username/dividendlog/backend/src/models"
	"github.com/username/dividendlog/backend/src/parsers"
	"github.com/username/dividendlog/backend/src/parsers/brokers"
	"github.com/username/dividendlog/backend/src/security"
	"github.com/username/dividendlog/backend/src/security/validation"
	"github.com/username/dividendlog/backend/src/services"
	"github.com/username/dividendlog/backend/src/storage"
)

const minSessionSecretLength = 32

var (
	brokersFile string
	parseBroker int
	parseLevel  string
	historySize int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dividend import HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadConfig()
		logger.InitLogger(config.Cfg.LogLevel)
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadConfig()
		logger.InitLogger(config.Cfg.LogLevel)
		db, err := database.Open(config.Cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.Migrate(db)
	},
}

var brokersCmd = &cobra.Command{
	Use:   "brokers",
	Short: "List the registered broker formats",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry(brokersFile)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tDELIMITER\tDATE FORMAT\tENCODING\tSKIP")
		for _, c := range registry.List() {
			fmt.Fprintf(tw, "%d\t%s\t%q\t%s\t%s\t%d\n",
				c.BrokerID, c.Name, c.Dialect.Delimiter, c.DateFormat, c.Dialect.Encoding, c.Dialect.SkipHeaderRows)
		}
		return tw.Flush()
	},
}

// parseReport is the dry-run output of the parse command.
type parseReport struct {
	BrokerID   int                     `json:"broker_id"`
	BrokerName string                  `json:"broker_name"`
	FileName   string                  `json:"filename"`
	TotalRows  int                     `json:"total_rows"`
	ValidRows  int                     `json:"valid_rows"`
	Errors     []string                `json:"errors"`
	Warnings   []string                `json:"warnings"`
	Dividends  []models.DividendRecord `json:"dividends"`
}

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse a broker export without importing it and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.InitLoggerWithWriter(parseLevel, cmd.ErrOrStderr())

		registry, err := loadRegistry(brokersFile)
		if err != nil {
			return err
		}
		cfg, err := registry.GetFormatConfig(parseBroker)
		if err != nil {
			return err
		}

		path := args[0]
		p, err := parsers.GetParser(validation.FileExtension(path))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := p.Parse(f, cfg)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(parseReport{
			BrokerID:   cfg.BrokerID,
			BrokerName: cfg.Name,
			FileName:   filepath.Base(path),
			TotalRows:  res.TotalRows,
			ValidRows:  len(res.Records),
			Errors:     res.Errors,
			Warnings:   res.Warnings,
			Dividends:  res.Records,
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent committed imports",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadConfig()
		logger.InitLogger(config.Cfg.LogLevel)
		db, err := database.Open(config.Cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := model.GetImportHistory(cmd.Context(), db, historySize)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BATCH\tBROKER\tFILE\tROWS\tIMPORTED\tSKIPPED\tWARNINGS")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%d\t%d\n",
				e.BatchID, e.BrokerID, e.FileName, e.TotalRows, e.Imported, e.Skipped, e.WarningCount)
		}
		return tw.Flush()
	},
}

func init() {
	brokersCmd.Flags().StringVar(&brokersFile, "brokers-file", "", "YAML file replacing the built-in broker formats")
	parseCmd.Flags().StringVar(&brokersFile, "brokers-file", "", "YAML file replacing the built-in broker formats")
	parseCmd.Flags().IntVarP(&parseBroker, "broker", "b", 0, "broker id whose format the file follows")
	parseCmd.Flags().StringVar(&parseLevel, "log-level", "warn", "log level for diagnostics written to stderr")
	parseCmd.MarkFlagRequired("broker")
	historyCmd.Flags().IntVarP(&historySize, "limit", "n", 20, "number of entries to show")

	rootCmd.AddCommand(serveCmd, migrateCmd, brokersCmd, parseCmd, historyCmd)
}

// loadRegistry reads the broker formats from path, or returns the built-in formats.
func loadRegistry(path string) (brokers.Registry, error) {
	if path == "" {
		return brokers.DefaultRegistry(), nil
	}
	registry, err := brokers.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading broker formats from %s: %w", path, err)
	}
	return registry, nil
}

func serve() error {
	cfg := config.Cfg
	logger.L.Info("Dividend import backend starting...")

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}

	registry, err := loadRegistry(cfg.BrokerConfigPath)
	if err != nil {
		return err
	}
	logger.L.Info("Broker formats loaded", "count", len(registry.List()), "source", cfg.BrokerConfigPath)

	logger.L.Info("Initializing database...", "path", cfg.DatabasePath)
	database.InitDB(cfg.DatabasePath)
	database.RunMigrations()

	uploads, err := storage.NewUploadStore(cfg.UploadDir)
	if err != nil {
		return err
	}
	staging := services.NewStagingStore(cfg.StagingTTL, func(path string) {
		if err := uploads.Remove(path); err != nil {
			logger.L.Warn("Failed to release staged upload", "path", path, "error", err)
		}
	})

	importService := services.NewDividendImportService(
		registry,
		model.NewSQLDividendStore(database.DB),
		uploads,
		staging,
		cfg.PreviewRows,
	)
	sessions := security.NewSessionService(cfg.SessionSecret, cfg.SessionTokenExpiry)
	importHandler := handlers.NewDividendImportHandler(importService, cfg.MaxUploadSizeBytes, cfg.AllowedUploadExtensions)

	router := newRouter(routerConfig{
		allowedOrigins: []string{cfg.FrontendBaseURL},
		csrfKey:        cfg.CSRFAuthKey,
		sessionMaxAge:  int(cfg.SessionTokenExpiry / time.Second),
		limiter:        newLimiter(),
	}, sessions, importHandler)

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr, "uploadDir", uploads.Dir())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
