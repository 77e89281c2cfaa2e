package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reicrm/internal/config"
	"github.com/reicrm/internal/db"
	import_pkg "github.com/reicrm/internal/import"
	"github.com/reicrm/internal/logger"
	"github.com/reicrm/internal/services"
)

var (
	cfg *config.Config
	log *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "importer",
		Short: "Owner and property spreadsheet importer",
		Long:  `Import owner/property spreadsheets, geocode properties and manage the database schema`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()

			var err error
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg, err = config.LoadFromFile(path)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			log = logger.New(cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to a config file")

	rootCmd.AddCommand(createImportCmd())
	rootCmd.AddCommand(createHeadersCmd())
	rootCmd.AddCommand(createGeocodeCmd())
	rootCmd.AddCommand(createMigrateCmd())
	rootCmd.AddCommand(createPingCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withServices(ctx context.Context, fn func(svc *services.Services) error) error {
	defer log.Sync()

	svc, err := services.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func createImportCmd() *cobra.Command {
	var mappingFile string

	cmd := &cobra.Command{
		Use:   "import [filename]",
		Short: "Import a CSV or XLSX owner/property file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mapping import_pkg.ColumnMapping
			if mappingFile != "" {
				data, err := os.ReadFile(mappingFile)
				if err != nil {
					return fmt.Errorf("failed to read mapping: %w", err)
				}
				if err := json.Unmarshal(data, &mapping); err != nil {
					return fmt.Errorf("failed to parse mapping: %w", err)
				}
			}

			return withServices(cmd.Context(), func(svc *services.Services) error {
				start := time.Now()
				result, err := svc.Importer.ImportFile(cmd.Context(), args[0], mapping)
				if result != nil {
					log.Info("import finished",
						zap.String("upload_id", result.UploadID),
						zap.Int("processed", result.ProcessedRows),
						zap.Int("errors", len(result.Errors)),
						zap.Int("duplicates", len(result.Duplicates)),
						zap.Duration("elapsed", time.Since(start)))
					if perr := printJSON(result); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&mappingFile, "mapping", "", "JSON file mapping headers to fields")
	return cmd
}

func createHeadersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "headers [filename]",
		Short: "Show the headers of a file and the suggested column mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importer := import_pkg.NewFileImporter(nil, log)
			headers, err := importer.ReadHeaders(args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"headers":          headers,
				"suggestedMapping": import_pkg.SuggestColumnMapping(headers, import_pkg.Fields),
			})
		},
	}
}

func createGeocodeCmd() *cobra.Command {
	var (
		ids   []int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Geocode properties that have no coordinates",
		Long:  `Geocode the given property IDs, or up to --limit properties without coordinates`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(svc *services.Services) error {
				if svc.Coordinates == nil {
					return fmt.Errorf("geocoding is disabled; set geocoding.api_key")
				}

				var err error
				var result interface{}
				if len(ids) > 0 {
					result, err = svc.Coordinates.GeocodeByIDs(cmd.Context(), ids)
				} else {
					result, err = svc.Coordinates.GeocodeMissing(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "property IDs to geocode")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum properties to geocode when no IDs are given")
	return cmd
}

func createMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.Migrate(cmd.Context(), conn.DB); err != nil {
				return err
			}
			log.Info("schema up to date", zap.String("database", cfg.Database.Postgres.Database))
			return nil
		},
	}
}

func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Println("Database connection successful!")

			tables := []string{"owners", "properties", "contacts", "coordinates"}
			for _, table := range tables {
				var count int
				if err := conn.DB.QueryRowContext(cmd.Context(), "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
					log.Warn("count failed", zap.String("table", table), zap.Error(err))
					continue
				}
				fmt.Printf("%-12s %d\n", table+":", count)
			}
			return nil
		},
	}
}
