// Package main provides the apmonboard command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/apmonboard/apmonboard/internal/audit"
	"github.com/apmonboard/apmonboard/internal/config"
	"github.com/apmonboard/apmonboard/internal/controller"
	"github.com/apmonboard/apmonboard/internal/notify"
	"github.com/apmonboard/apmonboard/internal/runner"
	"github.com/apmonboard/apmonboard/internal/telemetry"
	"github.com/apmonboard/apmonboard/internal/template"
)

// Version, Commit and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgPath     string
	templateDir string

	appName      string
	tierName     string
	businessName string
	userEmails   []string
	synthetic    bool

	dbType        string
	databaseNames []string

	ruleName      string
	criticalValue string
	warningValue  string

	teardownRules    []string
	teardownActions  []string
	teardownPolicies []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "apmonboard",
	Short: "apmonboard - idempotent APM alerting provisioner",
	Long: `apmonboard provisions health rules, actions, and policies for a
monitored application through the controller REST API. Runs are idempotent:
resources that already exist are confirmed, not duplicated, so the tool is
safe to run from CI on every deployment.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"apmonboard version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&templateDir, "template-dir", "", "directory of payload templates replacing the built-in set")
	rootCmd.PersistentFlags().StringVar(&appName, "app", "", "monitored application name")

	onboardCmd.Flags().StringVar(&tierName, "tier", "", "application tier to provision")
	onboardCmd.Flags().StringVar(&businessName, "business", "", "owning business unit name")
	onboardCmd.Flags().StringSliceVar(&userEmails, "emails", nil, "notification recipients")
	onboardCmd.Flags().BoolVar(&synthetic, "synthetic", false, "provision the synthetic monitoring set")

	onboardDBCmd.Flags().StringVar(&businessName, "business", "", "owning business unit name")
	onboardDBCmd.Flags().StringVar(&dbType, "db-type", "", "collector database type (e.g. ORACLE, POSTGRES)")
	onboardDBCmd.Flags().StringSliceVar(&databaseNames, "databases", nil, "database server names; empty scopes the rules to all databases")
	onboardDBCmd.Flags().StringSliceVar(&userEmails, "emails", nil, "notification recipients")

	createRulesCmd.Flags().StringVar(&tierName, "tier", "", "application tier the rules target")
	createRulesCmd.Flags().StringVar(&businessName, "business", "", "owning business unit name")
	createRulesCmd.Flags().StringSliceVar(&userEmails, "emails", nil, "notification recipients")

	updateCmd.Flags().StringVar(&ruleName, "rule", "", "exact health rule name")
	updateCmd.Flags().StringVar(&criticalValue, "critical", "", "new critical threshold")
	updateCmd.Flags().StringVar(&warningValue, "warning", "", "new warning threshold")

	teardownCmd.Flags().StringSliceVar(&teardownRules, "health-rules", nil, "health rule names to delete")
	teardownCmd.Flags().StringSliceVar(&teardownActions, "actions", nil, "action names to delete")
	teardownCmd.Flags().StringSliceVar(&teardownPolicies, "policies", nil, "policy names to delete")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(onboardDBCmd)
	rootCmd.AddCommand(createRulesCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(teardownCmd)
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Provision the full alerting set for an application",
	Long: `Provision health rules for the application's tier kind, the shared
notification actions, and the policies linking them. A tier type outside the
supported list skips the run. Synthetic runs need no tier.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *application) (runner.Report, error) {
			return app.runner.Onboard(ctx, runner.OnboardRequest{
				Application:  appName,
				Tier:         tierName,
				Synthetic:    synthetic,
				BusinessName: strings.ToUpper(businessName),
				UserEmails:   userEmails,
			})
		})
	},
}

var onboardDBCmd = &cobra.Command{
	Use:   "onboard-db",
	Short: "Provision database-level health rules for an application",
	Long: `Provision database health rules, the database notification action,
and the policy linking them. Named database servers each get their own rule
set scoped to that server; with no servers named, a single set covers every
database the collector monitors.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *application) (runner.Report, error) {
			return app.runner.OnboardDatabases(ctx, runner.DatabaseRequest{
				Application:  appName,
				BusinessName: strings.ToUpper(businessName),
				DatabaseType: dbType,
				Databases:    databaseNames,
				UserEmails:   userEmails,
			})
		})
	},
}

var createRulesCmd = &cobra.Command{
	Use:   "create-healthrules",
	Short: "Provision the base health rule set only",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *application) (runner.Report, error) {
			return app.runner.CreateHealthRules(ctx, runner.OnboardRequest{
				Application:  appName,
				Tier:         tierName,
				BusinessName: strings.ToUpper(businessName),
				UserEmails:   userEmails,
			})
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update-thresholds",
	Short: "Rewrite the thresholds of one health rule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *application) (runner.Report, error) {
			return app.runner.UpdateThresholds(ctx, runner.ThresholdRequest{
				Application:   appName,
				RuleName:      ruleName,
				CriticalValue: criticalValue,
				WarningValue:  warningValue,
			})
		})
	},
}

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete named alerting resources from an application",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *application) (runner.Report, error) {
			return app.runner.Teardown(ctx, runner.TeardownRequest{
				Application: appName,
				HealthRules: teardownRules,
				Actions:     teardownActions,
				Policies:    teardownPolicies,
			})
		})
	},
}

// application bundles everything a subcommand needs after setup.
type application struct {
	cfg     config.Config
	logger  zerolog.Logger
	runner  *runner.Runner
	metrics *telemetry.RunMetrics
	cleanup func(context.Context)
}

// withApp runs one provisioning operation inside a fully wired application.
// Setup failures and fatal run errors are returned (non-zero exit);
// per-resource failures are reported in the logs and exit zero.
func withApp(ctx context.Context, fn func(context.Context, *application) (runner.Report, error)) error {
	if appName == "" {
		return fmt.Errorf("--app is required")
	}

	app, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.cleanup(shutdownCtx)
	}()

	report, err := fn(ctx, app)
	if err != nil {
		return err
	}

	app.metrics.RecordRun(ctx, report.Mode, report.Succeeded, report.Failed, report.FinishedAt.Sub(report.StartedAt))

	event := app.logger.Info()
	if report.Failed > 0 || report.Skipped {
		event = app.logger.Warn()
	}
	event.
		Str("run_id", report.RunID).
		Str("mode", report.Mode).
		Str("application", report.Application).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Bool("skipped", report.Skipped).
		Str("skip_reason", report.SkipReason).
		Msg("run finished")
	return nil
}

func setup(ctx context.Context) (*application, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", "apmonboard").
		Str("version", Version).
		Logger()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "apmonboard",
		ServiceVersion: Version,
		Environment:    cfg.Controller.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	metrics, err := telemetry.NewRunMetrics(provider.Meter)
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	secrets, err := config.LoadSecrets(cfg.Controller.SecretsPath)
	if err != nil {
		return nil, err
	}
	clientID, clientSecret, err := secrets.CredentialsFor(cfg.Controller.AccountName)
	if err != nil {
		return nil, err
	}

	client := controller.NewClient(controller.ClientConfig{
		Credentials: controller.Credentials{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			AccountName:  cfg.Controller.AccountName,
			Environment:  cfg.Controller.Environment,
		},
		Logger: logger,
	})
	if err := client.Authenticate(ctx); err != nil {
		return nil, err
	}

	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	var closers []func(context.Context)

	var repo audit.Repository = audit.NewInMemoryRepository()
	if cfg.Database.URL != "" {
		pool, err := audit.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting audit store: %w", err)
		}
		repo = audit.NewPostgresRepository(pool)
		closers = append(closers, func(context.Context) { pool.Close() })
	}

	var notifier runner.Notifier
	if cfg.PubSub.Enabled {
		publisher, err := notify.NewPublisher(ctx, notify.PublisherConfig{
			ProjectID: cfg.PubSub.ProjectID,
			Topic:     cfg.PubSub.Topic,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating run notifier: %w", err)
		}
		notifier = publisher
		closers = append(closers, func(context.Context) {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("closing notifier failed")
			}
		})
	}

	cleanup := func(shutdownCtx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](shutdownCtx)
		}
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown failed")
		}
	}

	return &application{
		cfg:     cfg,
		logger:  logger,
		runner:  runner.New(client, cfg, renderer, repo, notifier, logger),
		metrics: metrics,
		cleanup: cleanup,
	}, nil
}

func newRenderer() (*template.Renderer, error) {
	if templateDir != "" {
		return template.NewRendererFromDir(templateDir)
	}
	return template.NewRenderer()
}
