// Package config loads the provisioning configuration file and the
// controller secrets file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the file-driven part of a provisioning run: which template sets
// exist, which tier types are eligible for onboarding, and where the audit
// and notification sinks live. Per-run inputs (application, tier, thresholds)
// arrive as command flags, not here.
type Config struct {
	LogLevel string

	Controller ControllerConfig
	Templates  TemplateSets
	Database   DatabaseConfig
	PubSub     PubSubConfig
	Telemetry  TelemetryConfig

	// SupportedTierTypes lists the controller tier types eligible for
	// non-synthetic onboarding. A tier outside this list is skipped.
	SupportedTierTypes []string
}

// ControllerConfig identifies the controller tenant and where its API
// credentials live.
type ControllerConfig struct {
	AccountName string
	Environment string
	SecretsPath string
}

// TemplateSets names the payload templates used per tier kind plus the
// shared action and policy sets.
type TemplateSets struct {
	BaseHealthRules      []string
	JVMHealthRules       []string
	CLRHealthRules       []string
	SyntheticHealthRules []string
	Actions              []string
	Policies             []string

	// Database onboarding renders its own sets: DATABASES-scoped health
	// rules plus a dedicated action and policy.
	DatabaseHealthRules []string
	DatabaseActions     []string
	DatabasePolicies    []string
}

// DatabaseConfig holds the audit store connection.
type DatabaseConfig struct {
	URL string
}

// PubSubConfig holds the run-summary notification settings.
type PubSubConfig struct {
	Enabled   bool
	ProjectID string
	Topic     string
}

// TelemetryConfig holds the OpenTelemetry exporter settings.
type TelemetryConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads the configuration file at path, or searches the working
// directory and /config for apmonboard.yaml when path is empty. Environment
// variables prefixed with APMONBOARD_ override file values, with dots in the
// key replaced by underscores (APMONBOARD_CONTROLLER_ACCOUNT overrides
// controller.account).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("apmonboard")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("apmonboard")
		v.AddConfigPath(".")
		v.AddConfigPath("/config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg := Config{
		LogLevel: v.GetString("log_level"),
		Controller: ControllerConfig{
			AccountName: v.GetString("controller.account"),
			Environment: v.GetString("controller.environment"),
			SecretsPath: v.GetString("controller.secrets_path"),
		},
		Templates: TemplateSets{
			BaseHealthRules:      v.GetStringSlice("templates.base_healthrules"),
			JVMHealthRules:       v.GetStringSlice("templates.jvm_healthrules"),
			CLRHealthRules:       v.GetStringSlice("templates.clr_healthrules"),
			SyntheticHealthRules: v.GetStringSlice("templates.synthetic_healthrules"),
			Actions:              v.GetStringSlice("templates.actions"),
			Policies:             v.GetStringSlice("templates.policies"),
			DatabaseHealthRules:  v.GetStringSlice("templates.database_healthrules"),
			DatabaseActions:      v.GetStringSlice("templates.database_actions"),
			DatabasePolicies:     v.GetStringSlice("templates.database_policies"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		PubSub: PubSubConfig{
			Enabled:   v.GetBool("pubsub.enabled"),
			ProjectID: v.GetString("pubsub.project_id"),
			Topic:     v.GetString("pubsub.topic"),
		},
		Telemetry: TelemetryConfig{
			Enabled:  v.GetBool("telemetry.enabled"),
			Endpoint: v.GetString("telemetry.endpoint"),
		},
		SupportedTierTypes: v.GetStringSlice("supported_tier_types"),
	}

	if cfg.Controller.AccountName == "" {
		return Config{}, fmt.Errorf("controller.account is required")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("controller.environment", "prod")
	v.SetDefault("supported_tier_types", []string{
		TierTypeJVM,
		TierTypeCLR,
	})
	v.SetDefault("templates.base_healthrules", []string{
		"cpu_busy.json",
		"memory_used.json",
		"calls_per_min.json",
	})
	v.SetDefault("templates.jvm_healthrules", []string{
		"cpu_busy.json",
		"calls_per_min.json",
		"jvm_heap_used.json",
	})
	v.SetDefault("templates.clr_healthrules", []string{
		"cpu_busy.json",
		"calls_per_min.json",
		"clr_gen2_heap.json",
	})
	v.SetDefault("templates.synthetic_healthrules", []string{
		"synthetic_availability.json",
	})
	v.SetDefault("templates.actions", []string{
		"email_action.json",
	})
	v.SetDefault("templates.policies", []string{
		"standard_policy.json",
	})
	v.SetDefault("templates.database_healthrules", []string{
		"db_connections_per_min.json",
		"db_execution_time.json",
		"db_gc_block_time.json",
		"db_connection_drop.json",
		"db_availability.json",
	})
	v.SetDefault("templates.database_actions", []string{
		"db_email_action.json",
	})
	v.SetDefault("templates.database_policies", []string{
		"database_policy.json",
	})
	v.SetDefault("pubsub.topic", "apmonboard-runs")
}
