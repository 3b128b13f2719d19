package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/Shopify/ejson"
	"github.com/bcaldwell/ynabsheets/pkg/apierr"
	"github.com/caarlos0/env/v6"
	"github.com/ghodss/yaml"
)

const (
	ConfigEnvVar       = "YNAB_SHEETS_CONFIG"
	EjsonKeyFileEnvVar = "YNAB_SHEETS_EJSON_SECRET_KEY"
	ejsonKeyDir        = "/opt/ejson/keys"

	monthLayout = "2006-01-02"
)

var config Config
var secrets Secrets

// ReadConfig loads the job config and the secrets into the package state
// returned by CurrentConfig and CurrentSecrets.
func ReadConfig(configFile, iniFile, secretsFile string) error {
	c, err := readConfig(ConfigEnvVar, configFile)
	if err != nil {
		return err
	}

	s, err := readSecrets(iniFile, secretsFile)
	if err != nil {
		return err
	}

	config = *c
	secrets = *s
	return nil
}

func CurrentConfig() *Config {
	return &config
}

func CurrentSecrets() *Secrets {
	return &secrets
}

// Defaults returns the config used when no config file is present.
func Defaults() Config {
	return Config{
		SheetName:       "Data",
		CredentialsFile: "credentials.json",
		UpdateFrequency: "*/5 * * * *",
		RunTimeout:      Duration{time.Minute},
		Retries:         1,
		RetryDelay:      Duration{5 * time.Minute},
		Formula: FormulaConfig{
			Column:       4,
			Row:          2,
			LookupColumn: "B",
		},
		SQL: SQLConfig{
			Database:  "ynab",
			RunsTable: "sheet_sync_runs",
		},
		Influx: InfluxConfig{
			Database:    "ynab",
			Measurement: "ynab_sheets_sync",
		},
	}
}

// TargetMonth returns the configured month, or the first day of now's month
// when none is set.
func (c *Config) TargetMonth(now time.Time) (string, error) {
	if c.Month == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(monthLayout), nil
	}

	if _, err := time.Parse(monthLayout, c.Month); err != nil {
		return "", fmt.Errorf("invalid month %q, expected YYYY-MM-DD: %w", c.Month, err)
	}

	return c.Month, nil
}

func readConfig(envName, filename string) (*Config, error) {
	var raw []byte
	var err error

	c := Defaults()

	rawEnv := os.Getenv(envName)
	if rawEnv != "" {
		slog.Info("reading config from environment variable", "env", envName)
		raw = []byte(rawEnv)
	} else {
		raw, err = os.ReadFile(filename)
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("config file not found, using defaults", "file", filename)
			return &c, nil
		}
		if err != nil {
			return nil, err
		}
	}

	err = yaml.Unmarshal(raw, &c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, err)
	}

	return &c, c.validate()
}

func (c *Config) validate() error {
	var problems []string

	if strings.TrimSpace(c.SheetName) == "" {
		problems = append(problems, "sheetName cannot be empty")
	}
	if c.Formula.Column < 1 || c.Formula.Row < 1 {
		problems = append(problems, fmt.Sprintf("formula cell column %d row %d must both be at least 1", c.Formula.Column, c.Formula.Row))
	}
	if c.Formula.LookupColumn == "" || strings.Trim(strings.ToUpper(c.Formula.LookupColumn), "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
		problems = append(problems, fmt.Sprintf("invalid lookupColumn %q", c.Formula.LookupColumn))
	}
	if c.Retries < 0 {
		problems = append(problems, fmt.Sprintf("retries %d cannot be negative", c.Retries))
	}
	if c.RunTimeout.Duration < 0 || c.RetryDelay.Duration < 0 {
		problems = append(problems, "runTimeout and retryDelay cannot be negative")
	}
	if _, err := c.TargetMonth(time.Now()); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n- %s", strings.Join(problems, "\n- "))
	}

	return nil
}

// readSecrets merges env, ejson and ini secrets, in that order of precedence.
func readSecrets(iniFile, secretsFile string) (*Secrets, error) {
	envSecrets, err := readEnvSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to parse env secrets: %w", err)
	}

	ejsonSecrets, err := readEjsonSecrets(secretsFile)
	if err != nil {
		slog.Warn("failed to parse ejson secrets", "file", secretsFile, "error", err)
	} else if err := mergo.Merge(envSecrets, *ejsonSecrets); err != nil {
		return nil, fmt.Errorf("failed to merge secrets: %w", err)
	}

	iniSecrets, iniErr := readIniSecrets(iniFile)
	if iniErr == nil {
		if err := mergo.Merge(envSecrets, *iniSecrets); err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
	}

	missing := envSecrets.missing()
	if len(missing) > 0 {
		err := fmt.Errorf("missing secrets %s: %w", strings.Join(missing, ", "), apierr.ErrConfigMissing)
		if iniErr != nil {
			err = fmt.Errorf("%w (%v)", err, iniErr)
		}
		return nil, err
	}

	return envSecrets, nil
}

func (s *Secrets) missing() []string {
	var missing []string
	if s.Ynab.APIKey == "" {
		missing = append(missing, KeyYnabAPIKey)
	}
	if s.Ynab.BudgetID == "" {
		missing = append(missing, KeyYnabBudgetID)
	}
	if s.Sheets.SheetID == "" {
		missing = append(missing, KeySheetID)
	}
	return missing
}

func readEjsonSecrets(filename string) (*Secrets, error) {
	ejsonSecrets := Secrets{}

	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return &ejsonSecrets, nil
	}

	ejsonKeyFile := os.Getenv(EjsonKeyFileEnvVar)
	ejsonKey := []byte{}
	var err error

	if ejsonKeyFile != "" {
		ejsonKey, err = os.ReadFile(ejsonKeyFile)
		if err != nil {
			return nil, err
		}
	}

	raw, err := ejson.DecryptFile(filename, ejsonKeyDir, strings.TrimSpace(string(ejsonKey)))
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(raw, &ejsonSecrets)
	return &ejsonSecrets, err
}

func readEnvSecrets() (*Secrets, error) {
	envSecrets := Secrets{}
	err := env.Parse(&envSecrets)
	return &envSecrets, err
}
