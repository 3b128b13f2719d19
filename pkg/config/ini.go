package config

import (
	"fmt"

	"github.com/bcaldwell/ynabsheets/pkg/apierr"
	"gopkg.in/ini.v1"
)

const iniSection = "main"

const (
	KeyYnabAPIKey   = "ynab_api_key"
	KeyYnabBudgetID = "ynab_budget_id"
	KeySheetID      = "sheet_id"
)

// Value reads key from the main section of the ini file at path. The file is
// read on every call.
func Value(path, key string) (string, error) {
	section, err := loadSection(path)
	if err != nil {
		return "", err
	}

	if !section.HasKey(key) {
		return "", fmt.Errorf("%s: key %q not found in section %q: %w", path, key, iniSection, apierr.ErrConfigMissing)
	}

	return section.Key(key).String(), nil
}

func loadSection(path string) (*ini.Section, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, apierr.WithKind(fmt.Errorf("failed to read %s: %w", path, err), apierr.ErrConfigMissing)
	}

	section, err := file.GetSection(iniSection)
	if err != nil {
		return nil, apierr.WithKind(fmt.Errorf("%s: %w", path, err), apierr.ErrConfigMissing)
	}

	return section, nil
}

// readIniSecrets fills whatever keys the ini file has. Missing keys are left
// empty so other sources can supply them.
func readIniSecrets(path string) (*Secrets, error) {
	if _, err := loadSection(path); err != nil {
		return nil, err
	}

	iniSecrets := Secrets{}
	fields := []struct {
		key   string
		value *string
	}{
		{KeyYnabAPIKey, &iniSecrets.Ynab.APIKey},
		{KeyYnabBudgetID, &iniSecrets.Ynab.BudgetID},
		{KeySheetID, &iniSecrets.Sheets.SheetID},
	}

	for _, field := range fields {
		value, err := Value(path, field.key)
		if err != nil {
			continue
		}
		*field.value = value
	}

	return &iniSecrets, nil
}
