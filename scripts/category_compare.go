package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bcaldwell/ynabsheets/pkg/config"
	"github.com/bcaldwell/ynabsheets/pkg/monthsync"
	"github.com/bcaldwell/ynabsheets/pkg/ynabimporter"
)

// Prints the rows a sync would write for -month and, with -compare, the
// categories that only one of the two months has.
func main() {
	configFile := flag.String("config", "./config.yml", "configuration file")
	iniFile := flag.String("ini", "./config.ini", "ini file")
	secretsFile := flag.String("secrets", "./secrets.json", "secrets file")
	month := flag.String("month", monthsync.CurrentMonth(time.Now()), "month to preview")
	compare := flag.String("compare", "", "second month to compare categories with")
	flag.Parse()

	err := config.ReadConfig(*configFile, *iniFile, *secretsFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fetcher := ynabimporter.NewFetcher(config.CurrentSecrets().Ynab.APIKey, config.CurrentSecrets().Ynab.BudgetID)

	rows, err := monthRows(ctx, fetcher, *month)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	PrettyPrint(*month, ynabimporter.SheetValues(rows))

	if *compare == "" {
		return
	}

	compareRows, err := monthRows(ctx, fetcher, *compare)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	PrettyPrint(*month+"-"+*compare, difference(categoryNames(rows), categoryNames(compareRows)))
	PrettyPrint(*compare+"-"+*month, difference(categoryNames(compareRows), categoryNames(rows)))
}

func monthRows(ctx context.Context, fetcher *ynabimporter.Fetcher, month string) ([]ynabimporter.CategoryRow, error) {
	detail, err := fetcher.FetchMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	return ynabimporter.ExtractCategoryRows(month, detail), nil
}

func categoryNames(rows []ynabimporter.CategoryRow) []string {
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Category)
	}
	return names
}

// difference returns the strings of slice1 missing from slice2.
func difference(slice1 []string, slice2 []string) []string {
	var diff []string

	for _, s1 := range slice1 {
		found := false
		for _, s2 := range slice2 {
			if s1 == s2 {
				found = true
				break
			}
		}
		if !found {
			diff = append(diff, s1)
		}
	}

	return diff
}

func PrettyPrint(prefix string, v interface{}) (err error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err == nil {
		fmt.Println(prefix + ": " + string(b))
	}
	return
}
