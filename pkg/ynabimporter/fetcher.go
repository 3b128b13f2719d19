package ynabimporter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bcaldwell/ynabsheets/pkg/apierr"
	"github.com/davidsteinsland/ynab-go/ynab"
)

const monthLayout = "2006-01-02"

// requestTimeout bounds a single YNAB request, so a call abandoned by
// FetchMonth still ends.
const requestTimeout = 30 * time.Second

type monthGetter interface {
	Get(budgetID string, month string) (ynab.MonthDetail, error)
}

// Fetcher reads month details for a single budget.
type Fetcher struct {
	months   monthGetter
	budgetID string
}

func NewFetcher(accessToken, budgetID string) *Fetcher {
	baseURL, _ := url.Parse(ynab.DefaultBaseURL)
	return newFetcher(baseURL, &http.Client{Timeout: requestTimeout}, accessToken, budgetID)
}

func newFetcher(baseURL *url.URL, httpClient *http.Client, accessToken, budgetID string) *Fetcher {
	ynabClient := ynab.NewClient(baseURL, httpClient, accessToken)

	return &Fetcher{
		months:   ynabClient.MonthsService,
		budgetID: budgetID,
	}
}

// FetchMonth makes one request for the budget's month detail. The day of
// month is ignored by the API. Nothing is retried here.
func (f *Fetcher) FetchMonth(ctx context.Context, month string) (ynab.MonthDetail, error) {
	if _, err := time.Parse(monthLayout, month); err != nil {
		return ynab.MonthDetail{}, fmt.Errorf("invalid month %q, expected YYYY-MM-DD: %w", month, err)
	}

	type result struct {
		detail ynab.MonthDetail
		err    error
	}

	// the ynab client has no context support, so the request is abandoned
	// rather than cancelled when ctx ends first
	done := make(chan result, 1)
	go func() {
		detail, err := f.months.Get(f.budgetID, month)
		done <- result{detail, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return ynab.MonthDetail{}, apierr.Classify(fmt.Errorf("failed to get month %s for budget %s: %w", month, f.budgetID, ctx.Err()))
	case r = <-done:
	}

	if r.err != nil {
		return ynab.MonthDetail{}, apierr.Classify(fmt.Errorf("failed to get month %s for budget %s: %w", month, f.budgetID, r.err))
	}

	if r.detail.Month == "" {
		return ynab.MonthDetail{}, fmt.Errorf("month %s for budget %s has no month field: %w", month, f.budgetID, apierr.ErrDataShape)
	}

	return r.detail, nil
}
