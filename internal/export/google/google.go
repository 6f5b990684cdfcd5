// Package google appends subscription rows to a Google Sheet. The sheet
// is a write-only backup of the local SQLite database: rows are appended
// by the export worker, never read back.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"abbo/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_CREDENTIALS_JSON, GOOGLE_CREDENTIALS_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Subscriptions").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Subscriptions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON"))
	credentialsFile := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_FILE"))
	if credentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var creds []byte
	var err error

	switch {
	case credentialsJSON != "":
		creds = []byte(credentialsJSON)
	case credentialsFile != "":
		creds, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON, GOOGLE_CREDENTIALS_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"has_inline_json", credentialsJSON != "",
		"credentials_file", credentialsFile)
	return service, nil
}

// AppendSubscription appends one subscription row and returns the
// updated range as a row reference.
func (c *Client) AppendSubscription(ctx context.Context, sub core.Subscription) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]any{subscriptionRow(sub)}}
	rng := fmt.Sprintf("%s!A:I", c.sheetName)

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// subscriptionRow flattens a subscription into sheet columns A:I
// (Name, Price, Currency, Frequency, Taxed, Free trial, Cancelled,
// Renewal date, Version timestamp is added by the sheet).
func subscriptionRow(sub core.Subscription) []any {
	return []any{
		sub.Name,
		core.FormatCents(sub.Price.Cents),
		string(sub.Currency),
		string(sub.Frequency),
		flag(sub.IncludeTax),
		flag(sub.FreeTrial),
		flag(sub.Cancelled),
		sub.RenewalDate.String(),
		sub.ID,
	}
}

func flag(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
