// Package google exports monthly summaries to a Google Sheets
// spreadsheet. Credentials come from an OAuth client file plus a saved
// token, see cmd/coppia-oauth for the bootstrap.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"coppia/internal/export"
)

// Config locates the target spreadsheet and the OAuth material.
type Config struct {
	SpreadsheetID string
	SheetName     string
	ClientFile    string
	TokenFile     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.SummaryWriter = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if cfg.SheetName == "" {
		return nil, errors.New("missing sheet name")
	}

	clientJSON, err := os.ReadFile(cfg.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("read OAuth client file: %w", err)
	}
	oauthCfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}

	tokenJSON, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read OAuth token file: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}, nil
}

// WriteMonthlySummary appends one block of rows per summary: a header
// row, one row per category, and a total row. Re-exports of the same
// month append a fresh block; the sheet keeps history.
func (c *Client) WriteMonthlySummary(ctx context.Context, s export.MonthlySummary) error {
	rows := make([][]any, 0, len(s.Categories)+2)
	rows = append(rows, []any{s.Month, s.CoupleName, "", ""})
	for _, ct := range s.Categories {
		rows = append(rows, []any{"", string(ct.Category), ct.Total.String(), ct.Count})
	}
	rows = append(rows, []any{"", "total", s.Total.String(), ""})

	vr := &gsheet.ValueRange{Values: rows}
	rng := fmt.Sprintf("%s!A:D", c.sheetName)

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append summary rows: %w", err)
	}

	slog.InfoContext(ctx, "Exported monthly summary",
		"month", s.Month,
		"rows", len(rows),
		"updated_range", resp.Updates.UpdatedRange)
	return nil
}
