package sheets

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// Client reads and writes the club spreadsheet directly, bypassing the web
// app deployment. Each resource is a tab of the same name with a header row.
type Client struct {
	srv           *sheetsv4.Service
	spreadsheetID string
}

func New(ctx context.Context, serviceAccountJSONPath, spreadsheetID string) (*Client, error) {
	if _, err := os.Stat(serviceAccountJSONPath); err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	srv, err := sheetsv4.NewService(ctx,
		option.WithCredentialsFile(serviceAccountJSONPath),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, err
	}
	return &Client{srv: srv, spreadsheetID: spreadsheetID}, nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(srv *sheetsv4.Service, spreadsheetID string) *Client {
	return &Client{srv: srv, spreadsheetID: spreadsheetID}
}

func (c *Client) SpreadsheetID() string { return c.spreadsheetID }
