// Package sheets reads and writes cell ranges of one Google spreadsheet.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Client is bound to a single spreadsheet.
type Client struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
}

// New authenticates with the service account credentials file unless opts
// supply other credentials.
func New(ctx context.Context, credentialsFile, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if credentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}
	opts = append(opts, option.WithScopes(gsheets.SpreadsheetsScope))

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{values: svc.Spreadsheets.Values, spreadsheetID: spreadsheetID}, nil
}

// Read returns the range as rows of strings. Google omits trailing empty
// cells, so rows may be shorter than the range.
func (c *Client) Read(ctx context.Context, rng string) ([][]string, error) {
	resp, err := c.values.Get(c.spreadsheetID, rng).ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				rows[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return rows, nil
}

// Write overwrites the range starting at its top-left cell. Values are parsed
// as if typed by a user, keeping dates as dates.
func (c *Client) Write(ctx context.Context, rng string, values [][]string) error {
	grid := make([][]interface{}, len(values))
	for i, row := range values {
		grid[i] = make([]interface{}, len(row))
		for j, cell := range row {
			grid[i][j] = cell
		}
	}
	_, err := c.values.Update(c.spreadsheetID, rng, &gsheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         grid,
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write range %s: %w", rng, err)
	}
	return nil
}
