package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"yoyaku/internal/core"
	applog "yoyaku/internal/log"
	"yoyaku/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is used when Config.SheetName is empty.
const DefaultSheetName = "Reservations"

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client stores reservations as rows of one sheet: a header row followed by
// one row per reservation.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serializes writes, which locate rows by position.
	mu      sync.Mutex
	sheetID *int64
}

var (
	_ store.Store  = (*Client)(nil)
	_ store.Getter = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		sheetName:     strings.TrimSpace(sheetName),
	}
}

// newSheetsService initializes a Sheets Service from inline JSON, a key file,
// or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials", applog.FieldComponent, applog.ComponentStorage)
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", applog.FieldComponent, applog.ComponentStorage, "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) tableRange() string {
	return fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn)
}

// LoadAll implements store.Loader.
func (c *Client) LoadAll(ctx context.Context) ([]core.Reservation, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.tableRange()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, unavailable("read "+rng, err)
	}
	out, skipped := parseRows(resp.Values)
	for _, s := range skipped {
		slog.WarnContext(ctx, "Skipping unreadable sheet row", applog.FieldComponent, applog.ComponentStorage, "sheet", c.sheetName, "detail", s)
	}
	return out, nil
}

// Get implements store.Getter.
func (c *Client) Get(ctx context.Context, id string) (core.Reservation, error) {
	all, err := c.LoadAll(ctx)
	if err != nil {
		return core.Reservation{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return core.Reservation{}, store.ErrNotFound
}

// Add implements store.Writer by appending a row.
func (c *Client) Add(ctx context.Context, r core.Reservation) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	if findRow(ids, r.ID) > 0 {
		return store.ErrDuplicate
	}
	if len(ids) == 0 {
		if err := c.writeRange(ctx, fmt.Sprintf("%s!A1:%s1", c.sheetName, lastColumn), [][]interface{}{headerRow()}); err != nil {
			return err
		}
	}

	row, err := toRow(r)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{row}}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.tableRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return unavailable("append reservation", err)
	}
	slog.InfoContext(ctx, "Reservation appended to sheet", applog.FieldComponent, applog.ComponentStorage, "id", r.ID, "sheet", c.sheetName)
	return nil
}

// Update implements store.Writer by rewriting the row holding r.ID.
func (c *Client) Update(ctx context.Context, r core.Reservation) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	n := findRow(ids, r.ID)
	if n == 0 {
		return store.ErrNotFound
	}
	row, err := toRow(r)
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", c.sheetName, n, lastColumn, n)
	if err := c.writeRange(ctx, rng, [][]interface{}{row}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Reservation updated in sheet", applog.FieldComponent, applog.ComponentStorage, "id", r.ID, "row", n)
	return nil
}

// Delete implements store.Writer by removing the row holding id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	n := findRow(ids, id)
	if n == 0 {
		return store.ErrNotFound
	}
	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(n - 1),
					EndIndex:        int64(n),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return unavailable("delete row", err)
	}
	slog.InfoContext(ctx, "Reservation deleted from sheet", applog.FieldComponent, applog.ComponentStorage, "id", id, "row", n)
	return nil
}

// ReplaceAll implements store.Replacer by clearing the table and writing it back.
func (c *Client) ReplaceAll(ctx context.Context, rs []core.Reservation) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	values := make([][]interface{}, 0, len(rs)+1)
	values = append(values, headerRow())
	for _, r := range rs {
		row, err := toRow(r)
		if err != nil {
			return err
		}
		values = append(values, row)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.tableRange(), &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return unavailable("clear sheet", err)
	}
	rng := fmt.Sprintf("%s!A1:%s%d", c.sheetName, lastColumn, len(values))
	if err := c.writeRange(ctx, rng, values); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Sheet rewritten", applog.FieldComponent, applog.ComponentStorage, "sheet", c.sheetName, "count", len(rs))
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([][]interface{}, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, unavailable("read "+rng, err)
	}
	return resp.Values, nil
}

func (c *Client) writeRange(ctx context.Context, rng string, values [][]interface{}) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return unavailable("write "+rng, err)
	}
	return nil
}

// resolveSheetID looks up the numeric id of the sheet tab. Caller holds mu.
func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, unavailable("read spreadsheet metadata", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, op, err)
}
