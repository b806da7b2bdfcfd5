package google

import (
	"context"
	"fmt"
	"os"

	"officequeue/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var journalHeader = []interface{}{"Visit ID", "User ID", "Name", "Outcome", "Joined At", "Finished At", "Wait (min)"}

// JournalSheet appends served visits to a Google spreadsheet tab.
type JournalSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewJournalSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*JournalSheet, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newJournalSheet(srv, spreadsheetID, sheetName), nil
}

func newJournalSheet(srv *sheets.Service, spreadsheetID, sheetName string) *JournalSheet {
	return &JournalSheet{service: srv, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// TestConnection проверяет доступ к таблице
func (s *JournalSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles when the first row is empty.
func (s *JournalSheet) EnsureHeader(ctx context.Context) error {
	headerRange := fmt.Sprintf("%s!A1:G1", s.sheetName)
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, &sheets.ValueRange{
		Values: [][]interface{}{journalHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// AppendVisits добавляет строки журнала одним запросом
func (s *JournalSheet) AppendVisits(ctx context.Context, visits []*models.Visit) error {
	if len(visits) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(visits))
	for _, v := range visits {
		values = append(values, visitRowValues(v))
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:A", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func visitRowValues(v *models.Visit) []interface{} {
	return []interface{}{
		v.ID,
		v.UserID,
		v.DisplayName,
		v.Outcome,
		v.JoinedAt.Format("2006-01-02 15:04:05"),
		v.FinishedAt.Format("2006-01-02 15:04:05"),
		int(v.Wait().Minutes()),
	}
}
