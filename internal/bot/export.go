package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"officequeue/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	journalSheet = "Журнал"
	queueSheet   = "Очередь"
)

// exportJournal создает Excel файл с журналом приема и текущей очередью
func (b *Bot) exportJournal(ctx context.Context, since time.Time) (string, error) {
	if err := os.MkdirAll(b.config.Exports.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	visits, err := b.queueService.Visits(ctx, since)
	if err != nil {
		return "", fmt.Errorf("error getting visits: %w", err)
	}
	entries, err := b.queueService.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting queue: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(journalSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(queueSheet); err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	writeJournalSheet(f, visits, headerStyle)
	writeQueueSheet(f, entries, headerStyle)

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("journal_%s_to_%s.xlsx", since.Format("2006-01-02"), time.Now().Format("2006-01-02"))
	filePath := filepath.Join(b.config.Exports.Path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("file_path", filePath).Int("visits", len(visits)).Msg("Excel file created")
	return filePath, nil
}

func writeJournalSheet(f *excelize.File, visits []*models.Visit, headerStyle int) {
	headers := []string{"Имя", "ID", "Результат", "Встал в очередь", "Завершено", "Ожидание, мин"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(journalSheet, cell, h)
		_ = f.SetCellStyle(journalSheet, cell, cell, headerStyle)
	}

	for i, v := range visits {
		row := i + 2
		values := []interface{}{
			v.DisplayName,
			v.UserID,
			outcomeLabel(v.Outcome),
			v.JoinedAt.Format("02.01.2006 15:04"),
			v.FinishedAt.Format("02.01.2006 15:04"),
			int(v.Wait().Minutes()),
		}
		for col, val := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(journalSheet, cell, val)
		}
	}

	_ = f.SetColWidth(journalSheet, "A", "A", 25)
	_ = f.SetColWidth(journalSheet, "B", "F", 18)
}

func writeQueueSheet(f *excelize.File, entries []*models.QueueEntry, headerStyle int) {
	headers := []string{"№", "Имя", "ID", "Встал в очередь"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(queueSheet, cell, h)
		_ = f.SetCellStyle(queueSheet, cell, cell, headerStyle)
	}

	for i, e := range entries {
		row := i + 2
		values := []interface{}{e.Position, e.DisplayName, e.UserID, e.JoinedAt.Format("02.01.2006 15:04")}
		for col, val := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(queueSheet, cell, val)
		}
	}

	_ = f.SetColWidth(queueSheet, "B", "B", 25)
	_ = f.SetColWidth(queueSheet, "C", "D", 18)
}

func outcomeLabel(outcome string) string {
	switch outcome {
	case models.OutcomeAccepted:
		return "Принят"
	case models.OutcomeRejected:
		return "Отклонен"
	}
	return outcome
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	since := time.Now().AddDate(0, 0, -models.DefaultExportDays)

	filePath, err := b.exportJournal(ctx, since)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to export journal")
		b.sendMessage(chatID, "❌ Не удалось сформировать отчет")
		return
	}

	caption := fmt.Sprintf("📥 Журнал приема с %s", since.Format("02.01.2006"))
	if _, err := b.tgService.SendDocument(chatID, filePath, caption); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("file_path", filePath).Msg("Failed to send export file")
		b.sendMessage(chatID, "❌ Не удалось отправить файл")
		return
	}

	if err := os.Remove(filePath); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file_path", filePath).Msg("Failed to remove export file")
	}
}
