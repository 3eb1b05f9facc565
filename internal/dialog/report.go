package dialog

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Proton-105/worklog-bot/internal/domain"
	"github.com/Proton-105/worklog-bot/internal/state"
	"github.com/Proton-105/worklog-bot/internal/stats"
)

const (
	msgNoReportData = "📭 Нет данных для отчета"
	msgNoStatsData  = "📭 Нет данных для статистики"
	reportCaption   = "📊 Отчет о работах"
	reportSheet     = "Отчет о работах"
	reportMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	userNameLimit   = 20
)

var (
	reportHeader  = []string{"Дата", "Адрес", "Вид работы", "Комментарий"}
	reportWidths  = map[string]float64{"A": 12, "B": 30, "C": 50, "D": 30}
	unsafeFileChr = regexp.MustCompile(`[^\p{L}\p{N}_.)(-]`)
)

func (c *Controller) exportReport(ctx context.Context, s *state.Session, in Input, resp *Response) error {
	entries, err := c.store.GetEntries(ctx, s.UserID, nil)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		resp.say(msgNoReportData, MainMenu())
		return nil
	}

	data, err := BuildReport(entries)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	now := c.clock.Now().In(c.loc)
	name := in.UserName
	if name == "" {
		name = "user_" + s.UserID
	}

	resp.send(Document{
		FileName: ReportFileName(now.Month(), now.Year(), name),
		Caption:  reportCaption,
		MIME:     reportMIME,
		Data:     data,
	}, MainMenu())
	return nil
}

// BuildReport renders entries as an xlsx workbook ordered by date, oldest first. Works
// of a group share one cell.
func BuildReport(entries []domain.WorkEntry) ([]byte, error) {
	sorted := append([]domain.WorkEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := domain.ToISODate(sorted[i].Date)
		b, _ := domain.ToISODate(sorted[j].Date)
		return a < b
	})

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := append([]string(nil), reportHeader...)
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(reportSheet, "A1", "D1", bold); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i, e := range sorted {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []string{e.Date, e.Address, e.WorksText(), e.Comment}
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for col, width := range reportWidths {
		if err := f.SetColWidth(reportSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportFileName builds "отчёт_<месяц>_<год>_<имя>.xlsx" with unsafe characters removed.
func ReportFileName(month time.Month, year int, userName string) string {
	m := domain.MonthGenitive(month)
	name := []rune(sanitizeFileName(userName))
	if len(name) > userNameLimit {
		name = name[:userNameLimit]
	}
	return sanitizeFileName(fmt.Sprintf("отчёт_%s_%d_%s.xlsx", m, year, string(name)))
}

func sanitizeFileName(name string) string {
	return unsafeFileChr.ReplaceAllString(strings.ReplaceAll(name, " ", "_"), "")
}

func (c *Controller) showStats(ctx context.Context, s *state.Session, resp *Response) error {
	snapshot, err := c.stats.Get(ctx, s.UserID, c.computeStats)
	if err != nil {
		return err
	}

	if snapshot == nil || snapshot.TotalGroups == 0 {
		resp.say(msgNoStatsData, MainMenu())
		return nil
	}

	resp.say(stats.Format(snapshot), MainMenu())
	return nil
}
