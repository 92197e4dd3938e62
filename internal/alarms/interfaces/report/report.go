package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alarmapp "linesim/internal/alarms/application"
	alarms "linesim/internal/alarms/domain"
)

const timeLayout = "2006-01-02 15:04:05.000"

// PatternSource is satisfied by *alarmapp.Index.
type PatternSource interface {
	Summary() alarmapp.Summary
	Groups() []alarms.GroupKey
	Group(key alarms.GroupKey) []alarms.Alarm
	Stats(key alarms.GroupKey) (alarmapp.DurationStats, bool)
	CommonPatterns() []alarmapp.Pattern
	Sequences() [][]alarms.Alarm
	Modules() []string
	MessageCatalog() map[string][]string
}

// BuildPatternXLSX renders the pattern index as a workbook with one sheet per view.
func BuildPatternXLSX(src PatternSource, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	groupsSheet := "groups"
	commonSheet := "common"
	sequencesSheet := "sequences"
	messagesSheet := "messages"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	for _, name := range []string{groupsSheet, commonSheet, sequencesSheet, messagesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	summary := src.Summary()
	_ = f.SetCellValue(summarySheet, "A1", "Alarm Pattern Report")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Alarms")
	_ = f.SetCellValue(summarySheet, "B4", summary.Alarms)
	_ = f.SetCellValue(summarySheet, "A5", "Groups")
	_ = f.SetCellValue(summarySheet, "B5", summary.Groups)
	_ = f.SetCellValue(summarySheet, "A6", "Common Patterns")
	_ = f.SetCellValue(summarySheet, "B6", summary.CommonPatterns)
	_ = f.SetCellValue(summarySheet, "A7", "Cascading Sequences")
	_ = f.SetCellValue(summarySheet, "B7", summary.Sequences)
	_ = f.SetCellValue(summarySheet, "A8", "Modules")
	_ = f.SetCellValue(summarySheet, "B8", summary.Modules)

	setHeader(f, groupsSheet, "Group", "Module", "Severity", "Count", "Mean (ms)", "Min (ms)", "Max (ms)", "With Duration")
	for i, key := range src.Groups() {
		row := i + 2
		_ = f.SetCellValue(groupsSheet, cell("A", row), key.String())
		_ = f.SetCellValue(groupsSheet, cell("B", row), key.Module)
		_ = f.SetCellValue(groupsSheet, cell("C", row), string(key.Severity))
		_ = f.SetCellValue(groupsSheet, cell("D", row), len(src.Group(key)))
		if stats, ok := src.Stats(key); ok {
			_ = f.SetCellValue(groupsSheet, cell("E", row), stats.Mean)
			_ = f.SetCellValue(groupsSheet, cell("F", row), stats.Min)
			_ = f.SetCellValue(groupsSheet, cell("G", row), stats.Max)
			_ = f.SetCellValue(groupsSheet, cell("H", row), stats.Count)
		}
	}

	setHeader(f, commonSheet, "Group", "#", "Activated", "Code", "Message", "Reference")
	row := 2
	for _, pattern := range src.CommonPatterns() {
		for i, alarm := range pattern.Alarms {
			_ = f.SetCellValue(commonSheet, cell("A", row), pattern.Key.String())
			_ = f.SetCellValue(commonSheet, cell("B", row), i+1)
			_ = f.SetCellValue(commonSheet, cell("C", row), alarm.ActivatedAt.Format(timeLayout))
			_ = f.SetCellValue(commonSheet, cell("D", row), alarm.Code)
			_ = f.SetCellValue(commonSheet, cell("E", row), alarm.Message)
			_ = f.SetCellValue(commonSheet, cell("F", row), alarm.Reference)
			row++
		}
	}

	setHeader(f, sequencesSheet, "Sequence", "#", "Activated", "Module", "Severity", "Code", "Message")
	row = 2
	for seq, members := range src.Sequences() {
		for i, alarm := range members {
			_ = f.SetCellValue(sequencesSheet, cell("A", row), seq+1)
			_ = f.SetCellValue(sequencesSheet, cell("B", row), i+1)
			_ = f.SetCellValue(sequencesSheet, cell("C", row), alarm.ActivatedAt.Format(timeLayout))
			_ = f.SetCellValue(sequencesSheet, cell("D", row), alarm.Module)
			_ = f.SetCellValue(sequencesSheet, cell("E", row), string(alarm.Severity))
			_ = f.SetCellValue(sequencesSheet, cell("F", row), alarm.Code)
			_ = f.SetCellValue(sequencesSheet, cell("G", row), alarm.Message)
			row++
		}
	}

	setHeader(f, messagesSheet, "Module", "Message")
	catalog := src.MessageCatalog()
	row = 2
	for _, module := range src.Modules() {
		for _, message := range catalog[module] {
			_ = f.SetCellValue(messagesSheet, cell("A", row), module)
			_ = f.SetCellValue(messagesSheet, cell("B", row), message)
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPatternPDF renders a one-document summary of groups and sequences.
func BuildPatternPDF(src PatternSource, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	summary := src.Summary()
	pdf.Cell(0, 8, "Alarm Pattern Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alarms: %d", summary.Alarms))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Groups: %d  Common patterns: %d", summary.Groups, summary.CommonPatterns))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Cascading sequences: %d", summary.Sequences))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Group", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Mean (ms)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Min (ms)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Max (ms)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, key := range src.Groups() {
		pdf.CellFormat(50, 6, key.String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", len(src.Group(key))), "1", 0, "R", false, 0, "")
		if stats, ok := src.Stats(key); ok {
			pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", stats.Mean), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%d", stats.Min), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%d", stats.Max), "1", 0, "R", false, 0, "")
		} else {
			pdf.CellFormat(105, 6, "-", "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	sequences := src.Sequences()
	if len(sequences) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Cascading sequences")
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 9)
		for i, members := range sequences {
			first := members[0].ActivatedAt
			last := members[len(members)-1].ActivatedAt
			pdf.CellFormat(0, 5, fmt.Sprintf("#%d  %s  %d alarms over %s",
				i+1, first.Format(timeLayout), len(members), last.Sub(first)), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setHeader(f *excelize.File, sheet string, titles ...string) {
	for i, title := range titles {
		name, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			continue
		}
		_ = f.SetCellValue(sheet, name, title)
	}
}

func cell(column string, row int) string {
	return fmt.Sprintf("%s%d", column, row)
}
