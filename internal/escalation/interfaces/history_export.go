package interfaces

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	escalation "servicedesk-cloud/internal/escalation/domain"
)

// BuildHistoryPDF renders a minimal PDF for a ticket's escalation history.
func BuildHistoryPDF(ticketID string, history []escalation.Notification) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Escalation History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Ticket: %s", ticketID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Entries: %d", len(history)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(15, 6, "Level", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Trigger", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "Seq", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Recipients", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Fired At", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, entry := range history {
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", entry.Level), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, string(entry.Trigger), "1", 0, "C", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", entry.RepeatCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, string(entry.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, recipientEmails(entry.Recipients), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, entry.CreatedAt.UTC().Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders a minimal XLSX for a ticket's escalation history.
func BuildHistoryXLSX(ticketID string, history []escalation.Notification) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "history"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Escalation History")
	_ = f.SetCellValue(sheet, "A2", "Ticket")
	_ = f.SetCellValue(sheet, "B2", ticketID)

	_ = f.SetCellValue(sheet, "A4", "Level")
	_ = f.SetCellValue(sheet, "B4", "Trigger")
	_ = f.SetCellValue(sheet, "C4", "Seq")
	_ = f.SetCellValue(sheet, "D4", "Status")
	_ = f.SetCellValue(sheet, "E4", "Recipients")
	_ = f.SetCellValue(sheet, "F4", "Fired At")
	_ = f.SetCellValue(sheet, "G4", "Settled At")
	for i, entry := range history {
		row := i + 5
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), entry.Level)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), string(entry.Trigger))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), entry.RepeatCount)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), string(entry.Status))
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), recipientEmails(entry.Recipients))
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), entry.CreatedAt.UTC().Format(time.RFC3339))
		if !entry.SentAt.IsZero() {
			_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), entry.SentAt.UTC().Format(time.RFC3339))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func recipientEmails(recipients []escalation.Recipient) string {
	emails := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		emails = append(emails, recipient.Email)
	}
	return strings.Join(emails, ", ")
}
