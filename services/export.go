package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"chatpdf-backend/models"
)

// TranscriptExport is the JSON export shape for a document transcript.
type TranscriptExport struct {
	DocumentID string                    `json:"document_id"`
	Filename   string                    `json:"filename"`
	TurnCount  int                       `json:"turn_count"`
	Turns      []models.ConversationTurn `json:"turns"`
}

// BuildTranscriptExport assembles the JSON export payload.
func BuildTranscriptExport(doc *models.Document, turns []models.ConversationTurn) TranscriptExport {
	return TranscriptExport{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		TurnCount:  len(turns),
		Turns:      turns,
	}
}

// TranscriptWorkbook renders a document transcript as an Excel workbook,
// one row per turn.
func TranscriptWorkbook(doc *models.Document, turns []models.ConversationTurn) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Transcript"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(sheet, "A1", "Document")
	f.SetCellValue(sheet, "B1", doc.Filename)

	headers := []string{"Time", "Role", "Message", "Retrieved Chunks"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 3)
		f.SetCellValue(sheet, cell, header)
	}

	for row, turn := range turns {
		values := []interface{}{
			turn.CreatedAt.Format("2006-01-02 15:04:05"),
			turn.Role,
			turn.Text,
			len(turn.RetrievedChunkIDs),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+4)
			f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return &buf, nil
}
