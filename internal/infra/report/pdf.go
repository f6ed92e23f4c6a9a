package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/go-pdf/fpdf"
)

var columns = []struct {
	title string
	width float64
}{
	{"Rank", 15},
	{"User", 75},
	{"Score", 25},
	{"Time (s)", 25},
	{"Completed (UTC)", 50},
}

// PDFRenderer lays out a leaderboard as a single-table A4 document.
type PDFRenderer struct {
	now func() time.Time
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{now: time.Now}
}

func (r *PDFRenderer) Render(quiz domain.Quiz, board domain.Leaderboard) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Leaderboard: %s", quiz.Title), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Leaderboard: "+quiz.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Quiz #%d, generated %s", quiz.ID, r.now().UTC().Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range columns {
		pdf.CellFormat(c.width, 8, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(board.Results) == 0 {
		pdf.CellFormat(190, 8, "No results yet", "1", 1, "C", false, 0, "")
	}
	for i, res := range board.Results {
		user := res.UserEmail
		if user == "" {
			user = "user #" + strconv.FormatInt(res.UserID, 10)
		}
		row := []string{
			strconv.Itoa(i + 1),
			tr(user),
			fmt.Sprintf("%d/%d", res.Score, res.MaxScore),
			strconv.Itoa(res.TimeSpentSeconds),
			res.CompletedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		for j, c := range columns {
			align := "C"
			if j == 1 {
				align = "L"
			}
			pdf.CellFormat(c.width, 7, row[j], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
