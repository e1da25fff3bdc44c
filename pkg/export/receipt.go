package export

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

// ReceiptItem is one line of the itemized table.
type ReceiptItem struct {
	Code        string
	Description string
	Participant string
	Amount      float64
}

// Receipt is the payment proof handed to a payer.
type Receipt struct {
	Number           string
	IssuedAt         time.Time
	PayerName        string
	PayerCI          string
	PayerPhone       string
	PaymentMethod    string
	PaymentReference string
	Verified         bool
	Items            []ReceiptItem
}

// Total sums every item.
func (r Receipt) Total() float64 {
	var total float64
	for _, it := range r.Items {
		total += it.Amount
	}
	return total
}

const (
	receiptRowHeight   = 7.0
	receiptBottomLimit = 235.0
)

// ReceiptRenderer draws vacation payment receipts.
type ReceiptRenderer struct {
	school config.SchoolConfig
}

// NewReceiptRenderer builds a renderer printing the configured school data.
func NewReceiptRenderer(school config.SchoolConfig) *ReceiptRenderer {
	return &ReceiptRenderer{school: school}
}

// Render produces the receipt PDF. Items that do not fit on the first page
// continue on following pages; totals and signatures close the last one.
func (r *ReceiptRenderer) Render(rec Receipt) ([]byte, error) {
	if len(rec.Items) == 0 {
		return nil, fmt.Errorf("receipt requires at least one item")
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Generado el %s  -  Página %d", time.Now().Format("02/01/2006 15:04"), pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	r.page(pdf, tr, rec)
	r.tableHeader(pdf, tr)

	for i, it := range rec.Items {
		if pdf.GetY()+receiptRowHeight > receiptBottomLimit {
			r.page(pdf, tr, rec)
			r.tableHeader(pdf, tr)
		}
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(10, receiptRowHeight, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(32, receiptRowHeight, tr(it.Code), "1", 0, "", false, 0, "")
		pdf.CellFormat(70, receiptRowHeight, tr(truncate(it.Description, 42)), "1", 0, "", false, 0, "")
		pdf.CellFormat(48, receiptRowHeight, tr(truncate(it.Participant, 28)), "1", 0, "", false, 0, "")
		pdf.CellFormat(26, receiptRowHeight, fmt.Sprintf("%.2f", it.Amount), "1", 1, "R", false, 0, "")
	}

	// totals + signatures need ~45mm
	if pdf.GetY()+45 > receiptBottomLimit+20 {
		r.page(pdf, tr, rec)
	}

	total := rec.Total()
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(160, 8, "TOTAL Bs.", "1", 0, "R", false, 0, "")
	pdf.CellFormat(26, 8, fmt.Sprintf("%.2f", total), "1", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(186, 6, tr("Son: "+AmountInWords(total)), "", "L", false)

	if rec.PaymentMethod != "" || rec.PaymentReference != "" {
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Forma de pago: %s   Referencia: %s", rec.PaymentMethod, rec.PaymentReference)), "", 1, "", false, 0, "")
	}

	y := pdf.GetY() + 22
	pdf.Line(30, y, 90, y)
	pdf.Line(126, y, 186, y)
	pdf.SetXY(30, y+1)
	pdf.CellFormat(60, 5, tr("Recibí conforme"), "", 0, "C", false, 0, "")
	pdf.SetXY(126, y+1)
	pdf.CellFormat(60, 5, tr("Entregué conforme"), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *ReceiptRenderer) page(pdf *gofpdf.Fpdf, tr func(string) string, rec Receipt) {
	pdf.AddPage()
	r.watermark(pdf, rec.Verified)

	x := 15.0
	if r.school.LogoPath != "" {
		if _, err := os.Stat(r.school.LogoPath); err == nil {
			pdf.ImageOptions(r.school.LogoPath, 15, 12, 20, 0, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
			x = 38
		}
	}

	pdf.SetXY(x, 14)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(120, 7, tr(strings.ToUpper(r.school.Name)), "", 2, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(120, 5, tr(r.school.City), "", 0, "", false, 0, "")

	pdf.SetXY(150, 14)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(51, 7, "RECIBO", "1", 2, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(51, 6, tr("N° "+rec.Number), "1", 2, "C", false, 0, "")
	pdf.CellFormat(51, 6, rec.IssuedAt.Format("02/01/2006"), "1", 0, "C", false, 0, "")

	pdf.SetXY(15, 40)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(30, 6, "Recibido de:", "", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(90, 6, tr(rec.PayerName), "B", 0, "", false, 0, "")
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(12, 6, "CI:", "", 0, "R", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(54, 6, tr(rec.PayerCI), "B", 1, "", false, 0, "")
	if rec.PayerPhone != "" {
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(30, 6, tr("Teléfono:"), "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(90, 6, tr(rec.PayerPhone), "B", 1, "", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *ReceiptRenderer) tableHeader(pdf *gofpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 234, 240)
	pdf.CellFormat(10, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(32, 7, tr("Código"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(70, 7, "Curso", "1", 0, "C", true, 0, "")
	pdf.CellFormat(48, 7, "Participante", "1", 0, "C", true, 0, "")
	pdf.CellFormat(26, 7, "Monto Bs.", "1", 1, "C", true, 0, "")
}

func (r *ReceiptRenderer) watermark(pdf *gofpdf.Fpdf, verified bool) {
	text := "PENDIENTE"
	if verified {
		text = "PAGADO"
	}
	pdf.SetAlpha(0.08, "Normal")
	pdf.SetFont("Arial", "B", 80)
	pdf.SetTextColor(31, 58, 95)
	pdf.TransformBegin()
	pdf.TransformRotate(35, 108, 140)
	pdf.Text(40, 160, text)
	pdf.TransformEnd()
	pdf.SetAlpha(1, "Normal")
	pdf.SetTextColor(0, 0, 0)
}
