package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Matrículas 2025",
		Headers: []string{"Número", "Estudiante"},
		Rows: []map[string]string{
			{"Número": "MAT-2025-0001", "Estudiante": "Quispe Mamani, Ana"},
			{"Número": "MAT-2025-0002", "Estudiante": "Peña, José"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	text := strings.TrimPrefix(string(out), "\uFEFF")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Número,Estudiante", lines[0])
	assert.Equal(t, `MAT-2025-0001,"Quispe Mamani, Ana"`, lines[1])
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(xlsxSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Matrículas 2025", title)

	header, _ := f.GetCellValue(xlsxSheet, "B3")
	assert.Equal(t, "Estudiante", header)
	last, _ := f.GetCellValue(xlsxSheet, "A5")
	assert.Equal(t, "MAT-2025-0002", last)
}

func TestRendererFor(t *testing.T) {
	r, err := RendererFor("")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", r.Extension())

	r, err = RendererFor(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", r.ContentType())

	_, err = RendererFor("doc")
	assert.Error(t, err)
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)

	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestReceiptRendererSpillsToSecondPage(t *testing.T) {
	items := make([]ReceiptItem, 0, 40)
	for i := 0; i < 40; i++ {
		items = append(items, ReceiptItem{Code: fmt.Sprintf("VAC-V2025-%04d", i+1), Description: "Natación", Participant: "Niño", Amount: 10})
	}
	r := NewReceiptRenderer(config.SchoolConfig{Name: "U.E. Modelo", City: "La Paz"})

	single, err := r.Render(Receipt{Number: "VAC-V2025-0001", PayerName: "Juan", Items: items[:1], IssuedAt: time.Now()})
	require.NoError(t, err)
	multi, err := r.Render(Receipt{Number: "VAC-V2025-0001", PayerName: "Juan", Items: items, Verified: true})
	require.NoError(t, err)

	assert.Equal(t, 1, bytes.Count(single, []byte("/Type /Page\n")))
	assert.GreaterOrEqual(t, bytes.Count(multi, []byte("/Type /Page\n")), 2)
}

func TestReceiptRequiresItems(t *testing.T) {
	_, err := NewReceiptRenderer(config.SchoolConfig{}).Render(Receipt{})
	assert.Error(t, err)
}

func TestReceiptTotal(t *testing.T) {
	rec := Receipt{Items: []ReceiptItem{{Amount: 100}, {Amount: 50.5}}}
	assert.InDelta(t, 150.5, rec.Total(), 0.001)
}

func TestRenderCertificate(t *testing.T) {
	out, err := RenderCertificate(config.SchoolConfig{Name: "U.E. Modelo", City: "Sucre"}, EnrollmentCertificate{
		EnrollmentNumber: "MAT-2025-0001",
		StudentName:      "Ana Quispe",
		StudentCode:      "EST-2025-0001",
		Grade:            "Primero",
		Level:            "Secundaria",
		Section:          "A",
		Shift:            "Mañana",
		Period:           "2025",
		Status:           "activo",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestSpanishDate(t *testing.T) {
	assert.Equal(t, "5 de marzo de 2025", spanishDate(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)))
}
