package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

// EnrollmentCertificate is the data printed on a proof of enrollment.
type EnrollmentCertificate struct {
	EnrollmentNumber string
	StudentName      string
	StudentCode      string
	StudentCI        string
	Level            string
	Grade            string
	Section          string
	Shift            string
	Period           string
	Status           string
	EnrollmentDate   time.Time
}

// RenderCertificate draws a one page enrollment certificate.
func RenderCertificate(school config.SchoolConfig, cert EnrollmentCertificate) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(25, 25, 25)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(0, 8, tr(strings.ToUpper(school.Name)), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr(school.City), "", 1, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("CONSTANCIA DE MATRÍCULA"), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr("N° "+cert.EnrollmentNumber), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	body := fmt.Sprintf("La Dirección de %s certifica que el(la) estudiante %s, con código %s",
		school.Name, strings.ToUpper(cert.StudentName), cert.StudentCode)
	if cert.StudentCI != "" {
		body += fmt.Sprintf(" y cédula de identidad %s", cert.StudentCI)
	}
	body += fmt.Sprintf(", se encuentra matriculado(a) en %s %s, paralelo %s, turno %s, para la gestión %s, con estado %s.",
		cert.Grade, cert.Level, cert.Section, cert.Shift, cert.Period, strings.ToUpper(cert.Status))

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 7, tr(body), "", "J", false)
	pdf.Ln(6)
	if !cert.EnrollmentDate.IsZero() {
		pdf.MultiCell(0, 7, tr("Fecha de matrícula: "+cert.EnrollmentDate.Format("02/01/2006")), "", "L", false)
	}
	pdf.MultiCell(0, 7, tr("Se extiende la presente constancia a solicitud del interesado para los fines que viera conveniente."), "", "J", false)
	pdf.Ln(8)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("%s, %s", school.City, spanishDate(time.Now()))), "", 1, "R", false, 0, "")

	y := pdf.GetY() + 35
	pdf.Line(75, y, 140, y)
	pdf.SetXY(75, y+1)
	pdf.CellFormat(65, 5, tr("Dirección"), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

var spanishMonths = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

func spanishDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
