package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate holds what is printed on one attendance certificate.
type Certificate struct {
	FirstName string
	LastName  string
	Email     string
	OrderID   string
	Workshop  string
	Date      time.Time
	Hours     float64
	Language  string
	Issuer    string
}

type certificateText struct {
	heading  string
	body     string
	hourUnit string
	hoursFmt string
	dateFmt  string
}

var certificateTexts = map[string]certificateText{
	"en": {
		heading:  "Certificate of attendance",
		body:     "This certifies that",
		hourUnit: "hour",
		hoursFmt: "attended the workshop \"%s\" on %s, for a duration of %s.",
		dateFmt:  "January 2, 2006",
	},
	"fr": {
		heading:  "Attestation de participation",
		body:     "Nous attestons que",
		hourUnit: "heure",
		hoursFmt: "a participé à l'atelier « %s » le %s, d'une durée de %s.",
		dateFmt:  "2006-01-02",
	},
}

// SupportedCertificateLanguage reports whether a certificate template exists
// for the language.
func SupportedCertificateLanguage(language string) bool {
	_, ok := certificateTexts[language]
	return ok
}

// CertificateRenderer draws landscape attendance certificates with gofpdf.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render produces the PDF for one attendee.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	text, ok := certificateTexts[cert.Language]
	if !ok {
		return nil, fmt.Errorf("unsupported certificate language %q", cert.Language)
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetLineWidth(1)
	pdf.Rect(10, 10, 277, 190, "D")

	pdf.SetY(40)
	pdf.SetFont("Arial", "B", 28)
	pdf.CellFormat(0, 14, tr(text.heading), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 8, tr(text.body), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 12, tr(SafeDisplayName(cert.FirstName)+" "+SafeDisplayName(cert.LastName)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 14)
	line := fmt.Sprintf(text.hoursFmt, cert.Workshop, cert.Date.Format(text.dateFmt), FormatHours(cert.Hours, text.hourUnit))
	pdf.MultiCell(0, 8, tr(line), "", "C", false)

	if cert.Issuer != "" {
		pdf.SetY(170)
		pdf.SetFont("Arial", "I", 12)
		pdf.CellFormat(0, 8, tr(cert.Issuer), "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatHours spells a duration with the singular unit up to one hour,
// e.g. "1 hour." or "3.5 heures.".
func FormatHours(hours float64, unit string) string {
	value := strconv.FormatFloat(hours, 'f', -1, 64)
	if hours > 1 {
		unit += "s"
	}
	return value + " " + unit + "."
}

// SafeDisplayName upper-cases a printed name and swaps characters the
// certificate font renders poorly.
func SafeDisplayName(name string) string {
	name = strings.ReplaceAll(name, "&", " and ")
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.ToUpper(name)
}
