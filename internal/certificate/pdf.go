// Package certificate issues certificate codes and renders the certificate
// and performance report PDFs.
package certificate

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/scoring"
)

// Data is everything printed on a certificate or performance report.
type Data struct {
	Code           string
	FullName       string
	Email          string
	DocumentID     string
	Level          model.ProficiencyLevel
	Score          int
	RawScore       int
	TotalQuestions int
	Passed         bool
	FailureReason  string
	IssuedAt       time.Time
	// VerifyURL is encoded into the QR code; empty skips the QR code.
	VerifyURL string
	// TemplatePath is an optional background image (JPEG or PNG).
	TemplatePath string
	// CooldownDays is quoted in the retake advice of failed reports.
	CooldownDays int
}

const (
	landscapeW = 297.0
	landscapeH = 210.0
	centerX    = landscapeW / 2
)

// RenderCertificate writes an A4 landscape certificate of achievement.
func RenderCertificate(w io.Writer, d Data) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	if d.TemplatePath != "" {
		opts := gofpdf.ImageOptions{ImageType: imageType(d.TemplatePath), ReadDpi: true}
		pdf.ImageOptions(d.TemplatePath, 0, 0, landscapeW, landscapeH, false, opts, 0, "")
	} else {
		pdf.SetDrawColor(30, 58, 138)
		pdf.SetLineWidth(2)
		pdf.Rect(10, 10, landscapeW-20, landscapeH-20, "D")
		pdf.SetLineWidth(0.5)
		pdf.Rect(14, 14, landscapeW-28, landscapeH-28, "D")
	}

	centered := func(y float64, family, style string, size float64, txt string) {
		pdf.SetFont(family, style, size)
		pdf.SetXY(0, y)
		pdf.CellFormat(landscapeW, 10, tr(txt), "", 0, "C", false, 0, "")
	}

	pdf.SetTextColor(30, 58, 138)
	centered(35, "Helvetica", "B", 28, "ENGLISH PROFICIENCY TEST")
	pdf.SetTextColor(100, 116, 139)
	centered(55, "Helvetica", "", 16, "CERTIFICATE OF ACHIEVEMENT")
	centered(75, "Helvetica", "", 11, "THIS CERTIFIES THAT")

	pdf.SetTextColor(15, 23, 42)
	name := d.FullName
	if name == "" {
		name = "Candidate Name"
	}
	centered(95, "Times", "BI", 30, name)

	pdf.SetTextColor(71, 85, 105)
	centered(115, "Helvetica", "", 11, "has successfully completed the international test and was awarded a certificate in")
	pdf.SetTextColor(15, 23, 42)
	centered(133, "Helvetica", "B", 18, fmt.Sprintf("English Proficiency Level %s", d.Level))
	centered(145, "Helvetica", "", 12, fmt.Sprintf("Score: %d%%", d.Score))

	bottom := 175.0
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(20, bottom)
	pdf.CellFormat(80, 6, "Program Director", "T", 0, "C", false, 0, "")

	pdf.SetXY(landscapeW-100, bottom-7)
	pdf.CellFormat(80, 6, d.IssuedAt.Format("January 2, 2006"), "", 0, "C", false, 0, "")
	pdf.SetXY(landscapeW-100, bottom)
	pdf.CellFormat(80, 6, "Date of Issue", "T", 0, "C", false, 0, "")
	pdf.SetXY(landscapeW-100, bottom+7)
	pdf.CellFormat(80, 6, "ID: "+d.Code, "", 0, "C", false, 0, "")

	if d.VerifyURL != "" {
		png, err := qrcode.Encode(d.VerifyURL, qrcode.Medium, 256)
		if err != nil {
			return fmt.Errorf("encode qr: %w", err)
		}
		pdf.RegisterImageOptionsReader("verify-qr", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		pdf.ImageOptions("verify-qr", centerX-14, bottom-22, 28, 28, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pdf.SetFont("Helvetica", "", 7)
		pdf.SetXY(0, bottom+7)
		pdf.CellFormat(landscapeW, 4, "Scan to verify", "", 0, "C", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render certificate: %w", err)
	}
	return pdf.Output(w)
}

// RenderReport writes an A4 portrait individual performance report.
func RenderReport(w io.Writer, d Data) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Individual Performance Report", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	info := fmt.Sprintf("Candidate: %s\nID/Passport: %s\nEmail: %s\nExam Date: %s",
		d.FullName, orDash(d.DocumentID), d.Email, d.IssuedAt.Format("2006-01-02"))
	pdf.MultiCell(0, 8, tr(info), "", "L", false)
	pdf.Ln(6)

	status := "NOT APPROVED"
	if d.Passed {
		status = "APPROVED"
	}
	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 10, "General Result", "", "L", false)
	pdf.SetFont("Helvetica", "", 12)
	result := fmt.Sprintf("Status: %s\nRaw Score: %d/%d (%d%%)\nCEFR Level Achieved: %s",
		status, d.RawScore, d.TotalQuestions, d.Score, scoring.CEFRLevel(d.Score))
	pdf.MultiCell(0, 8, result, "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 7, "This report details the candidate's performance in the evaluated skills.\n- Reading & Use of English: Assessed\n- Listening Comprehension: Assessed", "", "L", false)
	pdf.Ln(6)

	if d.Passed {
		pdf.MultiCell(0, 6, "Congratulations! You have demonstrated the necessary competencies for the level.", "", "L", false)
	} else {
		pdf.SetTextColor(185, 28, 28)
		note := fmt.Sprintf("Note: The candidate did not reach the minimum required score (%d%%) for certification.", scoring.PassThreshold)
		if d.FailureReason != "" && d.FailureReason != model.DefaultFailureReason {
			note += "\nReason: " + d.FailureReason
		}
		pdf.MultiCell(0, 6, tr(note), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		days := d.CooldownDays
		if days <= 0 {
			days = 30
		}
		pdf.MultiCell(0, 6, fmt.Sprintf("We recommend a study period of %d days before a new attempt.", days), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return pdf.Output(w)
}

// FileName returns a download name such as certificate_Jane_Doe.pdf.
func FileName(kind, fullName string) string {
	name := strings.Join(strings.Fields(fullName), "_")
	if name == "" {
		name = "candidate"
	}
	return kind + "_" + name + ".pdf"
}

func imageType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "PNG"
	case ".gif":
		return "GIF"
	default:
		return "JPG"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
