package certificate

import (
	"bytes"
	"testing"
	"time"

	"github.com/stemsi/ept-backend/internal/model"
)

func TestNewCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		c := NewCode()
		if !ValidCode(c) {
			t.Fatalf("invalid code %q", c)
		}
		seen[c] = true
	}
	if len(seen) < 195 {
		t.Fatalf("codes are not random enough: %d unique", len(seen))
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  ab12cd34e "); got != "AB12CD34E" {
		t.Fatalf("got %q", got)
	}
	if ValidCode("ab12cd34e") {
		t.Fatalf("lowercase must not be a valid stored code")
	}
	if ValidCode("AB12") {
		t.Fatalf("short code accepted")
	}
}

func sampleData() Data {
	return Data{
		Code:           "K3X9Q2L7A",
		FullName:       "Ana Lúcia Souza",
		Email:          "ana@example.com",
		Level:          model.LevelB2,
		Score:          85,
		RawScore:       17,
		TotalQuestions: 20,
		Passed:         true,
		IssuedAt:       time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
		VerifyURL:      "https://ept.example.com/verify/K3X9Q2L7A",
	}
}

func TestRenderCertificate(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderCertificate(&buf, sampleData()); err != nil {
		t.Fatalf("RenderCertificate: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestRenderReport(t *testing.T) {
	d := sampleData()
	d.Passed = false
	d.Score = 45
	d.FailureReason = model.DefaultFailureReason

	var buf bytes.Buffer
	if err := RenderReport(&buf, d); err != nil {
		t.Fatalf("RenderReport: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("certificate", " Ana  Souza "); got != "certificate_Ana_Souza.pdf" {
		t.Fatalf("got %q", got)
	}
	if got := FileName("report", ""); got != "report_candidate.pdf" {
		t.Fatalf("got %q", got)
	}
}
