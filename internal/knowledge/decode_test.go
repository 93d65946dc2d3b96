package knowledge

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, mime string
		want       Format
	}{
		{"notes.md", "", FormatText},
		{"report.PDF", "", FormatPDF},
		{"sheet.xlsx", "", FormatSheet},
		{"page.htm", "", FormatHTML},
		{"blob", "application/pdf", FormatPDF},
		{"blob", "text/plain; charset=utf-8", FormatText},
		{"blob", "application/json", FormatText},
		{"image.png", "image/png", FormatUnknown},
	}
	for _, tt := range tests {
		if got := Detect(tt.name, tt.mime); got != tt.want {
			t.Errorf("Detect(%q, %q) = %q, want %q", tt.name, tt.mime, got, tt.want)
		}
	}
}

func TestDecode_Text(t *testing.T) {
	t.Parallel()

	title, text, err := Decode("guide.txt", "", []byte("  مرحبا بالعالم \n"))
	if err != nil {
		t.Fatal(err)
	}
	if title != "guide" || text != "مرحبا بالعالم" {
		t.Errorf("Decode = %q, %q", title, text)
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	if _, _, err := Decode("photo.png", "image/png", []byte{0x89}); !errors.Is(err, ErrUnsupportedDocument) {
		t.Errorf("png: err = %v, want ErrUnsupportedDocument", err)
	}
	if _, _, err := Decode("bad.txt", "", []byte{0xff, 0xfe, 0xfd}); err == nil {
		t.Error("invalid utf-8: expected error")
	}
	if _, _, err := Decode("empty.md", "", []byte("\n\n")); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("empty: err = %v, want ErrEmptyDocument", err)
	}
	if _, _, err := Decode("broken.pdf", "", []byte("not a pdf")); err == nil {
		t.Error("broken pdf: expected error")
	}
}

func TestDecode_Sheet(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetCellValue("Sheet1", "A1", "المدينة")
	_ = f.SetCellValue("Sheet1", "B1", "السكان")
	_ = f.SetCellValue("Sheet1", "A2", "الرياض")
	_ = f.SetCellValue("Sheet1", "B2", "7000000")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	title, text, err := Decode("cities.xlsx", "", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if title != "cities" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{"## Sheet1", "| المدينة | السكان |", "| الرياض | 7000000 |"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestDecode_HTML(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Majlis Notes</title></head><body>
<article><h1>Majlis Notes</h1>
<p>The majlis is a gathering where people discuss topics of the day at length.
Participants take turns and the host keeps the conversation moving along.</p>
<p>Hospitality, coffee and long conversations are central to every majlis session.</p>
</article></body></html>`

	title, text, err := Decode("notes.html", "", []byte(page))
	if err != nil {
		t.Fatal(err)
	}
	if title != "Majlis Notes" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(text, "gathering where people discuss") {
		t.Errorf("text missing body:\n%s", text)
	}
	if strings.Contains(text, "<p>") {
		t.Errorf("text still contains markup:\n%s", text)
	}
}
