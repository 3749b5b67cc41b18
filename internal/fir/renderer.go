package fir

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/translate"
)

const (
	title      = "FIRST INFORMATION REPORT (FIR)"
	footer     = "This is a computer-generated draft. Please review and submit to authorities."
	noneListed = "None mentioned"
	margin     = 50.0
	lineHeight = 16.0
	family     = "Report"
)

var (
	filenamePattern = regexp.MustCompile(`^FIR_[A-Za-z0-9_-]+_\d+\.pdf$`)
	unsafeUserChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

type fontPair struct{ regular, bold string }

// fonts maps a language to its Noto TTF pair under the fonts directory.
var fonts = map[translate.Language]fontPair{
	translate.English:   {"NotoSans-Regular.ttf", "NotoSans-Bold.ttf"},
	translate.Hindi:     {"NotoSansDevanagari-Regular.ttf", "NotoSansDevanagari-Bold.ttf"},
	translate.Marathi:   {"NotoSansDevanagari-Regular.ttf", "NotoSansDevanagari-Bold.ttf"},
	translate.Tamil:     {"NotoSansTamil-Regular.ttf", "NotoSansTamil-Bold.ttf"},
	translate.Telugu:    {"NotoSansTelugu-Regular.ttf", "NotoSansTelugu-Bold.ttf"},
	translate.Bengali:   {"NotoSansBengali-Regular.ttf", "NotoSansBengali-Bold.ttf"},
	translate.Gujarati:  {"NotoSansGujarati-Regular.ttf", "NotoSansGujarati-Bold.ttf"},
	translate.Kannada:   {"NotoSansKannada-Regular.ttf", "NotoSansKannada-Bold.ttf"},
	translate.Malayalam: {"NotoSansMalayalam-Regular.ttf", "NotoSansMalayalam-Bold.ttf"},
	translate.Punjabi:   {"NotoSansGurmukhi-Regular.ttf", "NotoSansGurmukhi-Bold.ttf"},
}

// Renderer writes FIR PDFs into a data directory and resolves them again
// for download.
type Renderer struct {
	dataDir  string
	fontsDir string
	now      func() time.Time
	log      zerolog.Logger
}

func NewRenderer(dataDir, fontsDir string, log zerolog.Logger) *Renderer {
	return &Renderer{dataDir: dataDir, fontsDir: fontsDir, now: time.Now, log: log}
}

func (r *Renderer) SetClock(now func() time.Time) { r.now = now }

// Render lays out details and stores the document as
// FIR_<user>_<epochMillis>.pdf, returning the file name. Missing fonts
// degrade to Helvetica; only I/O errors fail the render.
func (r *Renderer) Render(d *Details, userID string, lang translate.Language) (string, error) {
	if d == nil {
		return "", ErrMissingDetails
	}
	now := r.now()

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("LegalLens", true)
	pdf.SetCreationDate(now)

	fam, enc := r.loadFonts(pdf, lang)
	w := &writer{pdf: pdf, family: fam, enc: enc}
	pdf.AddPage()

	w.font("B", 20)
	w.block(title, "C")
	pdf.Ln(lineHeight / 2)
	w.font("", 12)
	w.block("Generated: "+now.Format("02/01/2006, 15:04:05"), "C")
	pdf.Ln(lineHeight * 2)

	w.section("COMPLAINANT DETAILS",
		"Name: "+orPlaceholder(d.ComplainantName),
		"Address: "+orPlaceholder(d.ComplainantAddress),
		"Phone: "+orPlaceholder(d.ComplainantPhone))
	w.section("INCIDENT DETAILS",
		"Date: "+orPlaceholder(d.IncidentDate),
		"Time: "+orPlaceholder(d.IncidentTime),
		"Location: "+orPlaceholder(d.IncidentLocation),
		"Type: "+orPlaceholder(d.HarassmentType))
	w.section("ACCUSED DETAILS",
		"Name: "+orPlaceholder(d.AccusedName),
		"Description: "+orPlaceholder(d.AccusedDescription))

	w.heading("INCIDENT DESCRIPTION")
	w.font("", 11)
	w.block(orPlaceholder(d.IncidentDescription), "J")
	pdf.Ln(lineHeight)

	w.section("WITNESSES", orNone(d.Witnesses))
	w.section("EVIDENCE", orNone(d.Evidence))

	pdf.Ln(lineHeight)
	w.font("", 10)
	pdf.SetTextColor(128, 128, 128)
	w.block(footer, "C")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("render FIR: %w", err)
	}
	return r.store(buf.Bytes(), userID, now)
}

// loadFonts registers the language's TTF pair, falling back to Helvetica
// with cp1252 translation when the files are absent or unreadable.
func (r *Renderer) loadFonts(pdf *fpdf.Fpdf, lang translate.Language) (string, func(string) string) {
	pair, ok := fonts[lang]
	if !ok {
		pair = fonts[translate.English]
	}
	regular, errR := os.ReadFile(filepath.Join(r.fontsDir, pair.regular))
	bold, errB := os.ReadFile(filepath.Join(r.fontsDir, pair.bold))
	if err := errors.Join(errR, errB); err == nil {
		pdf.AddUTF8FontFromBytes(family, "", regular)
		pdf.AddUTF8FontFromBytes(family, "B", bold)
		if !pdf.Err() {
			return family, func(s string) string { return s }
		}
		r.log.Warn().Err(pdf.Error()).Str("lang", string(lang)).Msg("font registration failed, using Helvetica")
		pdf.ClearError()
	} else {
		r.log.Warn().Err(err).Str("lang", string(lang)).Msg("font not found, using Helvetica")
	}
	return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
}

// store writes the document under a fresh name. A name taken within the
// same millisecond moves on to the next one.
func (r *Renderer) store(doc []byte, userID string, at time.Time) (string, error) {
	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	user := sanitizeUser(userID)
	ms := at.UnixMilli()
	for range 100 {
		name := fmt.Sprintf("FIR_%s_%d.pdf", user, ms)
		f, err := os.OpenFile(filepath.Join(r.dataDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			ms++
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create FIR file: %w", err)
		}
		if _, err := f.Write(doc); err != nil {
			f.Close()
			return "", fmt.Errorf("write FIR file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close FIR file: %w", err)
		}
		r.log.Info().Str("file", name).Int("bytes", len(doc)).Msg("FIR PDF written")
		return name, nil
	}
	return "", fmt.Errorf("no free FIR filename for user %q", user)
}

// Path resolves a download name to a file inside the data directory.
func (r *Renderer) Path(name string) (string, error) {
	if !filenamePattern.MatchString(name) {
		return "", ErrInvalidFilename
	}
	p := filepath.Join(r.dataDir, name)
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stat FIR file: %w", err)
	}
	return p, nil
}

func sanitizeUser(userID string) string {
	s := unsafeUserChars.ReplaceAllString(userID, "_")
	if strings.Trim(s, "_") == "" {
		return "default"
	}
	return s
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return noneListed
	}
	return s
}

type writer struct {
	pdf    *fpdf.Fpdf
	family string
	enc    func(string) string
}

func (w *writer) font(style string, size float64) {
	w.pdf.SetFont(w.family, style, size)
}

func (w *writer) block(text, align string) {
	w.pdf.MultiCell(0, lineHeight, w.enc(text), "", align, false)
}

func (w *writer) heading(text string) {
	w.font("B", 14)
	w.block(text, "L")
	w.pdf.Ln(lineHeight / 4)
}

func (w *writer) section(heading string, lines ...string) {
	w.heading(heading)
	w.font("", 11)
	for _, l := range lines {
		w.block(l, "L")
	}
	w.pdf.Ln(lineHeight)
}
