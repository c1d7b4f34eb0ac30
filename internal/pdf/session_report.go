package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator is mocked in service tests.
type Generator interface {
	GenerateSessionReport(data SessionReportData) (string, error)
}

// DocumentGenerator writes PDF files under RootDir.
type DocumentGenerator struct {
	RootDir  string // e.g. "./files"
	FontPath string // TTF with Cyrillic/Latin glyphs; core Helvetica when empty
}

type SessionRow struct {
	ID             int64
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	Origin         string
	Active         bool
}

type SessionReportData struct {
	AccountID      int64
	Username       string
	FullName       string
	Role           string
	Locked         bool
	FailedAttempts int
	LastLoginAt    *time.Time
	GeneratedAt    time.Time
	Sessions       []SessionRow
	Filename       string // generated when empty
}

const stampLayout = "02.01.2006 15:04"

func NewDocumentGenerator(rootDir, fontPath string) *DocumentGenerator {
	return &DocumentGenerator{
		RootDir:  filepath.Clean(rootDir),
		FontPath: fontPath,
	}
}

// GenerateSessionReport renders the sign-in history of one account and
// returns the absolute path of the file.
func (g *DocumentGenerator) GenerateSessionReport(data SessionReportData) (string, error) {
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}
	filename := data.Filename
	if filename == "" {
		filename = fmt.Sprintf("sessions_account_%d_%s.pdf", data.AccountID, data.GeneratedAt.Format("20060102_150405"))
	}
	absPath, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Session audit: %s", data.Username), false)
	doc.SetAuthor("Hospital Records", false)
	doc.SetMargins(15, 20, 15)
	doc.SetAutoPageBreak(true, 20)
	font := g.setupFont(doc)

	doc.AliasNbPages("")
	doc.SetFooterFunc(func() {
		doc.SetY(-15)
		doc.SetFont(font, "", 9)
		doc.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", doc.PageNo()), "", 0, "C", false, 0, "")
	})
	doc.AddPage()

	doc.SetFont(font, "B", 16)
	doc.CellFormat(0, 10, "SESSION AUDIT REPORT", "", 1, "C", false, 0, "")
	doc.SetFont(font, "", 10)
	doc.CellFormat(0, 6, "Generated "+data.GeneratedAt.Format(stampLayout), "", 1, "C", false, 0, "")
	hr(doc)

	sectionTitle(doc, font, "Account")
	kvLine(doc, font, "Account ID", fmt.Sprintf("%d", data.AccountID))
	kvLine(doc, font, "Username", data.Username)
	if data.FullName != "" {
		kvLine(doc, font, "Name", data.FullName)
	}
	kvLine(doc, font, "Role", data.Role)
	kvLine(doc, font, "Locked", yesNo(data.Locked))
	kvLine(doc, font, "Failed attempts", fmt.Sprintf("%d", data.FailedAttempts))
	lastLogin := "never"
	if data.LastLoginAt != nil {
		lastLogin = data.LastLoginAt.Format(stampLayout)
	}
	kvLine(doc, font, "Last login", lastLogin)
	hr(doc)

	sectionTitle(doc, font, fmt.Sprintf("Sessions (%d)", len(data.Sessions)))
	widths := []float64{15, 33, 33, 33, 40, 26}
	header := []string{"ID", "Opened", "Expires", "Last activity", "Origin", "State"}
	doc.SetFont(font, "B", 9)
	doc.SetFillColor(230, 230, 230)
	for i, h := range header {
		doc.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont(font, "", 9)
	for _, s := range data.Sessions {
		cells := []string{
			fmt.Sprintf("%d", s.ID),
			s.CreatedAt.Format(stampLayout),
			s.ExpiresAt.Format(stampLayout),
			s.LastActivityAt.Format(stampLayout),
			s.Origin,
			sessionState(s, data.GeneratedAt),
		}
		for i, c := range cells {
			doc.CellFormat(widths[i], 6, c, "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}
	if len(data.Sessions) == 0 {
		doc.CellFormat(0, 7, "No sessions recorded.", "", 1, "L", false, 0, "")
	}

	if err := doc.OutputFileAndClose(absPath); err != nil {
		return "", fmt.Errorf("write session report: %w", err)
	}
	return absPath, nil
}

func sessionState(s SessionRow, at time.Time) string {
	switch {
	case !s.Active:
		return "closed"
	case at.After(s.ExpiresAt):
		return "expired"
	default:
		return "active"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ===== helpers =====

func (g *DocumentGenerator) setupFont(doc *gofpdf.Fpdf) string {
	if g.FontPath == "" {
		return "Helvetica"
	}
	const name = "DejaVu"
	doc.AddUTF8Font(name, "", g.FontPath)
	doc.AddUTF8Font(name, "B", g.FontPath)
	return name
}

func (g *DocumentGenerator) ensureTarget(filename string) (string, error) {
	if err := os.MkdirAll(g.RootDir, 0o755); err != nil {
		return "", fmt.Errorf("create files dir: %w", err)
	}
	filename = filepath.Base(filename) // no path traversal
	abs, err := filepath.Abs(filepath.Join(g.RootDir, filename))
	if err != nil {
		return "", fmt.Errorf("resolve report path: %w", err)
	}
	return abs, nil
}

func sectionTitle(doc *gofpdf.Fpdf, font, s string) {
	doc.SetFont(font, "B", 12)
	doc.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	doc.SetFont(font, "", 11)
}

func kvLine(doc *gofpdf.Fpdf, font, key, val string) {
	doc.SetFont(font, "B", 10)
	doc.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	doc.SetFont(font, "", 10)
	doc.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func hr(doc *gofpdf.Fpdf) {
	left, _, right, _ := doc.GetMargins()
	pageW, _ := doc.GetPageSize()
	y := doc.GetY() + 1.5
	doc.SetLineWidth(0.2)
	doc.Line(left, y, pageW-right, y)
	doc.SetY(y + 2)
}
