// Package browser drives headless web sessions for agent runs and records
// what they see into the execution state log.
package browser

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/gosuda/daksha/internal/docs"
	"github.com/gosuda/daksha/internal/domain"
	"github.com/gosuda/daksha/internal/metrics"
)

// Page is the minimal surface of a live browser page. The production
// implementation sits on Playwright; tests substitute a fake.
type Page interface {
	Goto(url string) error
	URL() string
	Title() (string, error)
	Content() (string, error)
	InnerText() (string, error)
	Screenshot(path string) error
	PDF(path string) error
	Close() error
}

// PageFactory opens a fresh page.
type PageFactory func(ctx context.Context) (Page, error)

// Config carries the dependencies shared by every pooled session.
type Config struct {
	ScreenshotsDir string
	PDFsDir        string
	States         domain.StateRepository
	Metrics        *metrics.Metrics
}

// Session wraps one page with snapshot recording and content extraction.
type Session struct {
	page Page
	cfg  Config
}

func NewSession(page Page, cfg Config) *Session {
	return &Session{page: page, cfg: cfg}
}

func (s *Session) Goto(url string) error {
	if err := s.page.Goto(url); err != nil {
		return fmt.Errorf("browser.Session.Goto: %w", err)
	}
	return nil
}

// CurrentURL returns the page's current address.
func (s *Session) CurrentURL() string {
	return s.page.URL()
}

// CaptureSnapshot screenshots the page under a random name and appends a
// state log entry pointing at it. It returns the screenshot path.
func (s *Session) CaptureSnapshot(ctx context.Context, project string) (string, error) {
	name, err := randomName()
	if err != nil {
		return "", fmt.Errorf("browser.Session.CaptureSnapshot: %w", err)
	}
	path := filepath.Join(s.cfg.ScreenshotsDir, name+".png")

	if err := s.page.Screenshot(path); err != nil {
		return "", fmt.Errorf("browser.Session.CaptureSnapshot: %w", err)
	}

	snap := domain.NewSnapshot()
	snap.InternalMonologue = "Browsing the web right now..."
	snap.Browser = domain.BrowserSession{URL: s.page.URL(), Screenshot: path}
	if err := s.cfg.States.Append(ctx, project, snap); err != nil {
		return "", fmt.Errorf("browser.Session.CaptureSnapshot: %w", err)
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.BrowserCapturesTotal.Inc()
	}
	return path, nil
}

// HTML returns the page source.
func (s *Session) HTML() (string, error) {
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("browser.Session.HTML: %w", err)
	}
	return html, nil
}

// Markdown returns the page source converted to markdown.
func (s *Session) Markdown() (string, error) {
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("browser.Session.Markdown: %w", err)
	}
	out, err := converter().ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("browser.Session.Markdown: %w", err)
	}
	return out, nil
}

// VisibleText returns the rendered text of the page body.
func (s *Session) VisibleText() (string, error) {
	text, err := s.page.InnerText()
	if err != nil {
		return "", fmt.Errorf("browser.Session.VisibleText: %w", err)
	}
	return text, nil
}

// ExportPDF prints the page to a PDF named after its title and returns
// the path.
func (s *Session) ExportPDF() (string, error) {
	title, err := s.page.Title()
	if err != nil {
		return "", fmt.Errorf("browser.Session.ExportPDF: %w", err)
	}
	path := filepath.Join(s.cfg.PDFsDir, fileSafe(title)+".pdf")
	if err := s.page.PDF(path); err != nil {
		return "", fmt.Errorf("browser.Session.ExportPDF: %w", err)
	}
	return path, nil
}

// Content prints the page to a PDF and extracts its plain text. The
// print layout strips navigation chrome that innerText keeps.
func (s *Session) Content() (string, error) {
	path, err := s.ExportPDF()
	if err != nil {
		return "", fmt.Errorf("browser.Session.Content: %w", err)
	}
	text, err := docs.PDFText(path)
	if err != nil {
		return "", fmt.Errorf("browser.Session.Content: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (s *Session) Close() error {
	return s.page.Close()
}

func randomName() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func fileSafe(s string) string {
	s = domain.ProjectSlug(s)
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	if s == "" {
		s = "page"
	}
	return s
}

// The converter holds no per-call state, so one instance serves all
// sessions.
var (
	mdConverter *md.Converter
	mdOnce      sync.Once
)

func converter() *md.Converter {
	mdOnce.Do(func() {
		mdConverter = md.NewConverter("", true, nil)
	})
	return mdConverter
}
