package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Launcher owns the Playwright driver and the shared Chromium process.
// The driver binaries must already be installed on the host.
type Launcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func Launch(headless bool) (*Launcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("browser.Launch: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("browser.Launch: %w", err)
	}

	return &Launcher{pw: pw, browser: b}, nil
}

// Factory opens pages on the shared browser process.
func (l *Launcher) Factory() PageFactory {
	return func(context.Context) (Page, error) {
		page, err := l.browser.NewPage()
		if err != nil {
			return nil, fmt.Errorf("browser.Launcher: new page: %w", err)
		}
		return &playwrightPage{page: page}, nil
	}
}

func (l *Launcher) Close() error {
	if err := l.browser.Close(); err != nil {
		_ = l.pw.Stop()
		return fmt.Errorf("browser.Launcher.Close: %w", err)
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("browser.Launcher.Close: %w", err)
	}
	return nil
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string) error {
	_, err := p.page.Goto(url)
	return err
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Title() (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) InnerText() (string, error) {
	v, err := p.page.Evaluate("() => document.body.innerText")
	if err != nil {
		return "", err
	}
	text, _ := v.(string)
	return text, nil
}

func (p *playwrightPage) Screenshot(path string) error {
	// Screen media keeps the screenshot looking like the live page
	// rather than its print layout.
	if err := p.page.EmulateMedia(playwright.PageEmulateMediaOptions{
		Media: playwright.MediaScreen,
	}); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	return err
}

func (p *playwrightPage) PDF(path string) error {
	_, err := p.page.PDF(playwright.PagePdfOptions{
		Path: playwright.String(path),
	})
	return err
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
