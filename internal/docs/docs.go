// Package docs renders markdown and produces the PDF documents served by
// the download endpoints.
package docs

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/go-pdf/fpdf"
	pdfreader "github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// The renderer configuration never changes and goldmark.Markdown is safe
// to share, so it is built once and reused.
var (
	mdInstance goldmark.Markdown
	mdOnce     sync.Once
)

func renderer() goldmark.Markdown {
	mdOnce.Do(func() {
		mdInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return mdInstance
}

// RenderHTML converts GitHub-flavored markdown to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := renderer().Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("docs.RenderHTML: %w", err)
	}
	return buf.String(), nil
}

// pdfTagReplacer maps common block tags onto the small tag set the PDF
// writer understands. Unknown tags are dropped by the writer but their
// text is kept, so this only affects layout.
var pdfTagReplacer = strings.NewReplacer(
	"<strong>", "<b>", "</strong>", "</b>",
	"<em>", "<i>", "</em>", "</i>",
	"<h1>", "<br><b>", "</h1>", "</b><br>",
	"<h2>", "<br><b>", "</h2>", "</b><br>",
	"<h3>", "<br><b>", "</h3>", "</b><br>",
	"<p>", "", "</p>", "<br><br>",
	"<ul>", "<br>", "</ul>", "<br>",
	"<ol>", "<br>", "</ol>", "<br>",
	"<li>", "- ", "</li>", "<br>",
	"<pre>", "<br>", "</pre>", "<br>",
	"<code>", "", "</code>", "",
	"<blockquote>", "<br>", "</blockquote>", "<br>",
)

// HTMLToPDF writes html as an A4 PDF at path.
func HTMLToPDF(htmlText, path string) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)

	writer := doc.HTMLBasicNew()
	_, lineHt := doc.GetFontSize()
	writer.Write(lineHt*1.4, pdfTagReplacer.Replace(htmlText))

	if err := doc.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("docs.HTMLToPDF: %w", err)
	}
	return nil
}

// MarkdownToPDF renders markdown and writes it as a PDF at path.
func MarkdownToPDF(markdown, path string) error {
	htmlText, err := RenderHTML(markdown)
	if err != nil {
		return fmt.Errorf("docs.MarkdownToPDF: %w", err)
	}
	return HTMLToPDF(htmlText, path)
}

// PDFText extracts the plain text of the PDF at path.
func PDFText(path string) (string, error) {
	f, reader, err := pdfreader.Open(path)
	if err != nil {
		return "", fmt.Errorf("docs.PDFText: %w", err)
	}
	defer func() { _ = f.Close() }()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("docs.PDFText: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", fmt.Errorf("docs.PDFText: %w", err)
	}
	return buf.String(), nil
}
