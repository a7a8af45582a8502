// Package archive packages project workspaces for download.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/gosuda/daksha/internal/docs"
	"github.com/gosuda/daksha/internal/domain"
)

// Archiver builds zip archives, source dumps, and transcript PDFs for a
// project workspace.
type Archiver struct {
	projectsDir string
	pdfsDir     string
	messages    domain.ConversationRepository
}

func New(projectsDir, pdfsDir string, messages domain.ConversationRepository) *Archiver {
	return &Archiver{projectsDir: projectsDir, pdfsDir: pdfsDir, messages: messages}
}

// ProjectDir returns the workspace directory for project.
func (a *Archiver) ProjectDir(project string) string {
	return filepath.Join(a.projectsDir, domain.ProjectSlug(project))
}

// ZipPath returns where ZipProject writes the archive for project.
func (a *Archiver) ZipPath(project string) string {
	return a.ProjectDir(project) + ".zip"
}

// ZipProject compresses the project workspace and returns the archive
// path. Entry names are relative to the parent of the project directory
// so the archive unpacks into a single top-level folder. Unreadable
// files are skipped; a missing workspace produces an empty archive.
func (a *Archiver) ZipProject(project string) (string, error) {
	dir := a.ProjectDir(project)
	zipPath := a.ZipPath(project)

	out, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("archive.ZipProject: %w", err)
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestSpeed)
	})

	parent := filepath.Dir(dir)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(parent, path)
		if relErr != nil {
			return nil
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})

	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("archive.ZipProject: %w", err)
	}
	return zipPath, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		// Unreadable files are left out of the archive.
		return nil
	}
	defer func() { _ = src.Close() }()

	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

// SourceMarkdown dumps every readable file in the project workspace as a
// fenced code block. A missing workspace yields an empty string.
func (a *Archiver) SourceMarkdown(project string) (string, error) {
	dir := a.ProjectDir(project)

	var b strings.Builder
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = d.Name()
		}
		fmt.Fprintf(&b, "### %s:\n\n```\n%s\n```\n\n---\n\n", filepath.ToSlash(rel), raw)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("archive.SourceMarkdown: %w", err)
	}
	return b.String(), nil
}

// FormatTranscript renders a conversation as markdown, one paragraph per
// message with an Agent or User label.
func FormatTranscript(msgs []*domain.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		label := "User"
		if m.FromAgent {
			label = "Agent"
		}
		lines = append(lines, fmt.Sprintf("**%s:** %s", label, m.Text))
	}
	return strings.Join(lines, "\n\n")
}

// TranscriptPDF writes the project conversation as a PDF and returns its
// path. Unknown projects report domain.ErrNotFound.
func (a *Archiver) TranscriptPDF(ctx context.Context, project string) (string, error) {
	msgs, err := a.messages.GetAll(ctx, project)
	if err != nil {
		return "", fmt.Errorf("archive.TranscriptPDF: %w", err)
	}
	if msgs == nil {
		return "", fmt.Errorf("archive.TranscriptPDF: %w", domain.ErrNotFound)
	}

	path := filepath.Join(a.pdfsDir, domain.ProjectSlug(project)+".pdf")
	if err := docs.MarkdownToPDF(FormatTranscript(msgs), path); err != nil {
		return "", fmt.Errorf("archive.TranscriptPDF: %w", err)
	}
	return path, nil
}
