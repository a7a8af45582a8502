package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/daksha/internal/domain"
)

// logTailLines bounds how much of the log file the API returns.
const logTailLines = 200

type DownloadInput struct {
	Name string `path:"name" doc:"Project name"`
}

type FileDownloadOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

type ScreenshotInput struct {
	File string `path:"file" doc:"Screenshot file name"`
}

type ScreenshotOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type LogsInput struct{}

type LogsOutput struct {
	Body struct {
		Logs string `json:"logs" doc:"Tail of the server log file"`
	}
}

func RegisterDownloadRoutes(api huma.API, archiver ProjectArchiver, screenshotsDir, logFile string) {
	huma.Register(api, huma.Operation{
		OperationID: "download-archive",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/archive",
		Summary:     "Download the project workspace as a zip",
		Tags:        []string{"Downloads"},
	}, func(_ context.Context, input *DownloadInput) (*FileDownloadOutput, error) {
		path, err := archiver.ZipProject(input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to archive project", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read archive", err)
		}

		return &FileDownloadOutput{
			ContentType:        "application/zip",
			ContentDisposition: fmt.Sprintf("attachment; filename=%q", filepath.Base(path)),
			Body:               data,
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "download-transcript",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/transcript",
		Summary:     "Download the conversation transcript as a PDF",
		Tags:        []string{"Downloads"},
	}, func(ctx context.Context, input *DownloadInput) (*FileDownloadOutput, error) {
		path, err := archiver.TranscriptPDF(ctx, input.Name)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("project not found")
			}
			return nil, huma.Error500InternalServerError("failed to render transcript", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read transcript", err)
		}

		return &FileDownloadOutput{
			ContentType:        "application/pdf",
			ContentDisposition: fmt.Sprintf("attachment; filename=%q", filepath.Base(path)),
			Body:               data,
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-screenshot",
		Method:      http.MethodGet,
		Path:        "/screenshots/{file}",
		Summary:     "Serve a captured screenshot",
		Tags:        []string{"Downloads"},
	}, func(_ context.Context, input *ScreenshotInput) (*ScreenshotOutput, error) {
		// Snapshots store absolute paths; serving goes by base name only.
		name := filepath.Base(input.File)
		if name == "." || name == ".." || strings.HasPrefix(name, ".") {
			return nil, huma.Error400BadRequest("invalid screenshot name")
		}

		data, err := os.ReadFile(filepath.Join(screenshotsDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, huma.Error404NotFound("screenshot not found")
			}
			return nil, huma.Error500InternalServerError("failed to read screenshot", err)
		}

		return &ScreenshotOutput{ContentType: "image/png", Body: data}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/logs",
		Summary:     "Read the tail of the server log",
		Tags:        []string{"Logs"},
	}, func(_ context.Context, _ *LogsInput) (*LogsOutput, error) {
		out := &LogsOutput{}

		data, err := os.ReadFile(logFile)
		if err != nil {
			if os.IsNotExist(err) {
				return out, nil
			}
			return nil, huma.Error500InternalServerError("failed to read log file", err)
		}

		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		if len(lines) > logTailLines {
			lines = lines[len(lines)-logTailLines:]
		}
		out.Body.Logs = strings.Join(lines, "\n")
		return out, nil
	})
}
