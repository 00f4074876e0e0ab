package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-insights/pkg/client"
)

var (
	errMissingUploader = errors.New("commands: uploader is required")
	errMissingPath     = errors.New("commands: file path is required")
)

// ErrUnsupportedFile is returned for extensions the backend does not accept.
var ErrUnsupportedFile = errors.New("commands: unsupported file type (use .csv, .xls, .xlsx or .json)")

type uploader interface {
	Upload(ctx context.Context, upload client.Upload) (client.Dataset, error)
}

// UploadDatasetInput names the file to submit. Result receives the created
// dataset when set.
type UploadDatasetInput struct {
	Path   string          `json:"path"`
	Result *client.Dataset `json:"-"`
}

// UploadDatasetCommand streams a local file to the dataset list.
type UploadDatasetCommand struct {
	uploader  uploader
	guard     errorHandler
	telemetry Telemetry
}

// NewUploadDatasetCommand builds a command instance. guard may be nil.
func NewUploadDatasetCommand(uploader uploader, guard errorHandler, telemetry Telemetry) *UploadDatasetCommand {
	return &UploadDatasetCommand{uploader: uploader, guard: guard, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[UploadDatasetInput] = (*UploadDatasetCommand)(nil)

// Execute validates the path and uploads the file.
func (c *UploadDatasetCommand) Execute(ctx context.Context, msg UploadDatasetInput) error {
	if c.uploader == nil {
		return errMissingUploader
	}
	if msg.Path == "" {
		return errMissingPath
	}
	if !client.SupportedUpload(msg.Path) {
		return ErrUnsupportedFile
	}
	info, err := os.Stat(msg.Path)
	if err != nil {
		return fmt.Errorf("commands: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("commands: %s is a directory", msg.Path)
	}
	file, err := os.Open(msg.Path)
	if err != nil {
		return fmt.Errorf("commands: %w", err)
	}
	defer file.Close()

	ds, err := c.uploader.Upload(ctx, client.Upload{
		Filename: filepath.Base(msg.Path),
		Body:     file,
	})
	if err != nil {
		handle(c.guard, err)
		return err
	}
	if msg.Result != nil {
		*msg.Result = ds
	}
	c.telemetry.Record(ctx, "dataset.upload", map[string]any{
		"dataset_id": ds.ID,
		"filename":   ds.Filename,
		"bytes":      info.Size(),
	})
	return nil
}
