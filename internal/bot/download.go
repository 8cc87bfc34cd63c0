package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-telegram-ai-bot/internal/services"
)

// fileResolver is the slice of the Telegram API needed to resolve a file ID
// to a download link; *tgbotapi.BotAPI satisfies it.
type fileResolver interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// FileDownloader fetches Telegram files into a transient local directory.
// Downloaded files are inputs for the content extractor; nothing here
// cleans them up beyond what the OS does with the directory.
type FileDownloader struct {
	api   fileResolver
	token string
	dir   string
	http  *http.Client
	log   zerolog.Logger
}

// NewFileDownloader constructs a downloader writing into dir. The directory
// is created on first use.
func NewFileDownloader(api fileResolver, token, dir string, log zerolog.Logger) *FileDownloader {
	return &FileDownloader{
		api:   api,
		token: token,
		dir:   dir,
		http:  &http.Client{},
		log:   log.With().Str("component", "downloader").Logger(),
	}
}

// Download resolves fileID, fetches the payload, and stores it under the
// transient directory as name (base name only; any path segments are
// stripped). It returns the local path. All failures are services.ErrDownload.
func (d *FileDownloader) Download(ctx context.Context, fileID, name string) (string, error) {
	file, err := d.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("%w: get file: %v", services.ErrDownload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(d.token), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", services.ErrDownload, err)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch: %v", services.ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetch: status %d", services.ErrDownload, resp.StatusCode)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir: %v", services.ErrDownload, err)
	}

	if name == "" {
		name = fileID
	}
	path := filepath.Join(d.dir, filepath.Base(name))

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: create: %v", services.ErrDownload, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("%w: write: %v", services.ErrDownload, err)
	}

	d.log.Debug().Str("file_id", fileID).Str("path", path).Msg("file downloaded")
	return path, nil
}
