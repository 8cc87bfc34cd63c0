package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-telegram-ai-bot/internal/services"
)

type fakeFileResolver struct {
	file tgbotapi.File
	err  error
}

func (f *fakeFileResolver) GetFile(tgbotapi.FileConfig) (tgbotapi.File, error) {
	return f.file, f.err
}

// stubTransport answers every request with a canned response, keeping the
// downloader off the network.
type stubTransport struct {
	status int
	body   []byte
}

func (s *stubTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
		Header:     make(http.Header),
	}, nil
}

func newTestDownloader(t *testing.T, resolver fileResolver, transport http.RoundTripper) *FileDownloader {
	t.Helper()
	d := NewFileDownloader(resolver, "test-token", filepath.Join(t.TempDir(), "downloads"), zerolog.Nop())
	d.http = &http.Client{Transport: transport}
	return d
}

func TestFileDownloader_WritesPayloadToDisk(t *testing.T) {
	resolver := &fakeFileResolver{file: tgbotapi.File{FileID: "abc", FilePath: "photos/abc.jpg"}}
	d := newTestDownloader(t, resolver, &stubTransport{status: http.StatusOK, body: []byte("jpeg-bytes")})

	path, err := d.Download(context.Background(), "abc", "pic.jpg")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "pic.jpg" {
		t.Errorf("path = %q; want base pic.jpg", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "jpeg-bytes" {
		t.Errorf("payload = %q", got)
	}
}

func TestFileDownloader_StripsPathSegmentsFromName(t *testing.T) {
	resolver := &fakeFileResolver{file: tgbotapi.File{FileID: "abc", FilePath: "documents/abc.pdf"}}
	d := newTestDownloader(t, resolver, &stubTransport{status: http.StatusOK, body: []byte("pdf")})

	path, err := d.Download(context.Background(), "abc", "../../etc/passwd")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "passwd" || filepath.Dir(path) != d.dir {
		t.Errorf("path = %q escaped the download dir %q", path, d.dir)
	}
}

func TestFileDownloader_EmptyNameFallsBackToFileID(t *testing.T) {
	resolver := &fakeFileResolver{file: tgbotapi.File{FileID: "abc", FilePath: "photos/abc.jpg"}}
	d := newTestDownloader(t, resolver, &stubTransport{status: http.StatusOK, body: []byte("x")})

	path, err := d.Download(context.Background(), "abc", "")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "abc" {
		t.Errorf("path = %q; want base abc", path)
	}
}

func TestFileDownloader_ResolveFailure(t *testing.T) {
	resolver := &fakeFileResolver{err: errors.New("bad file id")}
	d := newTestDownloader(t, resolver, &stubTransport{status: http.StatusOK})

	if _, err := d.Download(context.Background(), "abc", "x"); !errors.Is(err, services.ErrDownload) {
		t.Fatalf("err = %v; want ErrDownload", err)
	}
}

func TestFileDownloader_UpstreamStatusFailure(t *testing.T) {
	resolver := &fakeFileResolver{file: tgbotapi.File{FileID: "abc", FilePath: "photos/abc.jpg"}}
	d := newTestDownloader(t, resolver, &stubTransport{status: http.StatusNotFound})

	if _, err := d.Download(context.Background(), "abc", "x"); !errors.Is(err, services.ErrDownload) {
		t.Fatalf("err = %v; want ErrDownload", err)
	}
}
