package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

const partSuffix = ".part"

var ErrInvalidFileName = errors.New("cannot derive file name from URL")

// DownloadError reports a transport or HTTP status failure.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// WriteError reports a local filesystem failure.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

type Target struct {
	ResolvedURL     string
	DestinationPath string
	Bytes           int64
}

type Downloader struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration

	mu    sync.Mutex
	locks map[string]*pathLock
}

// pathLock serializes downloads that share a destination. refs counts the
// holders and waiters so the entry can be dropped when unused.
type pathLock struct {
	mu   sync.Mutex
	refs int
}

func NewDownloader(httpClient *http.Client, userAgent string, timeout time.Duration) *Downloader {
	return &Downloader{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		locks:      make(map[string]*pathLock),
	}
}

// FileName returns the final path segment of resolvedURL, percent-decoded and
// NFC-normalized.
func FileName(resolvedURL string) (string, error) {
	u, err := url.Parse(resolvedURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFileName, err)
	}

	name := path.Base(u.Path)
	name = norm.NFC.String(strings.TrimSpace(name))

	if name == "" || name == "." || name == ".." || name == "/" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %s", ErrInvalidFileName, resolvedURL)
	}

	return name, nil
}

// DestinationPath joins destinationDir with the file name derived from
// resolvedURL. The result is cleaned and always stays inside destinationDir.
func DestinationPath(destinationDir, resolvedURL string) (string, error) {
	name, err := FileName(resolvedURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(destinationDir, name), nil
}

// Download streams resolvedURL into destinationDir. The body is written to a
// ".part" file that is renamed into place once complete.
func (d *Downloader) Download(ctx context.Context, resolvedURL, destinationDir string) (Target, error) {
	destination, err := DestinationPath(destinationDir, resolvedURL)
	if err != nil {
		return Target{}, &DownloadError{URL: resolvedURL, Err: err}
	}

	unlock := d.lockPath(destination)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return Target{}, &DownloadError{URL: resolvedURL, Err: err}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, resolvedURL, nil)
	if err != nil {
		return Target{}, &DownloadError{URL: resolvedURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Target{}, &DownloadError{URL: resolvedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Target{}, &DownloadError{URL: resolvedURL, Err: fmt.Errorf("HTTP error: %s", resp.Status)}
	}

	written, err := d.writeFile(resolvedURL, destination, resp.Body)
	if err != nil {
		return Target{}, err
	}

	slog.Debug("Media written", "url", resolvedURL, "path", destination, "bytes", written)

	return Target{
		ResolvedURL:     resolvedURL,
		DestinationPath: destination,
		Bytes:           written,
	}, nil
}

// lockPath blocks until no other download targets destination and returns
// the matching unlock.
func (d *Downloader) lockPath(destination string) func() {
	d.mu.Lock()
	l, ok := d.locks[destination]
	if !ok {
		l = &pathLock{}
		d.locks[destination] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, destination)
		}
		d.mu.Unlock()
	}
}

// writeFile stages body in a uniquely named ".part" file next to destination
// and renames it into place once complete.
func (d *Downloader) writeFile(resolvedURL, destination string, body io.Reader) (int64, error) {
	file, err := os.CreateTemp(filepath.Dir(destination), filepath.Base(destination)+".*"+partSuffix)
	if err != nil {
		return 0, &WriteError{Path: destination, Err: err}
	}
	partPath := file.Name()

	written, copyErr := io.Copy(file, &bodyReader{r: body})
	closeErr := file.Close()

	if copyErr != nil {
		os.Remove(partPath)
		var readErr *readError
		if errors.As(copyErr, &readErr) {
			return 0, &DownloadError{URL: resolvedURL, Err: readErr.err}
		}
		return 0, &WriteError{Path: destination, Err: copyErr}
	}
	if closeErr != nil {
		os.Remove(partPath)
		return 0, &WriteError{Path: destination, Err: closeErr}
	}

	if err := os.Chmod(partPath, 0644); err != nil {
		os.Remove(partPath)
		return 0, &WriteError{Path: destination, Err: err}
	}

	if err := os.Rename(partPath, destination); err != nil {
		os.Remove(partPath)
		return 0, &WriteError{Path: destination, Err: err}
	}

	return written, nil
}

// bodyReader tags read failures so they can be told apart from write
// failures after io.Copy.
type bodyReader struct {
	r io.Reader
}

type readError struct {
	err error
}

func (e *readError) Error() string { return e.err.Error() }

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &readError{err: err}
	}
	return n, err
}
