// Package fetcher opens dataset locations (local paths, HTTP(S) and FTP URLs)
// and parses the tabular formats the datasets ship in.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/popdash/internal/resilience"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Scheme classifies a dataset location.
type Scheme string

// Supported location schemes.
const (
	SchemeFile Scheme = "file"
	SchemeHTTP Scheme = "http"
	SchemeFTP  Scheme = "ftp"
)

// SchemeOf returns the scheme of a location. Anything that does not parse as an
// http(s) or ftp URL is treated as a local path.
func SchemeOf(location string) Scheme {
	u, err := url.Parse(location)
	if err != nil {
		return SchemeFile
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return SchemeHTTP
	case "ftp":
		return SchemeFTP
	default:
		return SchemeFile
	}
}

// Ext returns the lower-cased file extension of a location, ignoring any URL
// query string.
func Ext(location string) string {
	if SchemeOf(location) != SchemeFile {
		if u, err := url.Parse(location); err == nil {
			return strings.ToLower(path.Ext(u.Path))
		}
	}
	return strings.ToLower(filepath.Ext(location))
}

// Options configures an Opener.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
	UserAgent  string
	TempDir    string
}

// Opener resolves dataset locations to readers or local files.
type Opener struct {
	http    Fetcher
	ftp     Fetcher
	retry   resilience.Policy
	tempDir string
}

// NewOpener creates an Opener with HTTP and FTP fetchers built from opts.
func NewOpener(opts Options) *Opener {
	retry := resilience.DefaultPolicy()
	if opts.MaxRetries > 0 {
		retry.Attempts = opts.MaxRetries
	}

	return &Opener{
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
			RatePerSec: opts.RatePerSec,
		}),
		ftp:     NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
		retry:   retry,
		tempDir: tempDirOr(opts.TempDir),
	}
}

// NewOpenerWith creates an Opener from explicit fetchers. Nil fetchers make the
// corresponding scheme unsupported.
func NewOpenerWith(httpFetcher, ftpFetcher Fetcher, tempDir string) *Opener {
	return &Opener{
		http:    httpFetcher,
		ftp:     ftpFetcher,
		retry:   resilience.DefaultPolicy(),
		tempDir: tempDirOr(tempDir),
	}
}

// tempDirOr falls back to the system temp dir for downloads.
func tempDirOr(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}

func (o *Opener) fetcherFor(scheme Scheme) (Fetcher, error) {
	switch scheme {
	case SchemeHTTP:
		if o.http != nil {
			return o.http, nil
		}
	case SchemeFTP:
		if o.ftp != nil {
			return o.ftp, nil
		}
	}
	return nil, eris.Errorf("fetcher: no fetcher for scheme %q", scheme)
}

// Open returns a reader over the dataset at location. The caller must close it.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	scheme := SchemeOf(location)
	if scheme == SchemeFile {
		f, err := os.Open(location)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", location)
		}
		return f, nil
	}

	f, err := o.fetcherFor(scheme)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fetcher: downloading dataset", zap.String("location", location), zap.String("scheme", string(scheme)))

	if scheme == SchemeFTP {
		// FTP has no retry of its own.
		policy := o.retry
		policy.OnRetry = resilience.LogRetries(string(scheme), location)
		return resilience.Retry(ctx, policy, func(ctx context.Context) (io.ReadCloser, error) {
			return f.Download(ctx, location)
		})
	}
	return f.Download(ctx, location)
}

// Localize makes location available as a local file. Local paths are returned
// unchanged with a no-op cleanup. Remote locations are downloaded into the temp
// dir; cleanup removes the download.
func (o *Opener) Localize(ctx context.Context, location string) (string, func(), error) {
	scheme := SchemeOf(location)
	if scheme == SchemeFile {
		if _, err := os.Stat(location); err != nil {
			return "", func() {}, eris.Wrapf(err, "fetcher: stat %s", location)
		}
		return location, func() {}, nil
	}

	if err := os.MkdirAll(o.tempDir, 0o755); err != nil {
		return "", func() {}, eris.Wrap(err, "fetcher: create temp dir")
	}
	dir, err := os.MkdirTemp(o.tempDir, "dataset-*")
	if err != nil {
		return "", func() {}, eris.Wrap(err, "fetcher: create download dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	name := "dataset" + Ext(location)
	if u, err := url.Parse(location); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	dest := filepath.Join(dir, name)

	rc, err := o.Open(ctx, location)
	if err != nil {
		cleanup()
		return "", func() {}, err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		cleanup()
		return "", func() {}, eris.Wrap(err, "fetcher: create local copy")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		cleanup()
		return "", func() {}, eris.Wrap(err, "fetcher: write local copy")
	}

	return dest, cleanup, nil
}
