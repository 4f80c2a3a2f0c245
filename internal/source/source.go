// Package source reads the four input tables from a workbook, a CSV
// directory, or a workbook downloaded over HTTP or FTP.
package source

import (
	"context"
	"net/url"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/resilience"
)

// Source kinds.
const (
	KindXLSX = "xlsx"
	KindCSV  = "csv"
)

// Loader produces the raw tables for one run.
type Loader interface {
	Load(ctx context.Context) (model.RawTables, error)
}

// Downloader fetches a remote file to a local path. Returns bytes written.
type Downloader interface {
	DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error)
}

// New returns the loader selected by cfg. A URL takes precedence over a
// local path.
func New(cfg config.SourceConfig) (Loader, error) {
	if cfg.URL != "" {
		d, err := downloaderFor(cfg)
		if err != nil {
			return nil, err
		}
		return &RemoteLoader{URL: cfg.URL, Sheets: cfg.Sheets, Downloader: d}, nil
	}

	if cfg.Path == "" {
		return nil, eris.New("source: no path or url configured")
	}

	kind := cfg.Kind
	if kind == "" {
		kind = KindXLSX
		if fi, err := os.Stat(cfg.Path); err == nil && fi.IsDir() {
			kind = KindCSV
		}
	}

	switch kind {
	case KindXLSX:
		return &WorkbookLoader{Path: cfg.Path, Sheets: cfg.Sheets}, nil
	case KindCSV:
		return &DirLoader{Dir: cfg.Path, Names: cfg.Files}, nil
	default:
		return nil, eris.Errorf("source: unknown kind %q", kind)
	}
}

func downloaderFor(cfg config.SourceConfig) (Downloader, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "source: parse url")
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	switch u.Scheme {
	case "http", "https":
		opts := HTTPOptions{
			Timeout: timeout,
			Retry:   resilience.Policy{Attempts: cfg.MaxRetries, Base: time.Second, Jitter: 0.25},
		}
		if cfg.RatePerSec > 0 {
			opts.Throttle = NewThrottle(rate.Limit(cfg.RatePerSec))
		}
		return NewHTTPFetcher(opts), nil
	case "ftp":
		return NewFTPFetcher(FTPOptions{
			Timeout: timeout,
			Retry:   resilience.Policy{Attempts: cfg.MaxRetries, Base: time.Second, Jitter: 0.25},
		}), nil
	default:
		return nil, eris.Errorf("source: unsupported url scheme %q", u.Scheme)
	}
}
