package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
)

// RemoteLoader downloads a workbook to a temp file and reads it.
type RemoteLoader struct {
	URL        string
	Sheets     config.SheetConfig
	Downloader Downloader
}

// Load downloads the workbook and reads its four sheets.
func (l *RemoteLoader) Load(ctx context.Context) (model.RawTables, error) {
	dir, err := os.MkdirTemp("", "salesops-*")
	if err != nil {
		return model.RawTables{}, eris.Wrap(err, "source: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	path := filepath.Join(dir, "workbook.xlsx")
	n, err := l.Downloader.DownloadToFile(ctx, l.URL, path)
	if err != nil {
		return model.RawTables{}, eris.Wrapf(err, "source: download %s", l.URL)
	}
	zap.L().Info("source: workbook downloaded", zap.String("url", l.URL), zap.Int64("bytes", n))

	wb := &WorkbookLoader{Path: path, Sheets: l.Sheets}
	return wb.Load(ctx)
}
