package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
)

// Default CSV basenames used when Names leaves a table blank.
var defaultCSVNames = config.SheetConfig{
	Roster:     "roster",
	Rejections: "rejections",
	Deals:      "deals",
	Activity:   "activity",
}

// DirLoader reads the four tables from <Dir>/<name>.csv.
type DirLoader struct {
	Dir   string
	Names config.SheetConfig
}

// Load reads the four files concurrently.
func (l *DirLoader) Load(ctx context.Context) (model.RawTables, error) {
	var out model.RawTables
	g, ctx := errgroup.WithContext(ctx)
	read := func(name, fallback string, dst *[][]string) {
		if name == "" {
			name = fallback
		}
		path := filepath.Join(l.Dir, name+".csv")
		g.Go(func() error {
			rows, err := ReadCSVFile(ctx, path)
			if err != nil {
				return err
			}
			*dst = rows
			return nil
		})
	}
	read(l.Names.Roster, defaultCSVNames.Roster, &out.Roster)
	read(l.Names.Rejections, defaultCSVNames.Rejections, &out.Rejections)
	read(l.Names.Deals, defaultCSVNames.Deals, &out.Deals)
	read(l.Names.Activity, defaultCSVNames.Activity, &out.Activity)
	if err := g.Wait(); err != nil {
		return model.RawTables{}, err
	}

	zap.L().Debug("source: csv directory loaded", zap.String("dir", l.Dir))
	return out, nil
}

// ReadCSVFile returns every record of a CSV file, header rows included.
func ReadCSVFile(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var rows [][]string
	rowCh, errCh := StreamCSV(ctx, f)
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "source: read %s", path)
	}
	return rows, nil
}

// StreamCSV reads CSV records and sends them to a channel. Records may have
// varying field counts. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(skipBOM(r))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// skipBOM drops a leading UTF-8 byte order mark, which spreadsheet exports
// commonly prepend.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
