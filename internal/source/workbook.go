package source

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/model"
)

// DateLayout is how date-typed cells are rendered before normalization.
const DateLayout = "2006/1/2 15:04:05"

// WorkbookLoader reads the four tables from named sheets of one XLSX file.
type WorkbookLoader struct {
	Path   string
	Sheets config.SheetConfig
}

// Load opens the workbook once and reads the sheets concurrently.
func (l *WorkbookLoader) Load(ctx context.Context) (model.RawTables, error) {
	f, err := xlsx.OpenFile(l.Path)
	if err != nil {
		return model.RawTables{}, eris.Wrapf(err, "source: open workbook %s", l.Path)
	}

	var out model.RawTables
	g, ctx := errgroup.WithContext(ctx)
	read := func(name string, dst *[][]string) {
		g.Go(func() error {
			rows, err := ReadSheet(ctx, f, name)
			if err != nil {
				return err
			}
			*dst = rows
			return nil
		})
	}
	read(l.Sheets.Roster, &out.Roster)
	read(l.Sheets.Rejections, &out.Rejections)
	read(l.Sheets.Deals, &out.Deals)
	read(l.Sheets.Activity, &out.Activity)
	if err := g.Wait(); err != nil {
		return model.RawTables{}, err
	}

	zap.L().Debug("source: workbook loaded",
		zap.String("path", l.Path),
		zap.Int("roster", len(out.Roster)),
		zap.Int("rejections", len(out.Rejections)),
		zap.Int("deals", len(out.Deals)),
		zap.Int("activity", len(out.Activity)),
	)
	return out, nil
}

// ReadSheet returns every row of the named sheet as strings, header rows
// included.
func ReadSheet(ctx context.Context, f *xlsx.File, name string) ([][]string, error) {
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("source: sheet %q not found", name)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: context cancelled")
		}
		rows = append(rows, rowToStrings(row, f.Date1904))
	}
	return rows, nil
}

func rowToStrings(row *xlsx.Row, date1904 bool) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellString(cell, date1904)
	}
	return cells
}

// cellString renders date-typed cells with DateLayout and numbers without
// their display format so thousands separators never reach the parser.
func cellString(cell *xlsx.Cell, date1904 bool) string {
	if cell.IsTime() {
		if t, err := cell.GetTime(date1904); err == nil {
			return t.Format(DateLayout)
		}
	}
	if cell.Type() == xlsx.CellTypeNumeric {
		if f, err := cell.Float(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return cell.String()
}
