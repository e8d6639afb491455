package voucher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
)

// ReportSheet is the sheet name of XLSX exports
const ReportSheet = "Relatório"

// ReportColumns are the export headers, in order
var ReportColumns = []string{
	"Numero", "Criado em", "Status", "Nome", "CPF", "RG",
	"Origem", "Destino", "Data saída", "Transportador",
}

// Exporter writes voucher listings as XLSX or CSV
type Exporter struct {
	location *time.Location
	logger   *zap.Logger
}

// NewExporter creates a new exporter. Timestamps are printed in loc (UTC when nil).
func NewExporter(loc *time.Location, logger *zap.Logger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{location: loc, logger: logger}
}

// Export implements port.ReportExporter
func (e *Exporter) Export(ctx context.Context, format port.ExportFormat, vouchers []*entity.Voucher, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := e.records(vouchers)
	var err error
	switch format {
	case port.ExportXLSX:
		err = e.writeXLSX(rows, w)
	case port.ExportCSV:
		err = e.writeCSV(rows, w)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return err
	}

	e.logger.Info("Report exported",
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)))
	return nil
}

func (e *Exporter) records(vouchers []*entity.Voucher) [][]string {
	rows := make([][]string, 0, len(vouchers))
	for _, v := range vouchers {
		created := ""
		if !v.CreatedAt.IsZero() {
			created = v.CreatedAt.In(e.location).Format("02/01/2006 15:04:05")
		}
		rows = append(rows, []string{
			v.Number,
			created,
			v.Status.String(),
			v.PassengerName,
			v.PassengerCPF,
			v.PassengerRG,
			v.Origin,
			v.Destination,
			v.DepartureDate,
			v.CarrierName,
		})
	}
	return rows
}

func (e *Exporter) writeXLSX(rows [][]string, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(ReportColumns))
	for i, c := range ReportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(ReportSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ReportSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write XLSX: %w", err)
	}
	return nil
}

func (e *Exporter) writeCSV(rows [][]string, w io.Writer) error {
	cols := make([]series.Series, len(ReportColumns))
	for j, name := range ReportColumns {
		values := make([]string, len(rows))
		for i, row := range rows {
			values[i] = row[j]
		}
		cols[j] = series.New(values, series.String, name)
	}

	df := dataframe.New(cols...)
	if df.Err != nil {
		return fmt.Errorf("failed to build dataframe: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
