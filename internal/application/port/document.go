package port

import (
	"context"
	"io"

	"github.com/garyjia/river-voucher/internal/domain/entity"
)

// TicketRenderer produces the printable voucher stub
type TicketRenderer interface {
	// RenderPDF writes the stub of a voucher as a one-page PDF
	RenderPDF(ctx context.Context, v *entity.Voucher, w io.Writer) error

	// RenderPNG rasterizes the first page of a rendered PDF
	RenderPNG(ctx context.Context, pdf []byte) ([]byte, error)
}

// ExportFormat is a report export file format
type ExportFormat string

const (
	ExportXLSX ExportFormat = "xlsx"
	ExportCSV  ExportFormat = "csv"
)

// ReportExporter writes voucher listings as spreadsheets
type ReportExporter interface {
	Export(ctx context.Context, format ExportFormat, vouchers []*entity.Voucher, w io.Writer) error
}
