package voucher

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
)

func exportFixture() []*entity.Voucher {
	second := sampleVoucher()
	second.ID = 483
	second.Number = "13/2026"
	second.PassengerName = "José Araújo"
	second.PassengerCPF = "01234567890"
	return []*entity.Voucher{sampleVoucher(), second}
}

func TestExporter_XLSX(t *testing.T) {
	e := NewExporter(nil, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), port.ExportXLSX, exportFixture(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ReportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ReportColumns, rows[0])
	assert.Equal(t, "12/2026", rows[1][0])
	assert.Equal(t, "01/03/2026 09:30:00", rows[1][1])
	assert.Equal(t, "APPROVED", rows[1][2])
	assert.Equal(t, "01234567890", rows[2][4])
	assert.Equal(t, "B/M Tio Gracy", rows[2][9])
}

func TestExporter_CSV(t *testing.T) {
	e := NewExporter(nil, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), port.ExportCSV, exportFixture(), &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ReportColumns, records[0])
	assert.Equal(t, "José Araújo", records[2][3])
	assert.Equal(t, "01234567890", records[2][4])
}

func TestExporter_EmptyAndUnknown(t *testing.T) {
	e := NewExporter(nil, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, e.Export(context.Background(), port.ExportCSV, nil, &buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)

	err = e.Export(context.Background(), port.ExportFormat("pdf"), nil, &buf)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
