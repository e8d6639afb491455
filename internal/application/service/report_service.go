package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/vessel"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
)

// DefaultPerPage is the report page size when none is requested
const DefaultPerPage = 10

// ReportQuery filters the requisition report.
// From and To compare against the creation date, both inclusive.
type ReportQuery struct {
	From    *time.Time
	To      *time.Time
	Status  domainwf.State
	Query   string
	Page    int
	PerPage int
}

// ReportPage is one page of a filtered report
type ReportPage struct {
	Items      []*entity.Voucher      `json:"items"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	PerPage    int                    `json:"per_page"`
	TotalPages int                    `json:"total_pages"`
	Counts     map[domainwf.State]int `json:"counts"`
}

// ReportService lists and exports requisitions for issuers and representatives
type ReportService interface {
	Search(ctx context.Context, actor entity.Actor, q ReportQuery) (*ReportPage, error)
	Export(ctx context.Context, actor entity.Actor, q ReportQuery, format port.ExportFormat, w io.Writer) (string, error)
}

type reportServiceImpl struct {
	vouchers VoucherService
	exporter port.ReportExporter
	logger   Logger
	now      func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(vouchers VoucherService, exporter port.ReportExporter, logger Logger) ReportService {
	return &reportServiceImpl{
		vouchers: vouchers,
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *reportServiceImpl) Search(ctx context.Context, actor entity.Actor, q ReportQuery) (*ReportPage, error) {
	filtered, err := s.filtered(ctx, actor, q)
	if err != nil {
		return nil, err
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	totalPages := (len(filtered) + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > len(filtered) {
		end = len(filtered)
	}

	counts := make(map[domainwf.State]int, 4)
	for _, v := range filtered {
		counts[v.Status]++
	}

	return &ReportPage{
		Items:      filtered[start:end],
		Total:      len(filtered),
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Counts:     counts,
	}, nil
}

func (s *reportServiceImpl) Export(ctx context.Context, actor entity.Actor, q ReportQuery, format port.ExportFormat, w io.Writer) (string, error) {
	if format != port.ExportXLSX && format != port.ExportCSV {
		return "", fmt.Errorf("%w: unsupported export format %q", entity.ErrInvalidInput, format)
	}

	filtered, err := s.filtered(ctx, actor, q)
	if err != nil {
		return "", err
	}

	if err := s.exporter.Export(ctx, format, filtered, w); err != nil {
		s.logger.Error("Failed to export report", "error", err, "format", format)
		return "", fmt.Errorf("export report: %w", err)
	}

	filename := fmt.Sprintf("relatorio-requisicoes-%s.%s", s.now().Format("2006-01-02"), format)
	s.logger.Info("Report exported", "format", format, "rows", len(filtered), "actor_id", actor.ID)
	return filename, nil
}

func (s *reportServiceImpl) filtered(ctx context.Context, actor entity.Actor, q ReportQuery) ([]*entity.Voucher, error) {
	if !actor.Is(entity.RoleIssuer, entity.RoleRepresentative, entity.RoleAdmin) {
		return nil, fmt.Errorf("reports: %w", entity.ErrForbidden)
	}

	vouchers, err := s.vouchers.List(ctx, actor, entity.ListFilter{
		Status:      q.Status,
		CreatedFrom: q.From,
		CreatedTo:   q.To,
	})
	if err != nil {
		return nil, err
	}

	query := vessel.Fold(q.Query)
	result := make([]*entity.Voucher, 0, len(vouchers))
	for _, v := range vouchers {
		if !matchesReport(v, q, query) {
			continue
		}
		result = append(result, v)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func matchesReport(v *entity.Voucher, q ReportQuery, foldedQuery string) bool {
	created := v.CreatedAt.Format(entity.DateLayout)
	if q.From != nil && created < q.From.Format(entity.DateLayout) {
		return false
	}
	if q.To != nil && created > q.To.Format(entity.DateLayout) {
		return false
	}
	if q.Status != "" && v.Status != q.Status {
		return false
	}
	if foldedQuery == "" {
		return true
	}

	haystack := strings.Join([]string{
		v.DisplayNumber(),
		v.PassengerName,
		v.Origin,
		v.Destination,
		v.DepartureDate,
		v.CarrierName,
	}, " ")
	return strings.Contains(vessel.Fold(haystack), foldedQuery)
}
