package voucher

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/workflow"
	"github.com/garyjia/river-voucher/pkg/utils"
)

// DetailPath is the path segment the QR link and the scanner agree on
const DetailPath = "canhoto"

// TicketConfig holds what is printed around the voucher data
type TicketConfig struct {
	Issuer        string
	PublicBaseURL string
	QRSize        int
}

// TicketRenderer draws the voucher stub with a QR code pointing at its detail page
type TicketRenderer struct {
	cfg    TicketConfig
	logger *zap.Logger
}

// NewTicketRenderer creates a new ticket renderer
func NewTicketRenderer(cfg TicketConfig, logger *zap.Logger) *TicketRenderer {
	if cfg.Issuer == "" {
		cfg.Issuer = "PREFEITURA MUNICIPAL"
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &TicketRenderer{cfg: cfg, logger: logger}
}

// DetailURL is the text encoded in the QR code of a voucher
func (r *TicketRenderer) DetailURL(id int64) string {
	return fmt.Sprintf("%s/%s/%d", r.cfg.PublicBaseURL, DetailPath, id)
}

// RenderPDF writes a one-page A4 stub
func (r *TicketRenderer) RenderPDF(ctx context.Context, v *entity.Voucher, w io.Writer) error {
	if v == nil {
		return ErrNilVoucher
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	qrPng, err := qrcode.Encode(r.DetailURL(v.ID), qrcode.Medium, r.cfg.QRSize)
	if err != nil {
		return fmt.Errorf("failed to encode QR: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(r.cfg.Issuer), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, tr("Requisição de Passagem Fluvial Nº "+v.DisplayNumber()), "", 1, "C", false, 0, "")
	if !v.CreatedAt.IsZero() {
		pdf.CellFormat(0, 6, "Data: "+v.CreatedAt.Format("02/01/2006"), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	section := func(title string) {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, tr(title), "B", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
	}
	line := func(label, value string) {
		if value == "" {
			value = "-"
		}
		pdf.CellFormat(0, 6, tr(label+": "+value), "", 1, "L", false, 0, "")
	}

	if v.RequesterKind != "" {
		line("Tipo do solicitante", v.RequesterKind)
	}
	section("1. DADOS PESSOAIS DO REQUERENTE")
	line("Nome", v.PassengerName)
	line("CPF", utils.FormatCPF(v.PassengerCPF))
	line("RG", v.PassengerRG)

	section("2. MOTIVO DA VIAGEM")
	motivo := v.Justification
	if motivo == "" {
		motivo = "-"
	}
	pdf.MultiCell(0, 5, tr(motivo), "", "L", false)

	section("3. VIAGEM")
	line("Data de saída", brDate(v.DepartureDate))
	line("Cidade de origem", v.Origin)
	line("Cidade de destino", v.Destination)
	line("Transportador", v.CarrierName)

	pdf.Ln(6)
	y := pdf.GetY()
	pdf.SetFont("Arial", "B", 10)
	pdf.SetXY(15, y)
	pdf.CellFormat(85, 6, tr("RESPONSÁVEL (PREFEITURA)"), "T", 2, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(85, 5, tr(decisionLine(v)), "", 0, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 10)
	pdf.SetXY(110, y)
	pdf.CellFormat(85, 6, "TRANSPORTADOR", "T", 2, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	carrier := v.CarrierName
	if carrier == "" {
		carrier = "B/M __________________"
	}
	pdf.CellFormat(85, 5, tr(carrier), "", 0, "C", false, 0, "")

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPng))
	pdf.ImageOptions("qr", 75, y+20, 60, 60, false, opts, 0, "")
	pdf.SetXY(15, y+82)
	pdf.SetFont("Arial", "", 9)
	code := v.PublicCode
	if code == "" {
		code = v.DisplayNumber()
	}
	pdf.CellFormat(0, 5, tr("Código: "+code), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, tr("Situação: "+statusText(v.Status)), "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	r.logger.Debug("Ticket rendered",
		zap.Int64("voucher_id", v.ID),
		zap.String("status", v.Status.String()))
	return nil
}

// RenderPNG rasterizes the first page of the PDF with mupdf
func (r *TicketRenderer) RenderPNG(ctx context.Context, pdf []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, ErrEmptyDocument
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func decisionLine(v *entity.Voucher) string {
	switch v.Status {
	case workflow.StatePending:
		return "Aguardando autorização"
	case workflow.StateRejected:
		return "Reprovada"
	}
	if v.RepresentativeName != "" {
		return v.RepresentativeName
	}
	return "Autorizada"
}

func statusText(s workflow.State) string {
	switch s {
	case workflow.StatePending:
		return "PENDENTE"
	case workflow.StateApproved:
		return "APROVADA"
	case workflow.StateRejected:
		return "REPROVADA"
	case workflow.StateRedeemed:
		return "UTILIZADA"
	}
	return s.String()
}

func brDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(entity.DateLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format("02/01/2006")
}
