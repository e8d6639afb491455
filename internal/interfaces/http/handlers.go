package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/application/service"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{services: services, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// RequisitionResponse is a voucher plus the actions the caller may take on it
type RequisitionResponse struct {
	*entity.Voucher
	PermittedActions []domainwf.Trigger `json:"permitted_actions"`
}

// LoginRequest is the body of POST /api/session
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SelectVesselRequest is the body of POST /api/session/vessel
type SelectVesselRequest struct {
	Vessel string `json:"vessel" binding:"required"`
}

// AuthorizeRequest is the body of POST /api/requisicoes/:id/authorize
type AuthorizeRequest struct {
	Decision string `json:"decision" binding:"required"`
	Reason   string `json:"reason"`
}

// ScanRequest is the body of POST /api/scan
type ScanRequest struct {
	Code string `json:"code"`
}

// RedeemRequest is the body of POST /api/requisicoes/:id/redeem
type RedeemRequest struct {
	ScanSourceCode string `json:"scan_source_code"`
	Location       string `json:"location"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Login handles POST /api/session
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: login and password are required", entity.ErrInvalidInput))
		return
	}

	session, err := h.services.Sessions.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: session})
}

// CurrentSession handles GET /api/session
func (h *Handlers) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: currentActor(c)})
}

// SelectVessel handles POST /api/session/vessel
func (h *Handlers) SelectVessel(c *gin.Context) {
	var req SelectVesselRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: vessel is required", entity.ErrInvalidInput))
		return
	}

	session, err := h.services.Sessions.SelectVessel(currentActor(c), req.Vessel)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: session})
}

// ListRequisitions handles GET /api/requisicoes
func (h *Handlers) ListRequisitions(c *gin.Context) {
	from, to, status, err := parseCommonFilters(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	actor := currentActor(c)
	vouchers, err := h.services.Vouchers.List(c.Request.Context(), actor, entity.ListFilter{
		Status:      status,
		CreatedFrom: from,
		CreatedTo:   to,
		Query:       c.Query("q"),
		CarrierName: c.Query("carrier"),
		PublicCode:  c.Query("public_code"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]RequisitionResponse, 0, len(vouchers))
	for _, v := range vouchers {
		items = append(items, h.requisition(v, actor))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// CreateRequisition handles POST /api/requisicoes
func (h *Handlers) CreateRequisition(c *gin.Context) {
	var input entity.CreateVoucherInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err))
		return
	}

	actor := currentActor(c)
	v, err := h.services.Vouchers.Create(c.Request.Context(), actor, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: h.requisition(v, actor)})
}

// GetRequisition handles GET /api/requisicoes/:id
func (h *Handlers) GetRequisition(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	actor := currentActor(c)
	v, err := h.services.Vouchers.Get(c.Request.Context(), id, actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.requisition(v, actor)})
}

// History handles GET /api/requisicoes/:id/historico
func (h *Handlers) History(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	trail, err := h.services.Audit.Trail(c.Request.Context(), id, currentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: trail})
}

// Authorize handles POST /api/requisicoes/:id/authorize
func (h *Handlers) Authorize(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: decision is required", entity.ErrInvalidInput))
		return
	}
	decision, err := entity.ParseDecision(req.Decision)
	if err != nil {
		h.fail(c, err)
		return
	}

	actor := currentActor(c)
	v, err := h.services.Vouchers.Authorize(c.Request.Context(), id, decision, actor, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.requisition(v, actor)})
}

// Scan handles POST /api/scan: resolves scanned or typed input for the carrier
func (h *Handlers) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err))
		return
	}

	actor := currentActor(c)
	v, err := h.services.Vouchers.Resolve(c.Request.Context(), req.Code, actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.requisition(v, actor)})
}

// Redeem handles POST /api/requisicoes/:id/redeem
func (h *Handlers) Redeem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req RedeemRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err))
			return
		}
	}

	actor := currentActor(c)
	v, err := h.services.Vouchers.Redeem(c.Request.Context(), id, actor, req.ScanSourceCode, req.Location)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.requisition(v, actor)})
}

// TicketPDF handles GET /canhoto/:id
func (h *Handlers) TicketPDF(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	pdf, v, err := h.services.Tickets.PDF(c.Request.Context(), id, currentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", fmt.Sprintf("canhoto_%d_%s.pdf", v.ID, v.PublicCode)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// TicketPNG handles GET /canhoto/:id/preview.png
func (h *Handlers) TicketPNG(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	img, _, err := h.services.Tickets.PNG(c.Request.Context(), id, currentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

// Report handles GET /api/relatorios
func (h *Handlers) Report(c *gin.Context) {
	q, err := parseReportQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.services.Reports.Search(c.Request.Context(), currentActor(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: page})
}

// ExportReport handles GET /api/relatorios/export?format=xlsx|csv
func (h *Handlers) ExportReport(c *gin.Context) {
	q, err := parseReportQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	format := port.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(port.ExportXLSX))))
	var buf bytes.Buffer
	filename, err := h.services.Reports.Export(c.Request.Context(), currentActor(c), q, format, &buf)
	if err != nil {
		h.fail(c, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == port.ExportXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *Handlers) requisition(v *entity.Voucher, actor entity.Actor) RequisitionResponse {
	actions := h.services.Vouchers.Actions(v, actor)
	if actions == nil {
		actions = []domainwf.Trigger{}
	}
	return RequisitionResponse{Voucher: v, PermittedActions: actions}
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, fmt.Errorf("%w: invalid requisition id %q", entity.ErrInvalidInput, c.Param("id")))
		return 0, false
	}
	return id, true
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err, "request_id", c.GetString(requestIDKey))
	} else {
		h.logger.Info("Request refused", "path", c.FullPath(), "kind", entity.Kind(err), "error", err.Error())
	}
	c.AbortWithStatusJSON(status, errorResponse(err))
}

func parseCommonFilters(c *gin.Context) (from, to *time.Time, status domainwf.State, err error) {
	if from, err = parseDate(c.Query("from")); err != nil {
		return nil, nil, "", err
	}
	if to, err = parseDate(c.Query("to")); err != nil {
		return nil, nil, "", err
	}
	if raw := c.Query("status"); raw != "" {
		if status, _, err = domainwf.ParseState(raw); err != nil {
			return nil, nil, "", fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
		}
	}
	return from, to, status, nil
}

func parseReportQuery(c *gin.Context) (service.ReportQuery, error) {
	from, to, status, err := parseCommonFilters(c)
	if err != nil {
		return service.ReportQuery{}, err
	}
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return service.ReportQuery{
		From:    from,
		To:      to,
		Status:  status,
		Query:   c.Query("q"),
		Page:    page,
		PerPage: perPage,
	}, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(entity.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", entity.ErrInvalidInput, raw)
	}
	return &t, nil
}
