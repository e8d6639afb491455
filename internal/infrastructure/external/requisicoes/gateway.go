package requisicoes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
)

var (
	_ port.RequisitionGateway = (*Client)(nil)
	_ port.Authenticator      = (*Client)(nil)
)

// Create issues a new requisition
func (c *Client) Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error) {
	payload, err := newCreatePayload(actor, input)
	if err != nil {
		return nil, fmt.Errorf("create requisition: %w", err)
	}
	var out record
	if err := c.do(ctx, actor, "create requisition", http.MethodPost, "/requisitions", nil, payload, &out); err != nil {
		return nil, err
	}
	out = out.unwrap()

	// Older backends answer POST with only {id, codigo_publico}
	if out.str([]string{"status"}) == "" {
		id, err := out.integer(aliasID)
		if err != nil {
			return nil, fmt.Errorf("create requisition: bad id: %w", err)
		}
		if id != 0 {
			return c.GetByID(ctx, actor, id)
		}
		if code := out.str(aliasPublicCode); code != "" {
			return c.GetByPublicCode(ctx, actor, code)
		}
		return nil, fmt.Errorf("create requisition: response has neither id nor public code")
	}
	return c.toVoucher(ctx, out)
}

// GetByID fetches a requisition by its internal id
func (c *Client) GetByID(ctx context.Context, actor entity.Actor, id int64) (*entity.Voucher, error) {
	var out record
	path := "/requisitions/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, actor, "get requisition", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return c.toVoucher(ctx, out)
}

// GetByPublicCode fetches a requisition by its public code.
// The backend answers with a list; an empty list is NotFound.
func (c *Client) GetByPublicCode(ctx context.Context, actor entity.Actor, code string) (*entity.Voucher, error) {
	var out interface{}
	query := url.Values{"public_code": {code}}
	if err := c.do(ctx, actor, "get requisition by code", http.MethodGet, "/requisitions", query, nil, &out); err != nil {
		return nil, err
	}

	var first map[string]interface{}
	switch t := out.(type) {
	case []interface{}:
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				first = m
				break
			}
		}
	case map[string]interface{}:
		first = t
	}
	if first == nil {
		return nil, fmt.Errorf("public code %q: %w", code, entity.ErrNotFound)
	}

	v, err := c.toVoucher(ctx, record(first))
	if err != nil {
		return nil, err
	}
	if v.PublicCode != "" && v.PublicCode != code {
		return nil, fmt.Errorf("public code %q: %w", code, entity.ErrNotFound)
	}
	return v, nil
}

// Authorize submits a representative's decision
func (c *Client) Authorize(ctx context.Context, actor entity.Actor, id int64, req entity.AuthorizationRequest) error {
	path := fmt.Sprintf("/requisitions/%d/authorize", id)
	return c.do(ctx, actor, "authorize requisition", http.MethodPost, path, nil, authorizePayload{
		Decision:           req.Decision,
		ActorID:            req.ActorID,
		Reason:             req.Reason,
		RepresentativeName: req.RepresentativeName,
		RepresentativeCPF:  req.RepresentativeCPF,
	}, nil)
}

// Redeem submits a boarding confirmation
func (c *Client) Redeem(ctx context.Context, actor entity.Actor, id int64, req entity.RedemptionRequest) error {
	path := fmt.Sprintf("/requisitions/%d/redeem", id)
	return c.do(ctx, actor, "redeem requisition", http.MethodPost, path, nil, redeemPayload{
		ActorID:        req.ActorID,
		ScanSourceCode: req.ScanSourceCode,
		Location:       req.Location,
		Kind:           req.Kind,
		Note:           req.Note,
	}, nil)
}

// List fetches requisitions matching the filter. Records that cannot be mapped are skipped and logged.
func (c *Client) List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", filter.Status.String())
	}
	if filter.CreatedFrom != nil {
		query.Set("from", filter.CreatedFrom.Format(entity.DateLayout))
	}
	if filter.CreatedTo != nil {
		query.Set("to", filter.CreatedTo.Format(entity.DateLayout))
	}
	if filter.Query != "" {
		query.Set("q", filter.Query)
	}
	if filter.CarrierName != "" {
		query.Set("carrier", filter.CarrierName)
	}
	if filter.PublicCode != "" {
		query.Set("public_code", filter.PublicCode)
	}

	var out []record
	if err := c.do(ctx, actor, "list requisitions", http.MethodGet, "/requisitions", query, nil, &out); err != nil {
		return nil, err
	}

	vouchers := make([]*entity.Voucher, 0, len(out))
	for _, r := range out {
		v, err := c.toVoucher(ctx, r)
		if err != nil {
			c.logger.Warn("Skipping unreadable requisition", zap.Error(err))
			continue
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, nil
}

// Authenticate implements port.Authenticator against POST /login
func (c *Client) Authenticate(ctx context.Context, login, password string) (*entity.User, error) {
	var out struct {
		Token string    `json:"token"`
		User  loginUser `json:"user"`
	}
	body := map[string]string{"login": login, "senha": password}
	err := c.do(ctx, entity.Actor{}, "login", http.MethodPost, "/login", nil, body, &out)
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrForbidden), errors.Is(err, entity.ErrInvalidInput), errors.Is(err, entity.ErrNotFound):
		return nil, fmt.Errorf("login %q: %w", login, entity.ErrUnauthenticated)
	default:
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("login %q: %w", login, entity.ErrUnauthenticated)
	}
	return out.User.toUser(out.Token)
}

func (c *Client) toVoucher(ctx context.Context, r record) (*entity.Voucher, error) {
	v, raw, legacy, err := r.toVoucher()
	if err != nil {
		return nil, fmt.Errorf("decode requisition: %w", err)
	}
	if legacy {
		c.logger.Debug("Mapped legacy status",
			zap.Int64("voucher_id", v.ID),
			zap.String("raw", raw),
			zap.String("status", v.Status.String()))
		if c.onLegacy != nil {
			c.onLegacy(ctx, v.ID, raw, v.Status)
		}
	}
	return v, nil
}
