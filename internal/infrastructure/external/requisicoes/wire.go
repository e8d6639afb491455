package requisicoes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/workflow"
)

// record is a requisition as the backend serves it. Field names changed across
// backend revisions, so every field is looked up through its known aliases.
type record map[string]interface{}

// Aliases per voucher field, preferred first. "extras." reads from the JSON
// blob the issuing screen stores in observacoes.
var (
	aliasID             = []string{"id", "requisicao_id"}
	aliasPublicCode     = []string{"codigo_publico", "codigo", "public_code"}
	aliasNumber         = []string{"numero_formatado", "numero", "number"}
	aliasIssuer         = []string{"emissor_id", "issuer_id"}
	aliasRepName        = []string{"representante_nome", "assinado_por", "representative_name"}
	aliasRepCPF         = []string{"representante_cpf", "representative_cpf"}
	aliasPassengerName  = []string{"passageiro_nome", "nome", "passenger_name"}
	aliasPassengerCPF   = []string{"passageiro_cpf", "cpf", "passenger_cpf"}
	aliasPassengerRG    = []string{"extras.rg", "rg", "passenger_rg"}
	aliasRequesterKind  = []string{"extras.tipo_solicitante", "tipo_solicitante", "tipo", "requester_kind"}
	aliasOrigin         = []string{"origem", "cidade_origem", "origin"}
	aliasDestination    = []string{"destino", "cidade_destino", "destination"}
	aliasDeparture      = []string{"data_ida", "data_saida", "departure_date"}
	aliasJustification  = []string{"justificativa", "motivo", "justification"}
	aliasCarrier        = []string{"transportador", "transportador_nome_barco", "barco", "extras.transportador_nome_barco", "carrier_name"}
	aliasCreatedAt      = []string{"created_at", "criado_em"}
	aliasDecidedAt      = []string{"decidido_em", "autorizado_em", "decided_at"}
	aliasRejection      = []string{"motivo_reprovacao", "rejection_reason"}
	aliasRedeemedAt     = []string{"utilizado_em", "validado_em", "redeemed_at"}
	aliasRedeemedBy     = []string{"validado_por", "transportador_id", "redeemed_by"}
	aliasRedemptionSite = []string{"local_validacao", "redemption_location"}
)

// unwrap returns the record inside {"data": {...}} or {"requisicao": {...}} envelopes
func (r record) unwrap() record {
	for _, key := range []string{"data", "requisicao"} {
		if inner, ok := r[key].(map[string]interface{}); ok {
			return record(inner)
		}
	}
	return r
}

func (r record) extras() map[string]interface{} {
	for _, key := range []string{"extras", "observacoes"} {
		switch v := r[key].(type) {
		case map[string]interface{}:
			return v
		case string:
			var m map[string]interface{}
			if json.Unmarshal([]byte(v), &m) == nil {
				return m
			}
		}
	}
	return nil
}

func (r record) lookup(key string) (interface{}, bool) {
	if strings.HasPrefix(key, "extras.") {
		ex := r.extras()
		if ex == nil {
			return nil, false
		}
		v, ok := ex[strings.TrimPrefix(key, "extras.")]
		return v, ok
	}
	v, ok := r[key]
	return v, ok
}

// str returns the first non-empty alias value as a trimmed string
func (r record) str(aliases []string) string {
	for _, key := range aliases {
		v, ok := r.lookup(key)
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func (r record) integer(aliases []string) (int64, error) {
	s := r.str(aliases)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func (r record) timestamp(aliases []string) *time.Time {
	s := r.str(aliases)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", entity.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// toVoucher is the single mapping from the wire record to entity.Voucher.
// legacy is true when the status was written in an older vocabulary.
func (r record) toVoucher() (v *entity.Voucher, rawStatus string, legacy bool, err error) {
	r = r.unwrap()

	id, err := r.integer(aliasID)
	if err != nil {
		return nil, "", false, fmt.Errorf("bad requisition id: %w", err)
	}
	rawStatus = r.str([]string{"status"})
	status, legacy, err := workflow.ParseState(rawStatus)
	if err != nil {
		return nil, rawStatus, false, err
	}

	v = &entity.Voucher{
		ID:                 id,
		PublicCode:         r.str(aliasPublicCode),
		Number:             r.str(aliasNumber),
		Status:             status,
		IssuerID:           r.str(aliasIssuer),
		RepresentativeName: r.str(aliasRepName),
		RepresentativeCPF:  r.str(aliasRepCPF),
		PassengerName:      r.str(aliasPassengerName),
		PassengerCPF:       r.str(aliasPassengerCPF),
		PassengerRG:        r.str(aliasPassengerRG),
		RequesterKind:      r.str(aliasRequesterKind),
		Origin:             r.str(aliasOrigin),
		Destination:        r.str(aliasDestination),
		DepartureDate:      datePart(r.str(aliasDeparture)),
		Justification:      r.str(aliasJustification),
		CarrierName:        r.str(aliasCarrier),
		DecidedAt:          r.timestamp(aliasDecidedAt),
		RejectionReason:    r.str(aliasRejection),
		RedeemedAt:         r.timestamp(aliasRedeemedAt),
		RedeemedBy:         r.str(aliasRedeemedBy),
		RedemptionLocation: r.str(aliasRedemptionSite),
	}
	if created := r.timestamp(aliasCreatedAt); created != nil {
		v.CreatedAt = *created
	}
	if v.ID == 0 && v.PublicCode == "" {
		return nil, rawStatus, legacy, fmt.Errorf("record has neither id nor public code")
	}
	return v, rawStatus, legacy, nil
}

// datePart keeps YYYY-MM-DD from ISO timestamps
func datePart(s string) string {
	if len(s) > len(entity.DateLayout) && s[4] == '-' && s[7] == '-' {
		return s[:len(entity.DateLayout)]
	}
	return s
}

// createPayload is the body of POST /requisitions
type createPayload struct {
	IssuerID           string `json:"emissor_id,omitempty"`
	SectorID           string `json:"setor_id,omitempty"`
	PassengerName      string `json:"passageiro_nome"`
	PassengerCPF       string `json:"passageiro_cpf,omitempty"`
	Origin             string `json:"origem"`
	Destination        string `json:"destino"`
	DepartureDate      string `json:"data_ida"`
	Justification      string `json:"justificativa,omitempty"`
	CarrierName        string `json:"transportador"`
	RepresentativeName string `json:"representante_nome,omitempty"`
	Extras             string `json:"observacoes"`
}

type createExtras struct {
	RequesterKind string `json:"tipo_solicitante,omitempty"`
	RG            string `json:"rg,omitempty"`
	CarrierName   string `json:"transportador_nome_barco"`
}

func newCreatePayload(actor entity.Actor, in entity.CreateVoucherInput) (createPayload, error) {
	extras, err := json.Marshal(createExtras{
		RequesterKind: in.RequesterKind,
		RG:            in.PassengerRG,
		CarrierName:   in.CarrierName,
	})
	if err != nil {
		return createPayload{}, err
	}
	return createPayload{
		IssuerID:           actor.ID,
		SectorID:           in.SectorID,
		PassengerName:      in.PassengerName,
		PassengerCPF:       in.PassengerCPF,
		Origin:             in.Origin,
		Destination:        in.Destination,
		DepartureDate:      in.DepartureDate,
		Justification:      in.Justification,
		CarrierName:        in.CarrierName,
		RepresentativeName: in.RepresentativeName,
		Extras:             string(extras),
	}, nil
}

// authorizePayload is the body of POST /requisitions/{id}/authorize
type authorizePayload struct {
	Decision           entity.Decision `json:"decision"`
	ActorID            string          `json:"actor_id"`
	Reason             string          `json:"reason,omitempty"`
	RepresentativeName string          `json:"representative_name,omitempty"`
	RepresentativeCPF  string          `json:"representative_cpf,omitempty"`
}

// redeemPayload is the body of POST /requisitions/{id}/redeem
type redeemPayload struct {
	ActorID        string `json:"actor_id"`
	ScanSourceCode string `json:"scan_source_code"`
	Location       string `json:"location,omitempty"`
	Kind           string `json:"kind"`
	Note           string `json:"note,omitempty"`
}

// loginUser is the user object returned by POST /login
type loginUser record

func (u loginUser) toUser(token string) (*entity.User, error) {
	r := record(u)
	role, err := entity.ParseRole(r.str([]string{"tipo", "perfil", "role"}))
	if err != nil {
		return nil, err
	}

	vessels := make([]string, 0)
	if list, ok := r["barcos"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				vessels = append(vessels, s)
			}
		}
	}
	if s := r.str([]string{"barcos_str", "vessels"}); s != "" {
		vessels = append(vessels, s)
	}

	return &entity.User{
		ID:           r.str([]string{"id"}),
		Name:         r.str([]string{"nome", "name"}),
		Login:        r.str([]string{"login"}),
		Role:         role,
		CPF:          r.str([]string{"cpf"}),
		Vessel:       r.str([]string{"barco", "vessel"}),
		Vessels:      strings.Join(vessels, "\n"),
		BackendToken: token,
	}, nil
}
