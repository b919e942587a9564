package domain

import "time"

// Session is the identity provider's proof of authentication. It is only
// observed by this service, never persisted.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Valid() bool {
	return s.UserID != "" && (s.ExpiresAt.IsZero() || time.Now().Before(s.ExpiresAt))
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleColaborador Role = "colaborador"
	RoleCliente     Role = "cliente"
	RoleContador    Role = "contador"
)

// DefaultRole is seeded for a freshly provisioned user.
const DefaultRole = RoleCliente

// Portal feature areas a ModulePermission can refer to.
const (
	ModulePresupuestos = "presupuestos"
	ModuleCronograma   = "cronograma"
	ModuleTesoreria    = "tesoreria"
	ModuleFacturacion  = "facturacion"
	ModuleComisiones   = "comisiones"
	ModuleCRM          = "crm"
	ModuleFotos        = "fotos"
	ModuleDocumentos   = "documentos"
	ModuleCitas        = "citas"
	ModuleAdmin        = "admin"
)

// ModulePermission is the per-feature-area capability row for a user.
// At most one row exists per (UserID, Module).
type ModulePermission struct {
	UserID    string `json:"user_id"`
	Module    string `json:"module"`
	CanView   bool   `json:"can_view"`
	CanCreate bool   `json:"can_create"`
	CanEdit   bool   `json:"can_edit"`
	CanDelete bool   `json:"can_delete"`
}

type Capability string

const (
	CapabilityView   Capability = "view"
	CapabilityCreate Capability = "create"
	CapabilityEdit   Capability = "edit"
	CapabilityDelete Capability = "delete"
)

func (p ModulePermission) Grants(c Capability) bool {
	switch c {
	case CapabilityView:
		return p.CanView
	case CapabilityCreate:
		return p.CanCreate
	case CapabilityEdit:
		return p.CanEdit
	case CapabilityDelete:
		return p.CanDelete
	default:
		return false
	}
}

type BootstrapReason string

const (
	ReasonNoSession       BootstrapReason = "NO_SESSION"
	ReasonBootstrapFailed BootstrapReason = "BOOTSTRAP_FAILED"
)

// BootstrapResult is produced once per bootstrap attempt sequence and is the
// only thing Bootstrap ever returns; failures are states, not errors.
type BootstrapResult struct {
	OK          bool               `json:"ok"`
	Roles       []Role             `json:"roles"`
	Permissions []ModulePermission `json:"permissions"`
	Reason      BootstrapReason    `json:"reason,omitempty"`
}
