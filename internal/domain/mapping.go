package domain

// Role identifies a functional account slot in a company's chart of
// accounts. Posting resolves roles to concrete account ids and fails
// closed when a needed role is unmapped.
type Role string

const (
	RoleAR             Role = "AR"
	RoleAP             Role = "AP"
	RoleCash           Role = "CASH"
	RoleBank           Role = "BANK"
	RoleSales          Role = "SALES"
	RoleSalesReturns   Role = "SALES_RETURNS"
	RoleVATPayable     Role = "VAT_PAYABLE"
	RoleVATRecoverable Role = "VAT_RECOVERABLE"
	RoleInventory      Role = "INVENTORY"
	RoleCOGS           Role = "COGS"
	RoleGRNI           Role = "GRNI"
	RoleRounding       Role = "ROUNDING"
)

// AllRoles lists every role an installation is expected to map.
var AllRoles = []Role{
	RoleAR, RoleAP, RoleCash, RoleBank,
	RoleSales, RoleSalesReturns,
	RoleVATPayable, RoleVATRecoverable,
	RoleInventory, RoleCOGS, RoleGRNI, RoleRounding,
}

// AccountMapping binds one role to an account for a company.
type AccountMapping struct {
	ID        string
	CompanyID string
	Role      Role
	AccountID string
}

// RoleSet is the resolved role to account map used while assembling a
// journal.
type RoleSet map[Role]string

// Account returns the account for the role or ErrMissingAccountMapping.
func (r RoleSet) Account(role Role) (string, error) {
	id, ok := r[role]
	if !ok || id == "" {
		return "", &MissingRoleError{Role: role}
	}
	return id, nil
}

// MissingRoleError wraps ErrMissingAccountMapping with the role name.
type MissingRoleError struct {
	Role Role
}

func (e *MissingRoleError) Error() string {
	return "missing account mapping for role " + string(e.Role)
}

func (e *MissingRoleError) Unwrap() error { return ErrMissingAccountMapping }

// PaymentMethodRole maps a tender method to the settlement account role.
func PaymentMethodRole(method string) Role {
	switch method {
	case "card", "transfer":
		return RoleBank
	default:
		return RoleCash
	}
}
