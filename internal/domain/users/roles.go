package users

// Permission names a capability granted through a role.
type Permission string

const (
	PermAll              Permission = "all"
	PermViewReports      Permission = "view_reports"
	PermManageMaterials  Permission = "manage_materials"
	PermManageUsers      Permission = "manage_users"
	PermApproveOrders    Permission = "approve_orders"
	PermViewMaterials    Permission = "view_materials"
	PermRecordUsage      Permission = "record_usage"
	PermViewOwnReports   Permission = "view_own_reports"
	PermRestockMaterials Permission = "restock_materials"
	PermAdjustStock      Permission = "adjust_stock"
)

const (
	RoleAdmin       = "admin"
	RoleManager     = "manager"
	RoleOperator    = "operator"
	RoleStoreKeeper = "store_keeper"
)

// Role is a named permission set.
type Role struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

var roles = []Role{
	{RoleAdmin, "Full system access", []Permission{PermAll}},
	{RoleManager, "Manages staff, stock and reporting", []Permission{PermViewReports, PermManageMaterials, PermManageUsers, PermApproveOrders}},
	{RoleOperator, "Runs machines and records material usage", []Permission{PermViewMaterials, PermRecordUsage, PermViewOwnReports}},
	{RoleStoreKeeper, "Keeps the material store", []Permission{PermManageMaterials, PermViewReports, PermRestockMaterials, PermAdjustStock}},
}

// Roles returns the built-in roles.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// LookupRole finds a built-in role by name.
func LookupRole(name string) (Role, bool) {
	for _, r := range roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// RoleHasPermission reports whether role grants p, either directly or via
// the "all" permission.
func RoleHasPermission(role string, p Permission) bool {
	r, ok := LookupRole(role)
	if !ok {
		return false
	}
	for _, granted := range r.Permissions {
		if granted == PermAll || granted == p {
			return true
		}
	}
	return false
}
