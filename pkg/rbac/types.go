package rbac

// Role is a team role. Values are ordered so that a higher rank compares
// greater than a lower one.
type Role int

const (
	// RoleNone is the zero value: no role in the team
	RoleNone Role = iota
	RoleMember
	RoleAdmin
	RoleOwner
)

// Role names as stored in role records
const (
	RoleNameOwner  = "owner"
	RoleNameAdmin  = "admin"
	RoleNameMember = "member"
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return RoleNameOwner
	case RoleAdmin:
		return RoleNameAdmin
	case RoleMember:
		return RoleNameMember
	default:
		return "none"
	}
}

// ParseRole maps a stored role name to a Role. Names other than "owner"
// and "admin" resolve to Member. This inclusive catch-all is documented
// policy, not a bug: teams may carry custom role names ("viewer",
// "editor") and those grant baseline member access rather than failing.
func ParseRole(name string) Role {
	switch name {
	case RoleNameOwner:
		return RoleOwner
	case RoleNameAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}

// Permission is a capability within a team
type Permission string

const (
	PermViewTeam       Permission = "view_team"
	PermUpdateTeam     Permission = "update_team"
	PermDeleteTeam     Permission = "delete_team"
	PermAddMember      Permission = "add_member"
	PermRemoveMember   Permission = "remove_member"
	PermPromoteToAdmin Permission = "promote_to_admin"
	PermDemoteAdmin    Permission = "demote_admin"
	PermViewMembers    Permission = "view_members"
	PermCreateTeamTask Permission = "create_team_task"
	PermViewTeamTasks  Permission = "view_team_tasks"
)

// memberPermissions is the baseline every team member holds
var memberPermissions = []Permission{
	PermViewTeam,
	PermViewMembers,
	PermCreateTeamTask,
	PermViewTeamTasks,
}

// adminPermissions extends the member set with member management
var adminPermissions = append([]Permission{
	PermUpdateTeam,
	PermAddMember,
	PermRemoveMember,
}, memberPermissions...)

// ownerPermissions extends the admin set with destructive and role
// management capabilities
var ownerPermissions = append([]Permission{
	PermDeleteTeam,
	PermPromoteToAdmin,
	PermDemoteAdmin,
}, adminPermissions...)

// rolePermissions is the static catalog. Built by extension so the
// superset chain Owner > Admin > Member holds by construction; the
// catalog tests verify it anyway.
var rolePermissions = map[Role]map[Permission]bool{
	RoleMember: permSet(memberPermissions),
	RoleAdmin:  permSet(adminPermissions),
	RoleOwner:  permSet(ownerPermissions),
}

func permSet(perms []Permission) map[Permission]bool {
	set := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return set
}

// HasPermission reports whether a role grants a permission. Unknown roles
// never grant anything; the lookup cannot fail.
func HasPermission(role Role, perm Permission) bool {
	return rolePermissions[role][perm]
}

// Permissions returns the permission set for a role
func Permissions(role Role) []Permission {
	set := rolePermissions[role]
	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	return perms
}

// CanManage reports whether the actor's role may manage the target's role.
// This is a strict order check: owners manage admins and members, admins
// manage only members, and nobody manages an equal or higher role.
func CanManage(actor, target Role) bool {
	if actor == RoleNone || target == RoleNone {
		return false
	}
	return actor > target
}
