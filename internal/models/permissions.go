package models

const (
	PermPatientsCreate = "patients:create"
	PermPatientsRead   = "patients:read"
	PermPatientsUpdate = "patients:update"
	PermPatientsDelete = "patients:delete"
	PermVisitsCreate   = "visits:create"
	PermVisitsRead     = "visits:read"
	PermVisitsUpdate   = "visits:update"
	PermVisitsDelete   = "visits:delete"
	PermVisitsCall     = "visits:call"
	PermVisitsStart    = "visits:start"
	PermVisitsFinish   = "visits:finish"
	PermStatsRead      = "stats:read"
	PermStatsExport    = "stats:export"
	PermUsersCreate    = "users:create"
	PermUsersRead      = "users:read"
	PermUsersUpdate    = "users:update"
	PermUsersDelete    = "users:delete"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermPatientsCreate, PermPatientsRead, PermPatientsUpdate, PermPatientsDelete,
		PermVisitsCreate, PermVisitsRead, PermVisitsUpdate, PermVisitsDelete,
		PermVisitsCall, PermVisitsStart, PermVisitsFinish,
		PermStatsRead, PermStatsExport,
		PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete,
	},
	RoleProvider: {
		PermPatientsRead, PermPatientsUpdate,
		PermVisitsRead, PermVisitsCall, PermVisitsStart, PermVisitsFinish,
		PermStatsRead,
	},
	RoleClerk: {
		PermPatientsCreate, PermPatientsRead, PermPatientsUpdate,
		PermVisitsCreate, PermVisitsRead, PermVisitsUpdate,
		PermStatsRead,
	},
}

// RoleAllows reports whether the role grants the permission. Unknown roles
// grant nothing.
func RoleAllows(role, permission string) bool {
	for _, granted := range rolePermissions[role] {
		if granted == permission {
			return true
		}
	}
	return false
}
