package auth

// Role identifies the access level a user holds within their restaurant group.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

// Permission names an action a route can require.
type Permission string

const (
	// PermQueryRun allows running and validating natural-language queries.
	PermQueryRun Permission = "query:run"
	// PermFeedbackSubmit allows rating past queries.
	PermFeedbackSubmit Permission = "feedback:submit"
	// PermHistoryRead allows reading the caller's own query history.
	PermHistoryRead Permission = "history:read"
	// PermMetricsRead allows reading engine-level metrics.
	PermMetricsRead Permission = "metrics:read"
)

// rolePermissions maps each role to the permissions it grants.
// Viewers get read-only access to their own history; analysts can run
// queries and submit feedback but not inspect engine metrics.
var rolePermissions = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermQueryRun:       true,
		PermFeedbackSubmit: true,
		PermHistoryRead:    true,
		PermMetricsRead:    true,
	},
	RoleManager: {
		PermQueryRun:       true,
		PermFeedbackSubmit: true,
		PermHistoryRead:    true,
		PermMetricsRead:    true,
	},
	RoleAnalyst: {
		PermQueryRun:       true,
		PermFeedbackSubmit: true,
		PermHistoryRead:    true,
	},
	RoleViewer: {
		PermHistoryRead: true,
	},
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Can reports whether the role grants the given permission.
// Unknown roles grant nothing.
func (r Role) Can(p Permission) bool {
	return rolePermissions[r][p]
}
