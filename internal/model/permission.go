package model

// Permission represents a string code for a specific recruiter action.
type Permission string

const (
	// PermissionProctoringMonitor allows following an offer's live sessions.
	PermissionProctoringMonitor Permission = "proctoring:monitor"

	// PermissionResultsRead allows reading candidates' frozen results.
	PermissionResultsRead Permission = "results:read"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionProctoringMonitor,
	PermissionResultsRead,
}

// IsKnownPermission reports whether code names one of AllPermissions.
func IsKnownPermission(code string) bool {
	for _, p := range AllPermissions {
		if string(p) == code {
			return true
		}
	}
	return false
}
