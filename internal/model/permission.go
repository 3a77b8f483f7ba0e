package model

// Permission represents a string code for a specific back-office action.
type Permission string

const (
	// PermissionQuestionsRead allows listing the question bank.
	PermissionQuestionsRead Permission = "questions:read"

	// PermissionQuestionsWrite allows editing, importing and generating questions.
	PermissionQuestionsWrite Permission = "questions:write"

	// PermissionReportsRead allows viewing sales, outcomes and the live monitor.
	PermissionReportsRead Permission = "reports:read"

	// PermissionCandidatesWrite allows recording purchases.
	PermissionCandidatesWrite Permission = "candidates:write"

	// PermissionSessionsAnnul allows terminating live sessions.
	PermissionSessionsAnnul Permission = "sessions:annul"

	// PermissionSettingsWrite allows editing application settings.
	PermissionSettingsWrite Permission = "settings:write"

	// PermissionMediaUpload allows uploading certificate templates.
	PermissionMediaUpload Permission = "media:upload"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionQuestionsRead,
	PermissionQuestionsWrite,
	PermissionReportsRead,
	PermissionCandidatesWrite,
	PermissionSessionsAnnul,
	PermissionSettingsWrite,
	PermissionMediaUpload,
}

// PermissionStrings returns AllPermissions as plain strings.
func PermissionStrings() []string {
	out := make([]string, len(AllPermissions))
	for i, p := range AllPermissions {
		out[i] = string(p)
	}
	return out
}
