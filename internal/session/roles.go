package session

import "strings"

// Backend role values.
const (
	RoleAdministrator        = "administrador"
	RoleTerritorialLeader    = "lider_territorial"
	RoleEnvironmentalMonitor = "monitor_ambiental"
	RoleCommunityMember      = "membro_comunidade"
	RoleResearcher           = "pesquisador"
)

var roleLabels = map[string]string{
	RoleAdministrator:        "Administrator",
	RoleTerritorialLeader:    "Territorial Leader",
	RoleEnvironmentalMonitor: "Environmental Monitor",
	RoleCommunityMember:      "Community Member",
	RoleResearcher:           "Researcher",

	// values sent by older backends
	"admin":                 "Administrator",
	"community_leader":      "Territorial Leader",
	"territorial_leader":    "Territorial Leader",
	"environmental_monitor": "Environmental Monitor",
	"community_member":      "Community Member",
	"researcher":            "Researcher",
}

// RoleLabel maps a backend role value to its display label. Unknown values
// are returned unchanged.
func RoleLabel(role string) string {
	if label, ok := roleLabels[strings.ToLower(strings.TrimSpace(role))]; ok {
		return label
	}
	return role
}

// Roles returns the backend role values accepted at registration.
func Roles() []string {
	return []string{
		RoleAdministrator,
		RoleTerritorialLeader,
		RoleEnvironmentalMonitor,
		RoleCommunityMember,
		RoleResearcher,
	}
}

// IsRole reports whether role is one of Roles.
func IsRole(role string) bool {
	for _, r := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}
