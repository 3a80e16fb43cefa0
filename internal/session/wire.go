package session

import (
	"fmt"
	"strings"
)

// Dialect selects the field names sent to the backend. Responses in either
// shape are always accepted.
type Dialect int

const (
	// DialectCanonical sends English field names (name, password, role).
	DialectCanonical Dialect = iota
	// DialectLegacy sends the older Portuguese names (nome, senha, tipo_usuario).
	DialectLegacy
)

func (d Dialect) String() string {
	if d == DialectLegacy {
		return "legacy"
	}
	return "canonical"
}

// ParseDialect accepts "canonical" or "legacy".
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "canonical":
		return DialectCanonical, nil
	case "legacy":
		return DialectLegacy, nil
	default:
		return DialectCanonical, fmt.Errorf("unknown dialect %q (supported: canonical, legacy)", s)
	}
}

type fieldNames struct {
	name, password, role, age                               string
	socialName, indigenousName, community, territory, phone string
	mainActivity                                            string
}

var (
	canonicalFields = fieldNames{
		name: "name", password: "password", role: "role", age: "age",
		socialName: "social_name", indigenousName: "indigenous_name", community: "community",
		territory: "territory_location", phone: "phone", mainActivity: "main_activity",
	}
	legacyFields = fieldNames{
		name: "nome", password: "senha", role: "tipo_usuario", age: "idade",
		socialName: "nome_social", indigenousName: "nome_indigena", community: "aldeia_comunidade",
		territory: "localizacao_territorio", phone: "telefone", mainActivity: "principal_atuacao",
	}
)

func (d Dialect) fields() fieldNames {
	if d == DialectLegacy {
		return legacyFields
	}
	return canonicalFields
}

func (d Dialect) loginBody(identifier, secret string) map[string]any {
	return map[string]any{
		"email":             identifier,
		d.fields().password: secret,
	}
}

func (d Dialect) registerBody(r SignUpRequest) map[string]any {
	f := d.fields()
	role := r.Role
	if role == "" {
		role = RoleCommunityMember
	}

	body := map[string]any{
		f.name:     strings.TrimSpace(r.Name),
		"email":    strings.TrimSpace(r.Email),
		f.password: r.Secret,
		f.role:     role,
	}
	if d == DialectLegacy {
		body["confirmar_senha"] = r.Secret
		body["aceite_lgpd"] = true
	}

	if r.Age != nil {
		body[f.age] = *r.Age
	}
	putString(body, "bio", r.Bio, d == DialectCanonical)
	putString(body, f.socialName, r.SocialName, true)
	putString(body, f.indigenousName, r.IndigenousName, true)
	putString(body, f.community, r.Community, true)
	putString(body, f.territory, r.TerritoryLocation, true)
	putString(body, f.phone, r.Phone, true)
	putString(body, f.mainActivity, r.MainActivity, true)
	return body
}

func (d Dialect) profileBody(p ProfileUpdate) map[string]any {
	f := d.fields()
	body := map[string]any{}

	putPtr(body, f.name, p.Name)
	if p.Age != nil {
		body[f.age] = *p.Age
	}
	if d == DialectCanonical {
		putPtr(body, "bio", p.Bio)
	}
	putPtr(body, f.socialName, p.SocialName)
	putPtr(body, f.indigenousName, p.IndigenousName)
	putPtr(body, f.community, p.Community)
	putPtr(body, f.territory, p.TerritoryLocation)
	putPtr(body, f.phone, p.Phone)
	putPtr(body, f.mainActivity, p.MainActivity)
	return body
}

func putString(body map[string]any, key, v string, ok bool) {
	if ok && v != "" {
		body[key] = v
	}
}

func putPtr(body map[string]any, key string, v *string) {
	if v != nil {
		body[key] = *v
	}
}
