package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// User is the canonical user record kept in memory and persisted under
// storage.KeyUser.
type User struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`

	// Role is the backend value; RoleLabel is its display form.
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	RoleLabel string `json:"role_label,omitempty" yaml:"role_label,omitempty"`

	Age               *int   `json:"age,omitempty" yaml:"age,omitempty"`
	Bio               string `json:"bio,omitempty" yaml:"bio,omitempty"`
	SocialName        string `json:"social_name,omitempty" yaml:"social_name,omitempty"`
	IndigenousName    string `json:"indigenous_name,omitempty" yaml:"indigenous_name,omitempty"`
	Community         string `json:"community,omitempty" yaml:"community,omitempty"`
	TerritoryLocation string `json:"territory_location,omitempty" yaml:"territory_location,omitempty"`
	Phone             string `json:"phone,omitempty" yaml:"phone,omitempty"`
	MainActivity      string `json:"main_activity,omitempty" yaml:"main_activity,omitempty"`
}

// DisplayName prefers the social name, then the indigenous name, then the
// registered name and finally the email.
func (u User) DisplayName() string {
	for _, s := range []string{u.SocialName, u.IndigenousName, u.Name, u.Email} {
		if s != "" {
			return s
		}
	}
	return ""
}

// wireUser accepts both the English record shape and the older Portuguese
// one (nome, tipo_usuario, ...).
type wireUser struct {
	ID     json.RawMessage `json:"id"`
	UserID json.RawMessage `json:"user_id"`
	Email  string          `json:"email"`

	Name string `json:"name"`
	Nome string `json:"nome"`

	Role        string `json:"role"`
	TipoUsuario string `json:"tipo_usuario"`

	Age   *int `json:"age"`
	Idade *int `json:"idade"`

	Bio string `json:"bio"`

	SocialName string `json:"social_name"`
	NomeSocial string `json:"nome_social"`

	IndigenousName string `json:"indigenous_name"`
	NomeIndigena   string `json:"nome_indigena"`

	Community        string `json:"community"`
	AldeiaComunidade string `json:"aldeia_comunidade"`

	TerritoryLocation     string `json:"territory_location"`
	LocalizacaoTerritorio string `json:"localizacao_territorio"`

	Phone    string `json:"phone"`
	Telefone string `json:"telefone"`

	MainActivity     string `json:"main_activity"`
	PrincipalAtuacao string `json:"principal_atuacao"`
}

var errEmptyRecord = errors.New("user record has neither id nor email")

// unwrapData returns the data member of an {success, message, data}
// envelope, or raw when there is none.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
		return d
	}
	return raw
}

// ParseUser decodes a user record in either shape into the canonical User.
func ParseUser(data []byte) (User, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return User{}, errors.New("user record is not a JSON object")
	}

	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return User{}, fmt.Errorf("invalid user record: %w", err)
	}

	u := User{
		ID:                firstNonEmpty(idString(w.ID), idString(w.UserID)),
		Email:             strings.TrimSpace(w.Email),
		Name:              firstNonEmpty(w.Name, w.Nome),
		Role:              firstNonEmpty(w.Role, w.TipoUsuario),
		Bio:               w.Bio,
		SocialName:        firstNonEmpty(w.SocialName, w.NomeSocial),
		IndigenousName:    firstNonEmpty(w.IndigenousName, w.NomeIndigena),
		Community:         firstNonEmpty(w.Community, w.AldeiaComunidade),
		TerritoryLocation: firstNonEmpty(w.TerritoryLocation, w.LocalizacaoTerritorio),
		Phone:             firstNonEmpty(w.Phone, w.Telefone),
		MainActivity:      firstNonEmpty(w.MainActivity, w.PrincipalAtuacao),
	}
	u.Age = w.Age
	if u.Age == nil {
		u.Age = w.Idade
	}
	u.RoleLabel = RoleLabel(u.Role)

	if u.ID == "" && u.Email == "" {
		return User{}, errEmptyRecord
	}
	return u, nil
}

func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ProfileUpdate lists the fields to change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name              *string
	Age               *int
	Bio               *string
	SocialName        *string
	IndigenousName    *string
	Community         *string
	TerritoryLocation *string
	Phone             *string
	MainActivity      *string
}

// IsEmpty reports whether no field is set.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Age == nil && p.Bio == nil && p.SocialName == nil &&
		p.IndigenousName == nil && p.Community == nil && p.TerritoryLocation == nil &&
		p.Phone == nil && p.MainActivity == nil
}

// Apply returns u with the set fields of p merged in.
func (p ProfileUpdate) Apply(u User) User {
	setString(&u.Name, p.Name)
	setString(&u.Bio, p.Bio)
	setString(&u.SocialName, p.SocialName)
	setString(&u.IndigenousName, p.IndigenousName)
	setString(&u.Community, p.Community)
	setString(&u.TerritoryLocation, p.TerritoryLocation)
	setString(&u.Phone, p.Phone)
	setString(&u.MainActivity, p.MainActivity)
	if p.Age != nil {
		age := *p.Age
		u.Age = &age
	}
	return u
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// SignUpRequest carries the registration form. Name, Email and Secret are required.
type SignUpRequest struct {
	Name   string
	Email  string
	Secret string

	// Role defaults to RoleCommunityMember.
	Role string

	Age               *int
	Bio               string
	SocialName        string
	IndigenousName    string
	Community         string
	TerritoryLocation string
	Phone             string
	MainActivity      string
}

// missing returns the names of empty required fields.
func (r SignUpRequest) missing() []string {
	var out []string
	if strings.TrimSpace(r.Name) == "" {
		out = append(out, "name")
	}
	if strings.TrimSpace(r.Email) == "" {
		out = append(out, "email")
	}
	if r.Secret == "" {
		out = append(out, "password")
	}
	return out
}
