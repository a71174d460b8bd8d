// Package spec defines the canonical intermediate representation produced
// by the Prompt→Spec Agent and consumed by the templating collaborator.
package spec

// FieldType is the closed enumeration of allowed entity field types.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldInteger  FieldType = "integer"
	FieldFloat    FieldType = "float"
	FieldBoolean  FieldType = "boolean"
	FieldDatetime FieldType = "datetime"
	FieldUUID     FieldType = "uuid"
	FieldText     FieldType = "text"
)

var validFieldTypes = map[FieldType]bool{
	FieldString: true, FieldInteger: true, FieldFloat: true,
	FieldBoolean: true, FieldDatetime: true, FieldUUID: true, FieldText: true,
}

// Field describes a single column on an Entity.
type Field struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	PrimaryKey bool      `json:"primary_key"`
	Nullable   bool      `json:"nullable"`
	Unique     bool      `json:"unique"`
}

// Entity describes a single database model and its generated CRUD surface.
type Entity struct {
	Name      string  `json:"name"`
	TableName string  `json:"table_name"`
	Fields    []Field `json:"fields"`
	CRUD      bool    `json:"crud"`
}

// PrimaryKey returns the entity's single primary-key field, if any.
func (e Entity) PrimaryKey() (Field, bool) {
	for _, f := range e.Fields {
		if f.PrimaryKey {
			return f, true
		}
	}
	return Field{}, false
}

// DatabaseConfig is locked to a single kind with a version string for the MVP.
type DatabaseConfig struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// AuthConfig controls whether the generated backend carries authentication.
type AuthConfig struct {
	Enabled            bool   `json:"enabled"`
	Kind               string `json:"kind"`
	TokenExpiryMinutes int    `json:"token_expiry_minutes"`
}

// DefaultDatabaseConfig matches the original platform's MVP default.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{Type: "postgres", Version: "15"}
}

// DefaultAuthConfig matches the original platform's MVP default.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{Enabled: true, Kind: "jwt", TokenExpiryMinutes: 30}
}

// Spec is the canonical intermediate representation: the output of C3 and
// the input to the templating collaborator (§6).
type Spec struct {
	ProjectName string         `json:"project_name"`
	Description string         `json:"description"`
	SpecVersion string         `json:"spec_version"`
	Database    DatabaseConfig `json:"database"`
	Auth        AuthConfig     `json:"auth"`
	Entities    []Entity       `json:"entities"`
}

// CurrentSpecVersion is stamped on specs produced by this build of C3.
const CurrentSpecVersion = "1.0"
