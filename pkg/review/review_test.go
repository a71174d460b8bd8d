package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/genforge/pkg/spec"
)

func baseSpec() spec.Spec {
	return spec.Spec{
		ProjectName: "todo-api",
		Database:    spec.DefaultDatabaseConfig(),
		Auth:        spec.DefaultAuthConfig(),
		Entities: []spec.Entity{
			{
				Name: "Task", TableName: "tasks", CRUD: true,
				Fields: []spec.Field{
					{Name: "id", Type: spec.FieldUUID, PrimaryKey: true},
					{Name: "title", Type: spec.FieldString},
				},
			},
		},
	}
}

func TestReview_ValidSpecHasNoErrors(t *testing.T) {
	r := Review(baseSpec())
	require.True(t, r.Valid)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
}

func TestReview_DuplicateFieldNames(t *testing.T) {
	s := baseSpec()
	s.Entities[0].Fields = append(s.Entities[0].Fields, spec.Field{Name: "title", Type: spec.FieldString})
	r := Review(s)
	require.False(t, r.Valid)
	assert.Contains(t, r.Errors[0], "duplicate field name")
}

func TestReview_ReservedIdentifierIsWarningNotError(t *testing.T) {
	s := baseSpec()
	s.Entities[0].Fields = append(s.Entities[0].Fields, spec.Field{Name: "class", Type: spec.FieldString})
	r := Review(s)
	require.True(t, r.Valid)
	assert.Contains(t, r.Warnings[0], `"class"`)
}

func TestReview_IDFieldExemptFromReservedCheck(t *testing.T) {
	r := Review(baseSpec())
	assert.Empty(t, r.Warnings)
}

func TestReview_NullablePrimaryKeyIsError(t *testing.T) {
	s := baseSpec()
	s.Entities[0].Fields[0].Nullable = true
	r := Review(s)
	require.False(t, r.Valid)
	assert.Contains(t, r.Errors[0], "must not be nullable")
}

func TestReview_AuthUsersTableCollision(t *testing.T) {
	s := baseSpec()
	s.Entities[0].TableName = "users"
	r := Review(s)
	require.False(t, r.Valid)
	assert.Contains(t, r.Errors[0], "collides")
}

func TestReview_AuthDisabled_NoCollisionCheck(t *testing.T) {
	s := baseSpec()
	s.Auth.Enabled = false
	s.Entities[0].TableName = "users"
	r := Review(s)
	assert.True(t, r.Valid)
}

func TestReview_GenericProjectNameWarns(t *testing.T) {
	s := baseSpec()
	s.ProjectName = "app"
	r := Review(s)
	require.True(t, r.Valid)
	assert.Contains(t, r.Warnings[0], "generic")
}
