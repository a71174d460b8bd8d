package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTaskSpec() Spec {
	return Spec{
		ProjectName: "todo-api",
		SpecVersion: CurrentSpecVersion,
		Database:    DefaultDatabaseConfig(),
		Auth:        DefaultAuthConfig(),
		Entities: []Entity{
			{
				Name:      "Task",
				TableName: "tasks",
				CRUD:      true,
				Fields: []Field{
					{Name: "id", Type: FieldUUID, PrimaryKey: true, Nullable: false},
					{Name: "title", Type: FieldString},
					{Name: "done", Type: FieldBoolean},
				},
			},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s Spec) Spec
		wantErr string
	}{
		{
			name:   "valid spec passes",
			mutate: func(s Spec) Spec { return s },
		},
		{
			name: "empty entities rejected",
			mutate: func(s Spec) Spec {
				s.Entities = nil
				return s
			},
			wantErr: "at least one entity",
		},
		{
			name: "single-character project name accepted",
			mutate: func(s Spec) Spec {
				s.ProjectName = "a"
				return s
			},
		},
		{
			name: "project name starting with hyphen rejected",
			mutate: func(s Spec) Spec {
				s.ProjectName = "-foo"
				return s
			},
			wantErr: "project_name",
		},
		{
			name: "duplicate entity names rejected case-insensitively",
			mutate: func(s Spec) Spec {
				dup := s.Entities[0]
				dup.TableName = "tasks2"
				s.Entities = append(s.Entities, Entity{
					Name: "task", TableName: dup.TableName, CRUD: true,
					Fields: dup.Fields,
				})
				return s
			},
			wantErr: "duplicate entity name",
		},
		{
			name: "duplicate table names rejected",
			mutate: func(s Spec) Spec {
				dup := s.Entities[0]
				dup.Name = "OtherTask"
				s.Entities = append(s.Entities, dup)
				return s
			},
			wantErr: "duplicate table name",
		},
		{
			name: "entity without primary key rejected",
			mutate: func(s Spec) Spec {
				s.Entities[0].Fields[0].PrimaryKey = false
				return s
			},
			wantErr: "exactly one primary key",
		},
		{
			name: "nullable primary key rejected",
			mutate: func(s Spec) Spec {
				s.Entities[0].Fields[0].Nullable = true
				return s
			},
			wantErr: "must not be nullable",
		},
		{
			name: "non-pascal-case entity name rejected",
			mutate: func(s Spec) Spec {
				s.Entities[0].Name = "task"
				return s
			},
			wantErr: "PascalCase",
		},
		{
			name: "non-snake-case field name rejected",
			mutate: func(s Spec) Spec {
				s.Entities[0].Fields[1].Name = "Title"
				return s
			},
			wantErr: "snake_case",
		},
		{
			name: "unsupported field type rejected",
			mutate: func(s Spec) Spec {
				s.Entities[0].Fields[1].Type = "binary"
				return s
			},
			wantErr: "unsupported type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.mutate(validTaskSpec()))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEntityPrimaryKey(t *testing.T) {
	e := validTaskSpec().Entities[0]
	pk, ok := e.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)
}
