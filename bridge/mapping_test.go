package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/cloudbridge/bridge"
)

func TestUnderscoredMapping(t *testing.T) {
	m := bridge.UnderscoredMapping{}

	tests := []struct {
		cloud string
		local string
	}{
		{"id", "id"},
		{"author_id", "authorId"},
		{"created_at_time", "createdAtTime"},
		{"http_code", "httpCode"},
	}
	for _, tt := range tests {
		t.Run(tt.cloud, func(t *testing.T) {
			assert.Equal(t, tt.local, m.PersistentKey(tt.cloud))
			assert.Equal(t, tt.cloud, m.CloudKey(tt.local))
		})
	}

	assert.Equal(t, "http_code", m.CloudKey("HTTPCode"))
	assert.Equal(t, "user_id", m.CloudKey("userID"))
	assert.Equal(t, "version2_name", m.CloudKey("version2Name"))
	assert.Equal(t, "authorId", m.PersistentKey("_author__id"))
}

func TestIdentityMapping(t *testing.T) {
	m := bridge.IdentityMapping{}
	assert.Equal(t, "author_id", m.PersistentKey("author_id"))
	assert.Equal(t, "authorId", m.CloudKey("authorId"))
}

func TestMappingByName(t *testing.T) {
	m, err := bridge.MappingByName("")
	require.NoError(t, err)
	assert.IsType(t, bridge.IdentityMapping{}, m)

	m, err = bridge.MappingByName("Underscored")
	require.NoError(t, err)
	assert.IsType(t, bridge.UnderscoredMapping{}, m)

	m, err = bridge.MappingByName("snake_case")
	require.NoError(t, err)
	assert.IsType(t, bridge.UnderscoredMapping{}, m)

	_, err = bridge.MappingByName("kebab")
	assert.Error(t, err)
}
