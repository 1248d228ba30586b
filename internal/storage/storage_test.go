package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	*Base
	Value string `json:"value"`
}

func TestSetGetRoundTrip(t *testing.T) {
	db := NewBunt(filepath.Join(t.TempDir(), "test.db"))
	defer db.Close()

	stored := &record{Base: New(ID("record:1")), Value: "hello"}
	require.NoError(t, stored.Set(stored, db))

	loaded := &record{Base: New(ID("record:1"))}
	got, err := loaded.Get(loaded, db)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.(*record).Value)
}

func TestGetMissingKey(t *testing.T) {
	db := NewBunt(filepath.Join(t.TempDir(), "test.db"))
	defer db.Close()

	missing := &record{Base: New(ID("record:does-not-exist"))}
	_, err := missing.Get(missing, db)
	assert.Error(t, err)
}
