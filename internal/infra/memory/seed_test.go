package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeed(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)

	err = LoadSeed(s, strings.NewReader(`{
		"customers": [{"id": "c1", "email": "c1@example.com"}],
		"products": [{"id": "p1", "account_id": "a1", "name": "Dress", "stock": 4, "is_active": true}]
	}`))
	require.NoError(t, err)

	ok, err := s.Customers().Exists(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.Ledger().Get("p1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestLoadSeed_RejectsUnknownFields(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)

	err = LoadSeed(s, strings.NewReader(`{"users": []}`))
	require.Error(t, err)
}

func TestLoadSeed_RejectsNegativeStock(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)

	err = LoadSeed(s, strings.NewReader(`{"products": [{"id": "p1", "name": "Dress", "stock": -3, "is_active": true}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stock must not be negative")
}
