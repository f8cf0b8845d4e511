package websocket

import (
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientIDsAreUnique(t *testing.T) {
	a := newClient(nil, nil, "ua", "127.0.0.1")
	b := newClient(nil, nil, "ua", "127.0.0.1")

	assert.NotEqual(t, a.id, b.id)
	_, err := xid.FromString(a.id)
	require.NoError(t, err)
}
