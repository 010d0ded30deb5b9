package models

import (
	"testing"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/stretchr/testify/require"
)

func TestParseOperation(t *testing.T) {
	for _, s := range []string{"create", "update", "delete"} {
		op, err := ParseOperation(s)
		require.NoError(t, err)
		require.Equal(t, Operation(s), op)
	}

	_, err := ParseOperation("upsert")
	require.ErrorIs(t, err, common.ErrUnknownOperation)
}

func TestIsLocalID(t *testing.T) {
	require.True(t, IsLocalID(common.LocalIDPrefix+"0193"))
	require.False(t, IsLocalID("0193"))
	require.False(t, IsLocalID(""))
}
