package transports

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syracusa/ce-ef/pkg/transport"
)

func TestNewByKind(t *testing.T) {
	tr, err := NewByKind("TCP")
	require.NoError(t, err)
	assert.Equal(t, transport.KindTCP, tr.Kind())

	tr, err = NewByKind("mem")
	require.NoError(t, err)
	assert.Equal(t, transport.KindMem, tr.Kind())

	_, err = NewByKind("carrier-pigeon")
	var unknown ErrUnknownKind
	assert.True(t, errors.As(err, &unknown))

	_, err = NewByKind("winpipe")
	if runtime.GOOS == "windows" {
		assert.NoError(t, err)
	} else {
		assert.Error(t, err)
	}
}
