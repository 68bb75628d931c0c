//go:build windows

package transports

import (
	"github.com/Syracusa/ce-ef/pkg/transport"
	"github.com/Syracusa/ce-ef/pkg/transport/winpipe"
)

func newWinPipeTransport() (transport.Transport, error) { return winpipe.New(), nil }
