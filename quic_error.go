package ente

import (
	"errors"
	"io"
	"net"

	"github.com/sagernet/quic-go"
)

type quicError struct {
	err error
}

// WrapError makes graceful QUIC shutdowns match net.ErrClosed and locally
// canceled streams match io.EOF.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &quicError{err: err}
}

func (e *quicError) Error() string {
	return e.err.Error()
}

func (e *quicError) Unwrap() error {
	return e.err
}

func (e *quicError) Is(target error) bool {
	if errors.Is(e.err, target) {
		return true
	}
	switch target {
	case net.ErrClosed:
		return isLocalStreamCancel(e.err) || isGracefulClose(e.err)
	case io.EOF:
		return isLocalStreamCancel(e.err)
	}
	return false
}

func isLocalStreamCancel(err error) bool {
	var streamErr *quic.StreamError
	return errors.As(err, &streamErr) && !streamErr.Remote && streamErr.ErrorCode == 0
}

func isGracefulClose(err error) bool {
	var transportErr *quic.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.ErrorCode == quic.NoError
	}
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Remote && appErr.ErrorCode == 0
	}
	return false
}
