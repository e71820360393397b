package ente

import (
	"context"
	"net"

	"github.com/sagernet/quic-go"
	"github.com/sagernet/sing-ente/congestion_ente"
	E "github.com/sagernet/sing/common/exceptions"
	aTLS "github.com/sagernet/sing/common/tls"
)

// Config is implemented by TLS configs that dial QUIC themselves.
type Config interface {
	Dial(ctx context.Context, conn net.PacketConn, addr net.Addr, config *quic.Config) (*quic.Conn, error)
	DialEarly(ctx context.Context, conn net.PacketConn, addr net.Addr, config *quic.Config) (*quic.Conn, error)
}

// ServerConfig is implemented by TLS configs that listen for QUIC themselves.
type ServerConfig interface {
	Listen(conn net.PacketConn, config *quic.Config) (QUICListener, error)
	ListenEarly(conn net.PacketConn, config *quic.Config) (QUICListener, error)
}

// QUICListener accepts QUIC connections.
type QUICListener interface {
	Accept(ctx context.Context) (*quic.Conn, error)
	Close() error
	Addr() net.Addr
}

// Dial dials a QUIC connection and installs the congestion controller
// selected by options.
func Dial(ctx context.Context, conn net.PacketConn, addr net.Addr, config aTLS.Config, quicConfig *quic.Config, options Options) (*quic.Conn, error) {
	err := options.validate()
	if err != nil {
		return nil, err
	}
	var quicConn *quic.Conn
	if quicTLSConfig, isQUICConfig := config.(Config); isQUICConfig {
		quicConn, err = quicTLSConfig.Dial(ctx, conn, addr, quicConfig)
	} else {
		tlsConfig, loadErr := config.STDConfig()
		if loadErr != nil {
			return nil, loadErr
		}
		quicConn, err = quic.Dial(ctx, conn, addr, tlsConfig, quicConfig)
	}
	if err != nil {
		return nil, err
	}
	err = install(ctx, quicConn, options)
	if err != nil {
		return nil, err
	}
	return quicConn, nil
}

// DialEarly is Dial with 0-RTT.
func DialEarly(ctx context.Context, conn net.PacketConn, addr net.Addr, config aTLS.Config, quicConfig *quic.Config, options Options) (*quic.Conn, error) {
	err := options.validate()
	if err != nil {
		return nil, err
	}
	var quicConn *quic.Conn
	if quicTLSConfig, isQUICConfig := config.(Config); isQUICConfig {
		quicConn, err = quicTLSConfig.DialEarly(ctx, conn, addr, quicConfig)
	} else {
		tlsConfig, loadErr := config.STDConfig()
		if loadErr != nil {
			return nil, loadErr
		}
		quicConn, err = quic.DialEarly(ctx, conn, addr, tlsConfig, quicConfig)
	}
	if err != nil {
		return nil, err
	}
	err = install(ctx, quicConn, options)
	if err != nil {
		return nil, err
	}
	return quicConn, nil
}

// Listen listens for QUIC connections. Every accepted connection gets its
// own congestion controller.
func Listen(ctx context.Context, conn net.PacketConn, config aTLS.ServerConfig, quicConfig *quic.Config, options Options) (*Listener, error) {
	err := options.validate()
	if err != nil {
		return nil, err
	}
	if quicTLSConfig, isQUICConfig := config.(ServerConfig); isQUICConfig {
		listener, err := quicTLSConfig.Listen(conn, quicConfig)
		if err != nil {
			return nil, err
		}
		return NewListener(ctx, listener, options), nil
	}
	tlsConfig, err := config.STDConfig()
	if err != nil {
		return nil, err
	}
	listener, err := quic.Listen(conn, tlsConfig, quicConfig)
	if err != nil {
		return nil, err
	}
	return NewListener(ctx, listener, options), nil
}

// ListenEarly is Listen with 0-RTT.
func ListenEarly(ctx context.Context, conn net.PacketConn, config aTLS.ServerConfig, quicConfig *quic.Config, options Options) (*Listener, error) {
	err := options.validate()
	if err != nil {
		return nil, err
	}
	if quicTLSConfig, isQUICConfig := config.(ServerConfig); isQUICConfig {
		listener, err := quicTLSConfig.ListenEarly(conn, quicConfig)
		if err != nil {
			return nil, err
		}
		return NewListener(ctx, listener, options), nil
	}
	tlsConfig, err := config.STDConfig()
	if err != nil {
		return nil, err
	}
	listener, err := quic.ListenEarly(conn, tlsConfig, quicConfig)
	if err != nil {
		return nil, err
	}
	return NewListener(ctx, listener, options), nil
}

func install(ctx context.Context, quicConn *quic.Conn, options Options) error {
	_, err := SetCongestion(ctx, quicConn, options)
	if err != nil {
		quicConn.CloseWithError(0, "")
		return E.Cause(err, "set congestion control")
	}
	return nil
}

// Listener installs a congestion controller on every accepted connection.
type Listener struct {
	ctx      context.Context
	listener QUICListener
	options  Options
}

var _ QUICListener = (*Listener)(nil)

func NewListener(ctx context.Context, listener QUICListener, options Options) *Listener {
	return &Listener{ctx: ctx, listener: listener, options: options}
}

func (l *Listener) Accept(ctx context.Context) (*quic.Conn, error) {
	quicConn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	err = install(l.ctx, quicConn, l.options)
	if err != nil {
		return nil, err
	}
	return quicConn, nil
}

func (l *Listener) Close() error {
	return l.listener.Close()
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Strategies returns the names accepted in Options.CongestionControl.
func Strategies() []string {
	return congestion_ente.Names()
}
