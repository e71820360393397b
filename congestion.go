// Package ente installs entropy-classified congestion control on QUIC
// connections.
package ente

import (
	"context"
	"time"

	"github.com/sagernet/quic-go"
	"github.com/sagernet/quic-go/congestion"
	"github.com/sagernet/sing-ente/congestion_ente"
	"github.com/sagernet/sing-ente/metrics"
	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/logger"
	"github.com/sagernet/sing/common/ntp"
)

type Options struct {
	// CongestionControl is a registered strategy name. Empty selects ENTE.
	CongestionControl       string
	InitialCongestionWindow uint32
	MaxCongestionWindow     uint32
	Logger                  logger.Logger
	// Collector, when set, reports the installed controller until the
	// connection is closed.
	Collector *metrics.Collector
}

func (o Options) congestionControl() string {
	if o.CongestionControl == "" {
		return congestion_ente.Name
	}
	return o.CongestionControl
}

func (o Options) senderOptions() congestion_ente.SenderOptions {
	senderOptions := congestion_ente.DefaultSenderOptions()
	if o.InitialCongestionWindow != 0 {
		senderOptions.InitialCongestionWindow = o.InitialCongestionWindow
	}
	if o.MaxCongestionWindow != 0 {
		senderOptions.MaxCongestionWindow = o.MaxCongestionWindow
	}
	senderOptions.Logger = o.Logger
	return senderOptions
}

func (o Options) validate() error {
	_, err := congestion_ente.New(o.congestionControl())
	if err != nil {
		return err
	}
	if o.MaxCongestionWindow != 0 && o.MaxCongestionWindow < congestion_ente.MinCongestionWindow {
		return E.New("max congestion window below ", congestion_ente.MinCongestionWindow, " packets")
	}
	if o.InitialCongestionWindow != 0 && o.MaxCongestionWindow != 0 && o.InitialCongestionWindow > o.MaxCongestionWindow {
		return E.New("initial congestion window exceeds max congestion window")
	}
	return nil
}

// SetCongestion creates the strategy selected by options and installs it on
// connection.
func SetCongestion(ctx context.Context, connection *quic.Conn, options Options) (*congestion_ente.Sender, error) {
	err := options.validate()
	if err != nil {
		return nil, err
	}
	strategy, err := congestion_ente.New(options.congestionControl())
	if err != nil {
		return nil, err
	}
	timeFunc := ntp.TimeFuncFromContext(ctx)
	if timeFunc == nil {
		timeFunc = time.Now
	}
	sender := congestion_ente.NewSender(
		congestion_ente.DefaultClock{TimeFunc: timeFunc},
		congestion.ByteCount(connection.Config().InitialPacketSize),
		strategy,
		options.senderOptions(),
	)
	connection.SetCongestionControl(sender)
	if options.Collector != nil {
		label := connection.LocalAddr().String() + "-" + connection.RemoteAddr().String()
		options.Collector.Track(label, sender)
		go func() {
			<-connection.Context().Done()
			options.Collector.UntrackSource(label, sender)
		}()
	}
	return sender, nil
}
