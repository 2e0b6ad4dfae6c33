package discovery

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mineroot/lanshare/pkg/protocol"
)

const (
	DefaultPort          = 10000
	DefaultBroadcastHost = "255.255.255.255"
	DefaultInterval      = 3 * time.Second
)

// Manifester lists the shared files and their sizes.
type Manifester interface {
	Manifest() map[string]int64
}

type BroadcasterOption func(*Broadcaster)

func WithInterval(interval time.Duration) BroadcasterOption {
	return func(b *Broadcaster) {
		if interval > 0 {
			b.interval = interval
		}
	}
}

// WithTrigger makes every receive from trigger announce immediately,
// in addition to the periodic announcements.
func WithTrigger(trigger <-chan struct{}) BroadcasterOption {
	return func(b *Broadcaster) {
		b.trigger = trigger
	}
}

// Broadcaster periodically announces the shared files and the TCP port
// they are served on.
type Broadcaster struct {
	files       Manifester
	servingPort uint16
	target      string
	interval    time.Duration
	trigger     <-chan struct{}
}

// NewBroadcaster announces files as served on servingPort to target,
// usually the broadcast address and the discovery port.
func NewBroadcaster(files Manifester, servingPort uint16, target string, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		files:       files,
		servingPort: servingPort,
		target:      target,
		interval:    DefaultInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run announces until ctx is done. Socket failures end the broadcaster
// without failing the caller.
func (b *Broadcaster) Run(ctx context.Context) error {
	l := log.Ctx(ctx).With().Str("component", "broadcaster").Str("target", b.target).Logger()
	dst, err := net.ResolveUDPAddr("udp4", b.target)
	if err != nil {
		l.Error().Err(err).Msg("unable to resolve broadcast address, discovery is not announced")
		return nil
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		l.Error().Err(err).Msg("unable to open broadcast socket, discovery is not announced")
		return nil
	}
	defer conn.Close()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	trigger := b.trigger
	for {
		b.announce(conn, dst, &l)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
			}
		}
	}
}

func (b *Broadcaster) announce(conn *net.UDPConn, dst *net.UDPAddr, l *zerolog.Logger) {
	a := &protocol.Announcement{Port: b.servingPort, Files: b.files.Manifest()}
	if _, err := conn.WriteToUDP(a.Encode(), dst); err != nil {
		l.Warn().Err(err).Msg("unable to send announcement")
		return
	}
	l.Debug().Int("files", len(a.Files)).Msg("announced")
}
