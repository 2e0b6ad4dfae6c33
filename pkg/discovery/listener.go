package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"

	"github.com/mineroot/lanshare/pkg/peer"
	"github.com/mineroot/lanshare/pkg/protocol"
)

const (
	maxDatagramSize        = 64 << 10
	maxConsecutiveFailures = 16
)

var errNotBound = errors.New("discovery: listener is not bound")

// Listener receives announcements and records their senders in a registry.
type Listener struct {
	addr     string
	registry peer.Upserter

	lock sync.Mutex
	conn *net.UDPConn
}

func NewListener(addr string, registry peer.Upserter) *Listener {
	return &Listener{addr: addr, registry: registry}
}

func (l *Listener) Bind() error {
	udpAddr, err := net.ResolveUDPAddr("udp4", l.addr)
	if err != nil {
		return fmt.Errorf("discovery: unable to resolve %s: %w", l.addr, err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return fmt.Errorf("discovery: unable to bind %s: %w", l.addr, err)
	}
	l.lock.Lock()
	l.conn = conn
	l.lock.Unlock()
	return nil
}

func (l *Listener) LocalAddr() net.Addr {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run binds and serves until ctx is done. A bind failure is logged and
// ends only this worker.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.Bind(); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", "discovery").Msg("peers will not be discovered")
		return nil
	}
	return l.Serve(ctx)
}

func (l *Listener) Serve(ctx context.Context) error {
	l.lock.Lock()
	conn := l.conn
	l.lock.Unlock()
	if conn == nil {
		return errNotBound
	}
	logger := log.Ctx(ctx).With().Str("component", "discovery").Str("addr", conn.LocalAddr().String()).Logger()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
		logger.Debug().Err(err).Msg("control messages unavailable")
	}
	logger.Info().Msg("listening for announcements")

	buf := make([]byte, maxDatagramSize)
	failures := 0
	for {
		n, cm, src, err := pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if ctx.Err() == nil {
					logger.Error().Err(err).Msg("discovery socket closed")
				}
				return nil
			}
			if failures++; failures >= maxConsecutiveFailures {
				logger.Error().Err(err).Int("failures", failures).Msg("discovery socket keeps failing, giving up")
				return nil
			}
			logger.Debug().Err(err).Msg("receive failed")
			continue
		}
		failures = 0
		if n == 0 {
			continue
		}
		e := logger.Debug()
		if cm != nil {
			e = e.Int("if_index", cm.IfIndex).Stringer("dst", cm.Dst)
		}
		e.Stringer("src", src).Int("len", n).Msg("datagram received")
		l.handle(buf[:n], src, &logger)
	}
}

func (l *Listener) handle(payload []byte, src net.Addr, logger *zerolog.Logger) {
	udpAddr, ok := src.(*net.UDPAddr)
	if !ok {
		return
	}
	a, skipped, err := protocol.ParseAnnouncement(payload)
	if err != nil {
		logger.Debug().Err(err).Stringer("src", src).Msg("datagram ignored")
		return
	}
	for _, err = range skipped {
		logger.Debug().Err(err).Stringer("src", src).Msg("announcement entry skipped")
	}
	l.registry.Upsert(peer.Info{
		Address: udpAddr.IP.String(),
		Port:    a.Port,
		Files:   a.Files,
	})
}
