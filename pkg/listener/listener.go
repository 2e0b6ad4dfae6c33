package listener

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrAlreadyListened = errors.New("already listened")
	ErrNothingToClose  = errors.New("nothing to close")
)

const maxAcceptDelay = time.Second

func New(logger *zerolog.Logger) *Listener {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Listener{
		logger: logger,
		connCh: make(chan net.Conn),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Listener accepts TCP connections and hands them over through a channel.
// The accept loop never waits on a client, only on the consumer of the channel.
type Listener struct {
	once   sync.Once
	lock   sync.Mutex
	lis    net.Listener
	logger *zerolog.Logger
	connCh chan net.Conn
	quit   chan struct{}
	done   chan struct{}
}

func (l *Listener) Listen(addr string) (connCh <-chan net.Conn, err error) {
	err = ErrAlreadyListened
	l.once.Do(func() {
		connCh, err = l.listen(addr)
	})
	return
}

func (l *Listener) listen(addr string) (<-chan net.Conn, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen on %s: %w", addr, err)
	}
	l.lock.Lock()
	l.lis = lis
	l.lock.Unlock()
	go l.acceptLoop(lis)
	return l.connCh, nil
}

func (l *Listener) acceptLoop(lis net.Listener) {
	defer close(l.done)
	var delay time.Duration
	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// back off on errors like EMFILE instead of spinning
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			l.logger.Warn().Err(err).Dur("retry_in", delay).Msg("accept failed")
			select {
			case <-time.After(delay):
				continue
			case <-l.quit:
				return
			}
		}
		delay = 0
		l.logger.Debug().
			Str("remote_peer", conn.RemoteAddr().String()).
			Msg("incoming connection")
		select {
		case l.connCh <- conn:
		case <-l.quit:
			conn.Close()
			return
		}
	}
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.lis == nil {
		return nil
	}
	return l.lis.Addr()
}

// Close stops accepting and closes the connection channel once the accept
// loop has exited.
func (l *Listener) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.lis == nil {
		return ErrNothingToClose
	}
	close(l.quit)
	err := l.lis.Close()
	<-l.done
	close(l.connCh)
	l.lis = nil
	return err
}
