package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mineroot/lanshare/pkg/listener"
	"github.com/mineroot/lanshare/pkg/protocol"
	"github.com/mineroot/lanshare/pkg/share"
)

// ChunkSize is the unit in which file bytes are streamed to a client.
const ChunkSize = 64 << 10

var errNotListening = errors.New("transfer: server is not listening")

type Option func(*Server)

// WithMaxConns caps the number of connections served at once.
// Zero or a negative value means no cap.
func WithMaxConns(n int) Option {
	return func(s *Server) {
		s.maxConns = n
	}
}

// Server serves byte ranges of the files in one shared folder,
// one request per connection.
type Server struct {
	inspector *share.Inspector
	maxConns  int
	lis       *listener.Listener
	connCh    <-chan net.Conn
}

func NewServer(inspector *share.Inspector, opts ...Option) *Server {
	s := &Server{inspector: inspector}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Listen(ctx context.Context, addr string) (err error) {
	l := log.Ctx(ctx).With().Str("component", "transfer").Logger()
	s.lis = listener.New(&l)
	s.connCh, err = s.lis.Listen(addr)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	l.Info().Str("addr", s.lis.Addr().String()).Str("folder", s.inspector.Root()).Msg("serving shared folder")
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Serve dispatches every accepted connection to its own worker until ctx is
// done, then closes the listener and all in-flight connections.
func (s *Server) Serve(ctx context.Context) error {
	if s.lis == nil {
		return errNotListening
	}
	go func() {
		<-ctx.Done()
		_ = s.lis.Close()
	}()

	workers := new(errgroup.Group)
	if s.maxConns > 0 {
		workers.SetLimit(s.maxConns)
	}
	for conn := range s.connCh {
		conn := conn
		workers.Go(func() error {
			s.handle(ctx, conn)
			return nil
		})
	}
	return workers.Wait()
}

// Run listens on addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.Listen(ctx, addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()
	l := log.Ctx(ctx).With().
		Str("component", "transfer").
		Str("remote_peer", conn.RemoteAddr().String()).
		Logger()

	line, err := protocol.ReadLine(bufio.NewReaderSize(conn, protocol.MaxRequestLine))
	if err != nil {
		if errors.Is(err, protocol.ErrLineTooLong) {
			_ = protocol.WriteError(conn)
		}
		l.Debug().Err(err).Msg("unable to read request")
		return
	}

	req, err := protocol.ParseRequest(line)
	if err != nil {
		l.Debug().Err(err).Msg("malformed request")
		_ = protocol.WriteError(conn)
		return
	}
	l = l.With().Str("file", req.Filename).Logger()
	f, size, err := s.inspector.Open(req.Filename)
	if err != nil {
		l.Debug().Err(err).Msg("requested file not found")
		_ = protocol.WriteNoFile(conn)
		return
	}
	defer f.Close()
	start, end, ok := req.Clamp(size)
	if !ok {
		l.Debug().Int64("start", req.Start).Int64("end", req.End).Msg("empty range requested")
		return
	}

	if err = protocol.WriteOK(conn, end-start); err != nil {
		l.Debug().Err(err).Msg("unable to write response header")
		return
	}
	sent, err := stream(conn, f, start, end-start)
	if err != nil {
		l.Warn().Err(err).Int64("sent", sent).Int64("announced", end-start).Msg("range transfer aborted")
		return
	}
	l.Info().Int64("start", start).Int64("end", end).Msg("range sent")
}

// stream copies n bytes of r starting at off to w in ChunkSize pieces.
func stream(w io.Writer, r io.ReaderAt, off, n int64) (int64, error) {
	buf := make([]byte, min(int64(ChunkSize), n))
	var sent int64
	for sent < n {
		chunk := buf[:min(int64(len(buf)), n-sent)]
		rn, rerr := r.ReadAt(chunk, off+sent)
		if rn > 0 {
			wn, werr := w.Write(chunk[:rn])
			sent += int64(wn)
			if werr != nil {
				return sent, werr
			}
		}
		if rerr != nil && sent < n {
			if errors.Is(rerr, io.EOF) {
				return sent, io.ErrUnexpectedEOF
			}
			return sent, rerr
		}
	}
	return sent, nil
}
