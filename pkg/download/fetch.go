package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/mineroot/lanshare/pkg/protocol"
)

const readBufferSize = 64 << 10

var (
	ErrShortRange    = errors.New("connection closed before the announced length")
	ErrRangeMismatch = errors.New("announced length does not match the requested range")
)

type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// fetchRange requests r of filename from addr and writes the response body
// into w at the range's own offsets.
func fetchRange(
	ctx context.Context,
	dialer ContextDialer,
	addr, filename string,
	r Range,
	w io.WriterAt,
	onRead func(int),
) (int64, error) {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	req := &protocol.Request{Filename: filename, Start: r.Begin, End: r.End}
	if _, err = conn.Write(req.Encode()); err != nil {
		return 0, fmt.Errorf("unable to send request: %w", err)
	}
	return readRange(bufio.NewReaderSize(conn, protocol.MaxHeaderLine), r, w, onRead)
}

// readRange parses a transfer response and copies exactly the announced
// number of bytes into w starting at r.Begin.
func readRange(br *bufio.Reader, r Range, w io.WriterAt, onRead func(int)) (int64, error) {
	line, err := protocol.ReadLine(br)
	if err != nil {
		return 0, fmt.Errorf("unable to read response header: %w", err)
	}
	n, err := protocol.ParseResponseHeader(line)
	if err != nil {
		return 0, err
	}
	// a longer body would spill into a sibling's range
	if n != r.Len() {
		return 0, fmt.Errorf("%w: announced %d, requested %d", ErrRangeMismatch, n, r.Len())
	}

	buf := make([]byte, min(readBufferSize, n))
	var received int64
	for received < n {
		chunk := buf[:min(int64(len(buf)), n-received)]
		rn, rerr := br.Read(chunk)
		if rn > 0 {
			if _, werr := w.WriteAt(chunk[:rn], r.Begin+received); werr != nil {
				return received, fmt.Errorf("unable to write to destination: %w", werr)
			}
			received += int64(rn)
			if onRead != nil {
				onRead(rn)
			}
		}
		if rerr != nil && received < n {
			if errors.Is(rerr, io.EOF) {
				return received, fmt.Errorf("%w: received %d of %d bytes", ErrShortRange, received, n)
			}
			return received, rerr
		}
	}
	return received, nil
}
