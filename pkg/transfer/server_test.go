package transfer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mineroot/lanshare/pkg/protocol"
	"github.com/mineroot/lanshare/pkg/share"
)

const root = "/share"

func startServer(t *testing.T, fs afero.Fs, opts ...Option) (string, context.CancelFunc) {
	s := NewServer(share.NewInspector(fs, root), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Listen(ctx, "127.0.0.1:0"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, s.Serve(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s.Addr().String(), cancel
}

func helloFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, root+"/a.txt", []byte("hello world"), 0644))
	require.NoError(t, fs.MkdirAll(root+"/dir", 0755))
	return fs
}

func request(t *testing.T, addr, req string) string {
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = io.WriteString(conn, req)
	require.NoError(t, err)
	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(resp)
}

func TestServer_Requests(t *testing.T) {
	addr, _ := startServer(t, helloFs(t))
	tests := map[string]struct {
		req      string
		expected string
	}{
		"whole range":     {req: "GET a.txt 0 11\n", expected: "OK 11\nhello world"},
		"tail range":      {req: "GET a.txt 6 11\n", expected: "OK 5\nworld"},
		"end zero":        {req: "GET a.txt 0 0\n", expected: "OK 11\nhello world"},
		"end past EOF":    {req: "GET a.txt 0 1000\n", expected: "OK 11\nhello world"},
		"omitted range":   {req: "GET a.txt\n", expected: "OK 11\nhello world"},
		"omitted end":     {req: "GET a.txt 6\n", expected: "OK 5\nworld"},
		"crlf":            {req: "GET a.txt 0 5\r\n", expected: "OK 5\nhello"},
		"start == end":    {req: "GET a.txt 5 5\n", expected: ""},
		"start past EOF":  {req: "GET a.txt 20 0\n", expected: ""},
		"start > end":     {req: "GET a.txt 8 3\n", expected: ""},
		"nonexistent":     {req: "GET nope.txt 0 1\n", expected: "ERR nofile\n"},
		"directory":       {req: "GET dir 0 1\n", expected: "ERR nofile\n"},
		"unknown command": {req: "PUT a.txt 0 1\n", expected: "ERR\n"},
		"missing file":    {req: "GET\n", expected: "ERR\n"},
		"bad offset":      {req: "GET a.txt zero 1\n", expected: "ERR\n"},
		"path traversal":  {req: "GET ../etc/passwd\n", expected: "ERR\n"},
		"no newline":      {req: strings.Repeat("x", protocol.MaxRequestLine), expected: "ERR\n"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, request(t, addr, tt.req))
		})
	}
}

func TestServer_RoundTrip(t *testing.T) {
	const size = 3*ChunkSize + 123
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, root+"/blob", data, 0644))
	addr, _ := startServer(t, fs)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	req := &protocol.Request{Filename: "blob", Start: 0, End: size}
	_, err = conn.Write(req.Encode())
	require.NoError(t, err)

	r := bufio.NewReaderSize(conn, protocol.MaxHeaderLine)
	line, err := protocol.ReadLine(r)
	require.NoError(t, err)
	n, err := protocol.ParseResponseHeader(line)
	require.NoError(t, err)
	require.Equal(t, int64(size), n)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, body))
}

func TestServer_ConcurrentClients(t *testing.T) {
	const clients = 50
	addr, _ := startServer(t, helloFs(t), WithMaxConns(8))
	var wg sync.WaitGroup
	wg.Add(clients)
	for i := 0; i < clients; i++ {
		go func() {
			defer wg.Done()
			assert.Equal(t, "OK 5\nworld", request(t, addr, "GET a.txt 6 11\n"))
		}()
	}
	wg.Wait()
}

func TestServer_SilentClientDoesNotBlockOthers(t *testing.T) {
	addr, _ := startServer(t, helloFs(t))
	silent, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer silent.Close()
	assert.Equal(t, "OK 11\nhello world", request(t, addr, "GET a.txt\n"))
}

func TestServer_ShutdownClosesConnections(t *testing.T) {
	addr, cancel := startServer(t, helloFs(t))
	silent, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer silent.Close()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.NoError(t, silent.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = silent.Read(make([]byte, 1))
	assert.True(t, errors.Is(err, io.EOF) || isReset(err), "unexpected error: %v", err)
}

func TestServer_ServeWithoutListen(t *testing.T) {
	s := NewServer(share.NewInspector(afero.NewMemMapFs(), root))
	assert.ErrorIs(t, s.Serve(context.Background()), errNotListening)
	assert.Nil(t, s.Addr())
}

func TestStream(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), ChunkSize/5)
	var out bytes.Buffer
	n, err := stream(&out, bytes.NewReader(data), 3, int64(len(data)-3))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)-3), n)
	assert.Equal(t, data[3:], out.Bytes())

	out.Reset()
	n, err = stream(&out, bytes.NewReader(data[:100]), 0, 200)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(100), n)
}

func isReset(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
