package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/statictcp/internal/client"
	"github.com/HMasataka/statictcp/internal/docroot"
	"github.com/HMasataka/statictcp/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	listener *Listener
	root     string
	host     string
	port     int
}

// startServer serves <tmp>/www on a random loopback port. <tmp>/secret.txt
// sits just outside the document root.
func startServer(t *testing.T) *testServer {
	t.Helper()

	parent := t.TempDir()
	dir := filepath.Join(parent, "www")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.html"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("top secret"), 0o644))

	root, err := docroot.New(dir, docroot.DefaultResource)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(root, HandlerOptions{Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := Listen(ctx, "127.0.0.1:0", handler, logger)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- ln.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	addr := ln.Addr().(*net.TCPAddr)
	return &testServer{
		listener: ln,
		root:     dir,
		host:     addr.IP.String(),
		port:     addr.Port,
	}
}

// send writes raw bytes, half-closes, and reads until EOF. It is safe to
// call from any goroutine.
func (s *testServer) send(request string) ([]byte, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if request != "" {
		if _, err := io.WriteString(conn, request); err != nil {
			return nil, err
		}
	}
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		return nil, err
	}

	return io.ReadAll(conn)
}

func (s *testServer) rawRequest(t *testing.T, request string) []byte {
	t.Helper()

	response, err := s.send(request)
	require.NoError(t, err)
	return response
}

func (s *testServer) get(t *testing.T, target string) []byte {
	t.Helper()
	return s.rawRequest(t, fmt.Sprintf("GET %s HTTP/1.1\r\nHost: localhost\r\n\r\n", target))
}

func splitResponse(t *testing.T, response []byte) (string, []byte) {
	t.Helper()

	header, body, found := bytes.Cut(response, []byte("\r\n\r\n"))
	require.True(t, found, "response has no header terminator: %q", response)
	return string(header), body
}

func TestListen_URL(t *testing.T) {
	s := startServer(t)

	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d", s.port), s.listener.URL())
}

func TestListen_AddressInUse(t *testing.T) {
	s := startServer(t)

	_, err := Listen(context.Background(), s.listener.Addr().String(), NewHandler(nil, HandlerOptions{}), nil)

	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, AddressInUse, bindErr.Kind)
	assert.Contains(t, err.Error(), "address already in use")
}

func TestListen_InvalidAddress(t *testing.T) {
	_, err := Listen(context.Background(), "127.0.0.1:99999", NewHandler(nil, HandlerOptions{}), nil)

	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, InvalidAddress, bindErr.Kind)
}

func TestServer_EndToEnd(t *testing.T) {
	s := startServer(t)

	t.Run("ルートはhello.html", func(t *testing.T) {
		response := s.get(t, "/")

		assert.Equal(t,
			"HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 2\r\nConnection: close\r\n\r\nhi",
			string(response))
	})

	t.Run("ルートとデフォルトリソースは同一", func(t *testing.T) {
		assert.Equal(t, s.get(t, "/hello.html"), s.get(t, "/"))
	})

	t.Run("存在しないファイル", func(t *testing.T) {
		header, body := splitResponse(t, s.get(t, "/missing.txt"))

		assert.Equal(t,
			fmt.Sprintf("HTTP/1.1 404 Not Found\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: %d\r\nConnection: close", len(protocol.NotFoundBody)),
			header)
		assert.Equal(t, protocol.NotFoundBody, body)
	})

	traversals := []string{
		"/../secret.txt",
		"/%2e%2e/secret.txt",
		"/..%2fsecret.txt",
		"/../../../../../../../../etc/passwd",
	}
	for _, target := range traversals {
		t.Run("トラバーサル "+target, func(t *testing.T) {
			response := s.get(t, target)

			assert.Equal(t, s.get(t, "/missing.txt"), response)
			assert.NotContains(t, string(response), "top secret")
		})
	}

	t.Run("バイナリの往復", func(t *testing.T) {
		data := make([]byte, 256*1024)
		_, err := rand.Read(data)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(s.root, "blob.bin"), data, 0o644))

		header, body := splitResponse(t, s.get(t, "/blob.bin"))

		assert.Contains(t, header, "HTTP/1.1 200 OK\r\n")
		assert.Contains(t, header, "Content-Type: application/octet-stream\r\n")
		assert.Contains(t, header, fmt.Sprintf("Content-Length: %d\r\n", len(data)))
		assert.Equal(t, data, body)
	})

	t.Run("不正なエスケープを含むターゲット", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(s.root, "50% off.txt"), []byte("sale"), 0o644))

		header, body := splitResponse(t, s.get(t, "/50%%20off.txt"))

		assert.Contains(t, header, "HTTP/1.1 200 OK\r\n")
		assert.Equal(t, "sale", string(body))
	})

	t.Run("ディレクトリは404", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(s.root, "sub"), 0o755))

		assert.Equal(t, s.get(t, "/missing.txt"), s.get(t, "/sub"))
	})

	abandoned := []struct {
		name    string
		request string
	}{
		{name: "空の読み込み", request: ""},
		{name: "トークン不足", request: "GET /\r\n\r\n"},
		{name: "メソッドのみ", request: "GET\r\n"},
	}
	for _, tt := range abandoned {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, s.rawRequest(t, tt.request))
		})
	}

	t.Run("不正なリクエストの後も受け付けを続ける", func(t *testing.T) {
		s.rawRequest(t, "garbage")

		assert.Contains(t, string(s.get(t, "/")), "HTTP/1.1 200 OK")
	})
}

func TestServer_ConcurrentClients(t *testing.T) {
	s := startServer(t)

	const n = 32
	names := make([]string, n)
	contents := make([][]byte, n)
	for i := range n {
		names[i] = fmt.Sprintf("file-%02d.txt", i)
		contents[i] = bytes.Repeat([]byte{byte('a' + i%26)}, 4096*(i+1))
		require.NoError(t, os.WriteFile(filepath.Join(s.root, names[i]), contents[i], 0o644))
	}

	var wg sync.WaitGroup
	responses := make([][]byte, n)
	errs := make([]error, n)
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			responses[i], errs[i] = s.send(fmt.Sprintf("GET /%s HTTP/1.1\r\n\r\n", names[i]))
		}()
	}
	close(start)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i], names[i])
		header, body := splitResponse(t, responses[i])
		assert.Contains(t, header, fmt.Sprintf("Content-Length: %d\r\n", len(contents[i])), names[i])
		assert.Equal(t, contents[i], body, names[i])
	}
}

func TestServer_SlowClientDoesNotBlockOthers(t *testing.T) {
	s := startServer(t)

	// a peer that connects and never sends holds only its own handler
	idle, err := net.Dial("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	require.NoError(t, err)
	defer idle.Close()

	assert.Contains(t, string(s.get(t, "/")), "HTTP/1.1 200 OK")
}

func TestServer_WithClient(t *testing.T) {
	s := startServer(t)

	c := client.New(s.host, s.port, client.DefaultOptions())
	results := c.FetchAll(context.Background(), []string{"hello.html", "missing.txt", "../secret.txt"})

	require.Len(t, results, 3)
	for _, r := range results {
		require.NoError(t, r.Err)
	}
	assert.True(t, bytes.HasSuffix(results[0].Response, []byte("\r\n\r\nhi")))
	assert.True(t, bytes.HasPrefix(results[1].Response, []byte(protocol.StatusNotFound)))
	assert.Equal(t, results[1].Response, results[2].Response)
}

func TestListener_Run_StopsOnCancel(t *testing.T) {
	root, err := docroot.New(t.TempDir(), "")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := Listen(ctx, "127.0.0.1:0", NewHandler(root, HandlerOptions{Logger: logger}), logger)
	require.NoError(t, err)
	addr := ln.Addr().String()

	done := make(chan error, 1)
	go func() {
		done <- ln.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = net.Dial("tcp", addr)
	assert.Error(t, err)
	assert.NoError(t, ln.Close())
}
