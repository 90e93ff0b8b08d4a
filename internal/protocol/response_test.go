package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct {
	failAt int
	calls  int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls == w.failAt {
		return 0, errors.New("broken pipe")
	}
	return len(p), nil
}

func TestWriteOK(t *testing.T) {
	var buf bytes.Buffer

	err := WriteOK(&buf, "text/html", []byte("hi"))

	require.NoError(t, err)
	assert.Equal(t,
		"HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 2\r\nConnection: close\r\n\r\nhi",
		buf.String())
}

func TestWriteOK_EmptyBody(t *testing.T) {
	var buf bytes.Buffer

	err := WriteOK(&buf, "text/plain", nil)

	require.NoError(t, err)
	assert.Equal(t,
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 0\r\nConnection: close\r\n\r\n",
		buf.String())
}

func TestWriteNotFound(t *testing.T) {
	var buf bytes.Buffer

	err := WriteNotFound(&buf)

	require.NoError(t, err)

	header, body, found := bytes.Cut(buf.Bytes(), []byte("\r\n\r\n"))
	require.True(t, found)
	assert.Equal(t,
		"HTTP/1.1 404 Not Found\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: 134\r\nConnection: close",
		string(header))
	assert.Equal(t, NotFoundBody, body)
	assert.Len(t, NotFoundBody, 134)
	assert.Contains(t, string(body), "<h1>404 Not Found</h1>")
}

func TestWrite_Failure(t *testing.T) {
	t.Run("ヘッダー書き込み失敗", func(t *testing.T) {
		w := &failingWriter{failAt: 1}

		err := WriteOK(w, "text/plain", []byte("body"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "write header")
		assert.Equal(t, 1, w.calls)
	})

	t.Run("ボディ書き込み失敗", func(t *testing.T) {
		w := &failingWriter{failAt: 2}

		err := WriteOK(w, "text/plain", []byte("body"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "write body")
	})
}
