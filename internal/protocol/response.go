package protocol

import (
	"fmt"
	"io"
	"strings"
)

const (
	StatusOK       = "HTTP/1.1 200 OK"
	StatusNotFound = "HTTP/1.1 404 Not Found"

	notFoundContentType = "text/html; charset=utf-8"
)

// NotFoundBody is the fixed body of every 404 response.
var NotFoundBody = []byte(
	`<!DOCTYPE html>` +
		`<html lang="en">` +
		`<head>` +
		`  <meta charset="UTF-8">` +
		`  <title>Error</title>` +
		`</head>` +
		`<body>` +
		`  <h1>404 Not Found</h1>` +
		`</body>` +
		`</html>`,
)

// Header renders the status line and headers, terminated by the blank line.
func Header(status, contentType string, contentLength int) []byte {
	lines := []string{
		status,
		"Content-Type: " + contentType,
		fmt.Sprintf("Content-Length: %d", contentLength),
		"Connection: close",
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n\r\n")
}

// WriteOK writes a 200 response as two writes: headers, then body.
func WriteOK(w io.Writer, contentType string, body []byte) error {
	return write(w, Header(StatusOK, contentType, len(body)), body)
}

// WriteNotFound writes the fixed 404 response.
func WriteNotFound(w io.Writer) error {
	return write(w, Header(StatusNotFound, notFoundContentType, len(NotFoundBody)), NotFoundBody)
}

func write(w io.Writer, header, body []byte) error {
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}
