package jsonrpc

import "errors"

var (
	// ErrMalformedFrame reports bytes that do not form a valid frame or
	// JSON-RPC body. The offending frame is skipped; the connection stays up.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrConnectionClosed rejects calls still pending when the stream ends.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrWriterClosed is returned for frames enqueued after the writer
	// was closed or its sink failed.
	ErrWriterClosed = errors.New("writer closed")
)
