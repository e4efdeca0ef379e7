// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode/utf8"
)

// MaxLineSize is the maximum allowed size for a single stream line (64KB).
const MaxLineSize = 64 * 1024

// ErrInvalidEncoding is returned when the stream contains bytes that are not
// valid UTF-8. Decode failures are surfaced, never silently dropped.
var ErrInvalidEncoding = errors.New("stream contains invalid UTF-8")

// ErrLineTooLong is returned when a single line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("stream line exceeds maximum size")

// =============================================================================
// LINE READER
// =============================================================================

// LineReader yields a byte stream as discrete text lines in arrival order,
// with line terminators stripped. It buffers only enough to detect line
// boundaries and does no interpretation of line content.
type LineReader struct {
	reader *bufio.Reader
}

// NewLineReader creates a line reader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		reader: bufio.NewReader(r),
	}
}

// Next returns the next line with trailing "\r\n" or "\n" removed.
// It returns io.EOF when the underlying source closes; that is normal
// termination, not an error. A final line without a terminator is still
// delivered before io.EOF.
//
// RELIABILITY: the line is accumulated buffer-slice by buffer-slice so an
// oversized line aborts once it passes MaxLineSize instead of being read
// into memory in full first.
func (l *LineReader) Next() (string, error) {
	var line []byte
	for {
		chunk, err := l.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineSize {
			return "", ErrLineTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			if err == io.EOF && len(line) == 0 {
				return "", io.EOF
			}
			if err != io.EOF {
				return "", err
			}
			// Partial final line: deliver it now, report EOF on the next call.
		}
		break
	}

	line = bytes.TrimRight(line, "\r\n")
	if !utf8.Valid(line) {
		return "", ErrInvalidEncoding
	}

	return string(line), nil
}
