// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// zlibMarker is the first byte of a zlib stream using deflate with a
// 32 KiB window (CMF = 0x78), the only form issuers produce.
const zlibMarker = 0x78

// maxInflatedSize bounds decompression. Real envelopes are a few
// hundred bytes; anything past this is a decompression bomb.
const maxInflatedSize = 1 << 20

// Deflate zlib-compresses data at the best compression level.
func Deflate(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer, err := zlib.NewWriterLevel(&buffer, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buffer.Bytes(), nil
}

// Inflate decompresses a zlib stream.
func Inflate(compressed []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib header: %v", ErrMalformedToken, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxInflatedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib decompress: %v", ErrMalformedToken, err)
	}
	if len(data) > maxInflatedSize {
		return nil, fmt.Errorf("%w: inflated envelope exceeds %d bytes", ErrMalformedToken, maxInflatedSize)
	}
	return data, nil
}

// IsDeflated reports whether data starts with the zlib marker byte.
func IsDeflated(data []byte) bool {
	return len(data) > 0 && data[0] == zlibMarker
}
