package formats

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	gomath "math"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Container errors.
var (
	ErrEmptyArchive  = errors.New("archive contains no IFC document")
	ErrNestedTooDeep = errors.New("too many nested containers")
	ErrTooLarge      = errors.New("document exceeds size limit")
)

// DefaultMaxDocumentSize caps the unwrapped STEP text.
const DefaultMaxDocumentSize int64 = 2 << 30

// Container identifies how a document was wrapped.
type Container int

const (
	ContainerNone Container = iota // plain STEP text
	ContainerZip                   // ifcZIP
	ContainerGzip
	ContainerZstd
	ContainerLZ4
)

// String returns a human-readable container name.
func (c Container) String() string {
	switch c {
	case ContainerNone:
		return "none"
	case ContainerZip:
		return "zip"
	case ContainerGzip:
		return "gzip"
	case ContainerZstd:
		return "zstd"
	case ContainerLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

const maxContainerDepth = 3

var (
	magicZip  = []byte{'P', 'K', 0x03, 0x04}
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// DetectContainer inspects the leading magic bytes.
func DetectContainer(data []byte) Container {
	switch {
	case bytes.HasPrefix(data, magicZip):
		return ContainerZip
	case bytes.HasPrefix(data, magicGzip):
		return ContainerGzip
	case bytes.HasPrefix(data, magicZstd):
		return ContainerZstd
	case bytes.HasPrefix(data, magicLZ4):
		return ContainerLZ4
	default:
		return ContainerNone
	}
}

// Unwrap strips compression and archive layers until plain text remains.
// It returns the outermost container that was removed. No layer may expand
// beyond maxSize bytes; zero means DefaultMaxDocumentSize.
func Unwrap(data []byte, maxSize int64) ([]byte, Container, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxDocumentSize
	}
	outer := ContainerNone
	for depth := 0; ; depth++ {
		c := DetectContainer(data)
		if c == ContainerNone {
			if int64(len(data)) > maxSize {
				return nil, outer, ErrTooLarge
			}
			return data, outer, nil
		}
		if depth == maxContainerDepth {
			return nil, outer, ErrNestedTooDeep
		}
		if outer == ContainerNone {
			outer = c
		}

		var err error
		data, err = unwrapOne(c, data, maxSize)
		if err != nil {
			return nil, outer, fmt.Errorf("reading %s container: %w", c, err)
		}
	}
}

func unwrapOne(c Container, data []byte, maxSize int64) ([]byte, error) {
	switch c {
	case ContainerZip:
		return readZipDocument(data, maxSize)
	case ContainerGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readLimited(r, maxSize)
	case ContainerZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(maxSize)))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
			return nil, ErrTooLarge
		}
		return out, err
	case ContainerLZ4:
		return readLimited(lz4.NewReader(bytes.NewReader(data)), maxSize)
	}
	return data, nil
}

// readLimited reads r to EOF, failing with ErrTooLarge past maxSize bytes.
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	limit := maxSize
	if limit < gomath.MaxInt64 {
		limit++
	}
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// readZipDocument returns the first .ifc entry of an ifcZIP archive, or the
// first regular file when no entry carries the extension.
func readZipDocument(data []byte, maxSize int64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var chosen *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".ifc") {
			chosen = f
			break
		}
		if chosen == nil {
			chosen = f
		}
	}
	if chosen == nil {
		return nil, ErrEmptyArchive
	}

	if chosen.UncompressedSize64 > uint64(maxSize) {
		return nil, ErrTooLarge
	}

	rc, err := chosen.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", chosen.Name, err)
	}
	defer rc.Close()
	return readLimited(rc, maxSize)
}
