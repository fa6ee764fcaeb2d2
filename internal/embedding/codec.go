// Package embedding encodes face embeddings into versioned byte blobs for storage.
//
// Blob layout (little endian):
//
//	[version:1][dim:4][dim x float32:4]
//
// The version byte names the face strategy that produced the vector. A codec only
// decodes blobs carrying its own version, so vectors from different strategies are
// never compared.
package embedding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Strategy versions written into the leading byte of every blob.
const (
	VersionFaceService byte = 1
	VersionHistogram   byte = 2
)

const headerSize = 1 + 4

// Sentinels matched by errors.Is on a *DecodeError.
var (
	ErrCorrupt         = errors.New("embedding blob corrupt")
	ErrVersionMismatch = errors.New("embedding version mismatch")
)

// DecodeError reports why a blob could not be decoded.
type DecodeError struct {
	Kind   error
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

// Is matches the error kind.
func (e *DecodeError) Is(target error) bool {
	return target == e.Kind
}

func corrupt(format string, args ...any) error {
	return &DecodeError{Kind: ErrCorrupt, Reason: fmt.Sprintf(format, args...)}
}

// Codec encodes and decodes embeddings for one strategy version.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	version byte
}

// NewCodec returns a codec bound to version.
func NewCodec(version byte) Codec {
	return Codec{version: version}
}

// Version returns the strategy version this codec writes and accepts.
func (c Codec) Version() byte {
	return c.version
}

// Encode serializes vector. It never fails.
func (c Codec) Encode(vector []float32) []byte {
	buf := make([]byte, headerSize+4*len(vector))
	buf[0] = c.version
	binary.LittleEndian.PutUint32(buf[1:headerSize], uint32(len(vector))) //nolint:gosec // embedding dims are small

	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(v))
	}

	return buf
}

// Decode parses a blob produced by Encode with the same version.
// Errors wrap ErrCorrupt or ErrVersionMismatch.
func (c Codec) Decode(blob []byte) ([]float32, error) {
	if len(blob) < headerSize {
		return nil, corrupt("blob has %d bytes, header needs %d", len(blob), headerSize)
	}

	if blob[0] != c.version {
		return nil, &DecodeError{
			Kind:   ErrVersionMismatch,
			Reason: fmt.Sprintf("blob version %d, codec version %d", blob[0], c.version),
		}
	}

	dim := binary.LittleEndian.Uint32(blob[1:headerSize])

	payload := blob[headerSize:]
	if uint64(len(payload)) != uint64(dim)*4 {
		return nil, corrupt("dimension %d needs %d payload bytes, got %d", dim, uint64(dim)*4, len(payload))
	}

	vector := make([]float32, dim)
	for i := range vector {
		v := math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, corrupt("non-finite value at index %d", i)
		}

		vector[i] = v
	}

	return vector, nil
}

// PeekVersion returns the version byte of blob without decoding it.
func PeekVersion(blob []byte) (byte, bool) {
	if len(blob) == 0 {
		return 0, false
	}

	return blob[0], true
}
