package embedding

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec(VersionFaceService)
	rng := rand.New(rand.NewPCG(1, 2))

	for _, dim := range []int{1, 3, 128, 512} {
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = rng.Float32()*2 - 1
		}

		blob := codec.Encode(vec)
		assert.Len(t, blob, headerSize+4*dim)

		got, err := codec.Decode(blob)
		require.NoError(t, err)
		assert.Equal(t, vec, got)
	}

	t.Run("empty vector", func(t *testing.T) {
		got, err := codec.Decode(codec.Encode([]float32{}))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("extreme finite values survive bit-exactly", func(t *testing.T) {
		vec := []float32{math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32, 0, float32(math.Copysign(0, -1))}

		got, err := codec.Decode(codec.Encode(vec))
		require.NoError(t, err)

		for i := range vec {
			assert.Equal(t, math.Float32bits(vec[i]), math.Float32bits(got[i]), "index %d", i)
		}
	})
}

func TestCodec_DecodeErrors(t *testing.T) {
	codec := NewCodec(VersionFaceService)
	valid := codec.Encode([]float32{0.1, 0.2, 0.3})

	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{name: "empty", blob: nil, want: ErrCorrupt},
		{name: "short header", blob: valid[:3], want: ErrCorrupt},
		{name: "truncated payload", blob: valid[:len(valid)-1], want: ErrCorrupt},
		{name: "trailing bytes", blob: append(append([]byte{}, valid...), 0), want: ErrCorrupt},
		{name: "dimension larger than payload", blob: []byte{VersionFaceService, 9, 0, 0, 0, 1, 2, 3, 4}, want: ErrCorrupt},
		{name: "other strategy", blob: NewCodec(VersionHistogram).Encode([]float32{1}), want: ErrVersionMismatch},
		{name: "nan payload", blob: NewCodec(VersionFaceService).Encode([]float32{float32(math.NaN())}), want: ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decode(tt.blob)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.want)

			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestPeekVersion(t *testing.T) {
	v, ok := PeekVersion(NewCodec(VersionHistogram).Encode([]float32{1, 2}))
	assert.True(t, ok)
	assert.Equal(t, VersionHistogram, v)

	_, ok = PeekVersion(nil)
	assert.False(t, ok)
}
