package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go"
	slops "github.com/mus-format/mus-go/options/slice"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"

	"github.com/poiesic/regmap/core"
)

// vectorMUS encodes a vector as a varint length followed by raw float32 values.
var vectorMUS = ord.NewSliceSer[float32](raw.Float32)

// MarshalID serializes an ID to 8 big-endian bytes so keys sort numerically.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("%w: id needs 8 bytes, got %d", ErrTruncatedData, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// MarshalVector serializes a vector to bytes.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, vectorMUS.Size(vector))
	vectorMUS.Marshal(vector, buf)
	return buf
}

// UnmarshalVector deserializes a vector written by MarshalVector.
// The encoded length is checked against the available bytes before
// the vector is allocated.
func UnmarshalVector(data []byte) ([]float32, error) {
	bounded := ord.NewValidSliceSer[float32](raw.Float32,
		slops.WithLenValidator[float32](com.ValidatorFn[int](func(n int) error {
			if n > len(data)/4 {
				return fmt.Errorf("%w: vector of %d values in %d bytes", ErrTruncatedData, n, len(data))
			}
			return nil
		})))

	vector, n, err := bounded.Unmarshal(data)
	switch {
	case errors.Is(err, ErrTruncatedData):
		return nil, err
	case errors.Is(err, mus.ErrTooSmallByteSlice):
		return nil, fmt.Errorf("%w: %w", ErrTruncatedData, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return vector, nil
}
