package terrain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Encoded layout before compression (little endian):
//
//	magic   [4]byte "THF1"
//	width   uint32
//	height  uint32
//	min     float32
//	max     float32
//	values  [width*height]float32
var heightFieldMagic = [4]byte{'T', 'H', 'F', '1'}

const heightFieldHeaderSize = 4 + 4*4

var ErrCorruptHeightField = errors.New("corrupt height field encoding")

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// EncodeAll/DecodeAll are safe for concurrent use, so one pair serves
// every worker.
func initCodec() {
	encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if codecErr != nil {
		return
	}
	decoder, codecErr = zstd.NewReader(nil)
}

// EncodeHeightField serializes and zstd-compresses hf.
func EncodeHeightField(hf *HeightField) ([]byte, error) {
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, fmt.Errorf("init zstd: %w", codecErr)
	}
	if hf.Width*hf.Height != len(hf.Values) {
		return nil, fmt.Errorf("%w: %dx%d with %d values", ErrCorruptHeightField, hf.Width, hf.Height, len(hf.Values))
	}

	raw := make([]byte, heightFieldHeaderSize+4*len(hf.Values))
	copy(raw, heightFieldMagic[:])
	binary.LittleEndian.PutUint32(raw[4:], uint32(hf.Width))
	binary.LittleEndian.PutUint32(raw[8:], uint32(hf.Height))
	binary.LittleEndian.PutUint32(raw[12:], math.Float32bits(hf.Min))
	binary.LittleEndian.PutUint32(raw[16:], math.Float32bits(hf.Max))
	off := heightFieldHeaderSize
	for _, v := range hf.Values {
		binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(v))
		off += 4
	}

	return encoder.EncodeAll(raw, nil), nil
}

// DecodeHeightField reverses EncodeHeightField.
func DecodeHeightField(data []byte) (*HeightField, error) {
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, fmt.Errorf("init zstd: %w", codecErr)
	}
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptHeightField, err)
	}
	if len(raw) < heightFieldHeaderSize || !bytes.Equal(raw[:4], heightFieldMagic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptHeightField)
	}

	width := int(binary.LittleEndian.Uint32(raw[4:]))
	height := int(binary.LittleEndian.Uint32(raw[8:]))
	if len(raw) != heightFieldHeaderSize+4*width*height {
		return nil, fmt.Errorf("%w: %dx%d does not match %d bytes", ErrCorruptHeightField, width, height, len(raw))
	}

	values := make([]float32, width*height)
	off := heightFieldHeaderSize
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
	}
	return &HeightField{
		Width:  width,
		Height: height,
		Values: values,
		Min:    math.Float32frombits(binary.LittleEndian.Uint32(raw[12:])),
		Max:    math.Float32frombits(binary.LittleEndian.Uint32(raw[16:])),
	}, nil
}
