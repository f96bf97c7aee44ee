package audio

import (
	"encoding/binary"
	"math"
)

// Float32ToBytes packs samples as little-endian IEEE-754 float32.
func Float32ToBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

// BytesToFloat32 is the inverse of Float32ToBytes. Input whose length is not
// a multiple of four yields nil.
func BytesToFloat32(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
