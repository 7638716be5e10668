package packet

import (
	"encoding/binary"
	"fmt"
	"math"

	pferrors "portfetch/errors"
)

const (
	SpectrumHeaderSize = 8
	MeterHeaderSize    = 4
	SampleSize         = 8
)

// Spectrum 是一帧频谱快照：[label:u32][tick:u32][f64 * N]。
type Spectrum struct {
	Label   uint32
	Tick    uint32
	Samples []float64
}

// Meter 是一组表计读数：[label:u32][f64 * M]。
type Meter struct {
	Label    uint32
	Readings []float64
}

// EncodeSpectrum 编码频谱包（小端，原生宽度）。
func EncodeSpectrum(label, tick uint32, samples []float64) []byte {
	b := make([]byte, SpectrumHeaderSize+len(samples)*SampleSize)
	binary.LittleEndian.PutUint32(b[0:], label)
	binary.LittleEndian.PutUint32(b[4:], tick)
	putFloats(b[SpectrumHeaderSize:], samples)
	return b
}

// DecodeSpectrum 解码频谱包。
// 返回：
// - Spectrum: 解码结果
// - error: 长度不足 8 或样本区不是 8 的整数倍时返回 CodeMalformedPacket
func DecodeSpectrum(b []byte) (Spectrum, error) {
	if err := checkLength(b, SpectrumHeaderSize); err != nil {
		return Spectrum{}, err
	}
	return Spectrum{
		Label:   binary.LittleEndian.Uint32(b[0:]),
		Tick:    binary.LittleEndian.Uint32(b[4:]),
		Samples: getFloats(b[SpectrumHeaderSize:]),
	}, nil
}

// EncodeMeter 编码表计包。
func EncodeMeter(label uint32, readings []float64) []byte {
	b := make([]byte, MeterHeaderSize+len(readings)*SampleSize)
	binary.LittleEndian.PutUint32(b[0:], label)
	putFloats(b[MeterHeaderSize:], readings)
	return b
}

// DecodeMeter 解码表计包。
// 返回：
// - Meter: 解码结果
// - error: 长度不足 4 或读数区不是 8 的整数倍时返回 CodeMalformedPacket
func DecodeMeter(b []byte) (Meter, error) {
	if err := checkLength(b, MeterHeaderSize); err != nil {
		return Meter{}, err
	}
	return Meter{
		Label:    binary.LittleEndian.Uint32(b[0:]),
		Readings: getFloats(b[MeterHeaderSize:]),
	}, nil
}

func checkLength(b []byte, header int) error {
	if len(b) < header {
		return pferrors.Wrap(pferrors.CodeMalformedPacket, "payload shorter than header",
			fmt.Errorf("len=%d header=%d", len(b), header))
	}
	if (len(b)-header)%SampleSize != 0 {
		return pferrors.Wrap(pferrors.CodeMalformedPacket, "ragged sample block",
			fmt.Errorf("len=%d header=%d", len(b), header))
	}
	return nil
}

func putFloats(dst []byte, vals []float64) {
	for i, v := range vals {
		binary.LittleEndian.PutUint64(dst[i*SampleSize:], math.Float64bits(v))
	}
}

func getFloats(src []byte) []float64 {
	out := make([]float64, len(src)/SampleSize)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*SampleSize:]))
	}
	return out
}
