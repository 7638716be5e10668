package slippers

import "portfetch/config"

// Source 生成（或从真实电台后端取得）应答载荷。
type Source interface {
	Spectrum(label uint32) []float64
	Meter(label uint32, tx bool) []float64
}

// Synthetic 是参考应答端使用的常量载荷源。
type Synthetic struct {
	SpectrumPoints int
	MeterPoints    int
	TXMeterPoints  int
	SpectrumValue  float64
	MeterValue     float64
}

// NewSynthetic 由应答端配置生成常量载荷源（默认 4096 个 -π，20/10 个 e）。
func NewSynthetic(cfg config.ResponderConfig) Synthetic {
	return Synthetic{
		SpectrumPoints: cfg.SpectrumPoints,
		MeterPoints:    cfg.MeterPoints,
		TXMeterPoints:  cfg.TXMeterPoints,
		SpectrumValue:  cfg.SpectrumValue,
		MeterValue:     cfg.MeterValue,
	}
}

func (s Synthetic) Spectrum(uint32) []float64 { return fill(s.SpectrumPoints, s.SpectrumValue) }

func (s Synthetic) Meter(_ uint32, tx bool) []float64 {
	if tx {
		return fill(s.TXMeterPoints, s.MeterValue)
	}
	return fill(s.MeterPoints, s.MeterValue)
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
