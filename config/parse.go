package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost          = "localhost"
	DefaultCommandPort   = 19001
	DefaultSpectrumPort  = 19002
	DefaultMeterPort     = 19003
	DefaultSpectrumToken = 4277009102
	DefaultMeterToken    = 3735928559
	DefaultLabel         = 3405705229
)

type ByteSize int64

// Int64 返回字节数的 int64 表达。
func (b ByteSize) Int64() int64 { return int64(b) }

// UnmarshalYAML 支持从 YAML 中解析 ByteSize（如 100MB、2GB、1024B）。
// 参数：
// - value: YAML 节点
// 返回：
// - error: 解析失败原因
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*b = 0
		return nil
	}
	return b.UnmarshalText([]byte(value.Value))
}

// UnmarshalText 支持 TOML 等基于文本的解码器（max_size = "10MB"）。
func (b *ByteSize) UnmarshalText(text []byte) error {
	v := strings.TrimSpace(string(text))
	if v == "" {
		*b = 0
		return nil
	}
	n, err := parseByteSize(v)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// parseByteSize 解析形如 "100MB"/"1.5GB" 的字节数文本。
// 参数：
// - s: 字节数文本
// 返回：
// - int64: 字节数
// - error: 解析失败原因
func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "KB"):
		mult = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "MB"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "GB"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}
	return int64(f * float64(mult)), nil
}

// ParsePort 解析命令行中的端口参数。
// 参数：
// - s: 端口文本
// 返回：
// - int: 端口号（1-65535）
// - error: 非数字或越界
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port: %q", s)
	}
	if p <= 0 || p > 65535 {
		return 0, fmt.Errorf("invalid port: %d", p)
	}
	return p, nil
}

// ApplyArgs 将命令行位置参数 [host cmd-port spec-data-port meter-data-port] 覆盖到配置上。
// 参数：
// - cfg: 待覆盖配置
// - args: 位置参数，长度必须为 0 或 4
// 返回：
// - Config: 覆盖后的配置
// - error: 参数个数错误或端口非法
func ApplyArgs(cfg Config, args []string) (Config, error) {
	switch len(args) {
	case 0:
		return cfg, nil
	case 4:
	default:
		return cfg, fmt.Errorf("expected 0 or 4 arguments, got %d", len(args))
	}
	host := strings.TrimSpace(args[0])
	if host == "" {
		return cfg, fmt.Errorf("empty host")
	}
	ports := make([]int, 3)
	for i, a := range args[1:] {
		p, err := ParsePort(a)
		if err != nil {
			return cfg, err
		}
		ports[i] = p
	}
	cfg.Target = TargetConfig{
		Host:         host,
		CommandPort:  ports[0],
		SpectrumPort: ports[1],
		MeterPort:    ports[2],
	}
	return cfg, nil
}

// DefaultConfig 返回一份可用的默认配置。
func DefaultConfig() Config {
	return Config{
		Target: TargetConfig{
			Host:         DefaultHost,
			CommandPort:  DefaultCommandPort,
			SpectrumPort: DefaultSpectrumPort,
			MeterPort:    DefaultMeterPort,
		},
		Timeouts: TimeoutConfig{
			Ack:  1 * time.Second,
			Data: 1 * time.Second,
		},
		Tokens: TokenConfig{
			Spectrum: DefaultSpectrumToken,
			Meter:    DefaultMeterToken,
		},
		Responder: ResponderConfig{
			BindHost:       "",
			SpectrumPoints: 4096,
			MeterPoints:    20,
			TXMeterPoints:  10,
			SpectrumValue:  -math.Pi,
			MeterValue:     math.E,
			DefaultLabel:   DefaultLabel,
		},
		Poll: PollConfig{
			Interval: time.Second / 15,
			Count:    15,
			Kinds:    []string{"spectrum", "meter"},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "console",
			FilePath: "logs/portfetch.log",
			MaxSize:  ByteSize(10 * 1024 * 1024),
			MaxAge:   7,
			Compress: true,
		},
	}
}
