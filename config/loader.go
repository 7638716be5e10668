package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MaxDatagram 为单个 UDP 数据报的最大有效载荷（IPv4）。
const MaxDatagram = 65507

// Load 从 YAML 或 TOML 文件读取并解析配置，并做基础校验与默认值补齐。
// 参数：
// - path: 配置文件路径（扩展名为 .toml 时按 TOML 解析，其余按 YAML）
// 返回：
// - Config: 合并默认值后的配置
// - error: 读取/解析/校验失败原因
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(raw), &cfg); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}
	cfg = normalize(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize 补齐可以安全缺省的字段。
func normalize(cfg Config) Config {
	if strings.TrimSpace(cfg.Target.Host) == "" {
		cfg.Target.Host = DefaultHost
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "console"
	}
	return cfg
}

// Validate 校验配置字段合法性（端口、超时、载荷大小、日志输出等）。
// 参数：
// - cfg: 待校验配置
// 返回：
// - error: 校验失败原因
func Validate(cfg Config) error {
	for name, p := range map[string]int{
		"target.command_port":  cfg.Target.CommandPort,
		"target.spectrum_port": cfg.Target.SpectrumPort,
		"target.meter_port":    cfg.Target.MeterPort,
	} {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid %s: %d", name, p)
		}
	}
	if cfg.Timeouts.Ack <= 0 {
		return fmt.Errorf("invalid timeouts.ack: %s", cfg.Timeouts.Ack)
	}
	if cfg.Timeouts.Data <= 0 {
		return fmt.Errorf("invalid timeouts.data: %s", cfg.Timeouts.Data)
	}
	r := cfg.Responder
	if r.SpectrumPoints <= 0 || 8+8*r.SpectrumPoints > MaxDatagram {
		return fmt.Errorf("invalid responder.spectrum_points: %d", r.SpectrumPoints)
	}
	if r.MeterPoints <= 0 || 4+8*r.MeterPoints > MaxDatagram {
		return fmt.Errorf("invalid responder.meter_points: %d", r.MeterPoints)
	}
	if r.TXMeterPoints <= 0 || 4+8*r.TXMeterPoints > MaxDatagram {
		return fmt.Errorf("invalid responder.tx_meter_points: %d", r.TXMeterPoints)
	}
	if cfg.Poll.Interval <= 0 {
		return fmt.Errorf("invalid poll.interval: %s", cfg.Poll.Interval)
	}
	if cfg.Poll.Count < 0 {
		return fmt.Errorf("invalid poll.count: %d", cfg.Poll.Count)
	}
	for _, k := range cfg.Poll.Kinds {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "spectrum", "meter":
		default:
			return fmt.Errorf("invalid poll.kinds entry: %q", k)
		}
	}
	switch strings.ToLower(cfg.Logging.Output) {
	case "console", "":
	case "file":
		if cfg.Logging.FilePath == "" {
			return fmt.Errorf("logging.file_path is required when output=file")
		}
	default:
		return fmt.Errorf("invalid logging.output: %q", cfg.Logging.Output)
	}
	return nil
}
