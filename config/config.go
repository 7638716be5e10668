package config

import "time"

type Config struct {
	Target    TargetConfig    `yaml:"target" toml:"target"`
	Timeouts  TimeoutConfig   `yaml:"timeouts" toml:"timeouts"`
	Tokens    TokenConfig     `yaml:"tokens" toml:"tokens"`
	Responder ResponderConfig `yaml:"responder" toml:"responder"`
	Poll      PollConfig      `yaml:"poll" toml:"poll"`
	Monitor   MonitorConfig   `yaml:"monitor" toml:"monitor"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// TargetConfig 描述命令端口与两个数据端口。
// 对请求端：Host 为远端命令地址，数据端口在本机绑定；
// 对应答端：CommandPort 在本机绑定，数据回送到请求方地址的对应端口。
type TargetConfig struct {
	Host         string `yaml:"host" toml:"host"`
	CommandPort  int    `yaml:"command_port" toml:"command_port"`
	SpectrumPort int    `yaml:"spectrum_port" toml:"spectrum_port"`
	MeterPort    int    `yaml:"meter_port" toml:"meter_port"`
}

type TimeoutConfig struct {
	Ack  time.Duration `yaml:"ack" toml:"ack"`
	Data time.Duration `yaml:"data" toml:"data"`
}

type TokenConfig struct {
	Spectrum uint32 `yaml:"spectrum" toml:"spectrum"`
	Meter    uint32 `yaml:"meter" toml:"meter"`
}

type ResponderConfig struct {
	BindHost       string  `yaml:"bind_host" toml:"bind_host"`
	SpectrumPoints int     `yaml:"spectrum_points" toml:"spectrum_points"`
	MeterPoints    int     `yaml:"meter_points" toml:"meter_points"`
	TXMeterPoints  int     `yaml:"tx_meter_points" toml:"tx_meter_points"`
	SpectrumValue  float64 `yaml:"spectrum_value" toml:"spectrum_value"`
	MeterValue     float64 `yaml:"meter_value" toml:"meter_value"`
	DefaultLabel   uint32  `yaml:"default_label" toml:"default_label"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
	Count    int           `yaml:"count" toml:"count"`
	Kinds    []string      `yaml:"kinds" toml:"kinds"`
}

type MonitorConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
}

type LoggingConfig struct {
	Level    string   `yaml:"level" toml:"level"`
	Format   string   `yaml:"format" toml:"format"`
	Output   string   `yaml:"output" toml:"output"`
	FilePath string   `yaml:"file_path" toml:"file_path"`
	MaxSize  ByteSize `yaml:"max_size" toml:"max_size"`
	MaxAge   int      `yaml:"max_age" toml:"max_age"`
	Compress bool     `yaml:"compress" toml:"compress"`
}
