package packet

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind 选择请求的载荷类型：决定命令动词与解码器。
type Kind string

const (
	KindSpectrum Kind = "spectrum"
	KindMeter    Kind = "meter"
)

const (
	VerbSpectrum = "reqSpectrum"
	VerbMeter    = "reqMeter"
)

// String 返回载荷类型文本。
func (k Kind) String() string { return string(k) }

// Verb 返回该载荷类型对应的命令动词。
func (k Kind) Verb() string {
	switch k {
	case KindSpectrum:
		return VerbSpectrum
	case KindMeter:
		return VerbMeter
	default:
		return ""
	}
}

// ParseKind 将文本解析为 Kind（大小写不敏感）。
// 参数：
// - v: spectrum/meter
// 返回：
// - Kind: 解析结果
// - error: 未知类型时返回错误
func ParseKind(v string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(KindSpectrum):
		return KindSpectrum, nil
	case string(KindMeter):
		return KindMeter, nil
	default:
		return "", fmt.Errorf("unknown Kind: %q", v)
	}
}

// MarshalJSON 将 Kind 编码为 JSON 字符串。
func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(string(k)) }

// UnmarshalJSON 从 JSON 字符串解码为 Kind。
func (k *Kind) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseKind(v)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
