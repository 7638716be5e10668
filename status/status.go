package status

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ResponderStatus string

const (
	ResponderStarting  ResponderStatus = "Starting"
	ResponderListening ResponderStatus = "Listening"
	ResponderStopped   ResponderStatus = "Stopped"
)

// String 返回应答端状态文本。
func (s ResponderStatus) String() string { return string(s) }

// ParseResponderStatus 将文本解析为 ResponderStatus。
// 参数：
// - v: 状态文本（Starting/Listening/Stopped）
// 返回：
// - ResponderStatus: 解析结果
// - error: 未知状态时返回错误
func ParseResponderStatus(v string) (ResponderStatus, error) {
	switch strings.TrimSpace(v) {
	case string(ResponderStarting):
		return ResponderStarting, nil
	case string(ResponderListening):
		return ResponderListening, nil
	case string(ResponderStopped):
		return ResponderStopped, nil
	default:
		return "", fmt.Errorf("unknown ResponderStatus: %q", v)
	}
}

// MarshalJSON 将 ResponderStatus 编码为 JSON 字符串。
func (s ResponderStatus) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// UnmarshalJSON 从 JSON 字符串解码为 ResponderStatus。
func (s *ResponderStatus) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseResponderStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type MonitorStatus string

const (
	MonitorIdle    MonitorStatus = "Idle"
	MonitorLive    MonitorStatus = "Live"
	MonitorStopped MonitorStatus = "Stopped"
)

// String 返回监视器状态文本。
func (s MonitorStatus) String() string { return string(s) }

// ParseMonitorStatus 将文本解析为 MonitorStatus。
func ParseMonitorStatus(v string) (MonitorStatus, error) {
	switch strings.TrimSpace(v) {
	case string(MonitorIdle):
		return MonitorIdle, nil
	case string(MonitorLive):
		return MonitorLive, nil
	case string(MonitorStopped):
		return MonitorStopped, nil
	default:
		return "", fmt.Errorf("unknown MonitorStatus: %q", v)
	}
}

// MarshalJSON 将 MonitorStatus 编码为 JSON 字符串。
func (s MonitorStatus) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// UnmarshalJSON 从 JSON 字符串解码为 MonitorStatus。
func (s *MonitorStatus) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseMonitorStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
