package status

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestResponderStatusJSON 验证应答端状态的 JSON 编解码与非法值拒绝。
func TestResponderStatusJSON(t *testing.T) {
	for _, s := range []ResponderStatus{ResponderStarting, ResponderListening, ResponderStopped} {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		var got ResponderStatus
		require.NoError(t, json.Unmarshal(b, &got))
		require.Equal(t, s, got)
	}
	var bad ResponderStatus
	require.Error(t, json.Unmarshal([]byte(`"Sleeping"`), &bad))
	require.Error(t, json.Unmarshal([]byte(`7`), &bad))
}

// TestMonitorStatusParse 验证监视器状态解析。
func TestMonitorStatusParse(t *testing.T) {
	s, err := ParseMonitorStatus(" Live ")
	require.NoError(t, err)
	require.Equal(t, MonitorLive, s)
	require.Equal(t, "Live", s.String())
	_, err = ParseMonitorStatus("live")
	require.Error(t, err)
}
