package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"portfetch/config"

	"github.com/stretchr/testify/require"
)

// TestInitJSONAddsRuntimeFields 验证 JSON 格式下 Hook 补齐 goid/ts_ms 字段。
func TestInitJSONAddsRuntimeFields(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.Format = "json"
	cfg.Level = "debug"
	require.NoError(t, Init(cfg))

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	With(map[string]any{"port": 19001}).Info("ready")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "ready", line["msg"])
	require.EqualValues(t, 19001, line["port"])
	require.Contains(t, line, "goid")
	require.Contains(t, line, "ts_ms")
}

// TestInitFileOutput 验证 file 输出会创建日志目录并写入文件。
func TestInitFileOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig().Logging
	cfg.Output = "file"
	cfg.FilePath = filepath.Join(dir, "nested", "fetch.log")
	require.NoError(t, Init(cfg))
	defer func() {
		cfg.Output = "console"
		_ = Init(cfg)
	}()

	L().Info("to file")
	raw, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	require.Contains(t, string(raw), "to file")
}

// TestComponentField 验证 component 字段会自动附加，显式字段优先。
func TestComponentField(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.Format = "json"
	require.NoError(t, Init(cfg))
	SetComponent("slippers")
	defer SetComponent("")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	L().Info("listening")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "slippers", line["component"])

	buf.Reset()
	With(map[string]any{"component": "monitor"}).Info("override")
	line = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "monitor", line["component"])

	buf.Reset()
	SetComponent("")
	L().Info("plain")
	line = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.NotContains(t, line, "component")
}
