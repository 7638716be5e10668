package slippers

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"portfetch/config"
	"portfetch/doggie"
	pferrors "portfetch/errors"
	"portfetch/packet"
	"portfetch/ports"
	"portfetch/status"

	"github.com/stretchr/testify/require"
)

// startResponder 启动一个参考应答端，测试结束时取消并等待退出。
func startResponder(t *testing.T, opts Options) *Responder {
	t.Helper()
	r, err := New(opts, NewSynthetic(config.DefaultConfig().Responder))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- r.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-served:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Errorf("responder did not stop")
		}
		require.Equal(t, status.ResponderStopped, r.Status())
	})
	waitFor(t, time.Second, func() bool { return r.Status() == status.ResponderListening })
	return r
}

func newRequester(t *testing.T, cmdPort, specPort, meterPort int) *doggie.Requester {
	t.Helper()
	d, err := doggie.New(doggie.Options{
		Target:       ports.Endpoint{Host: "127.0.0.1", Port: cmdPort},
		SpectrumPort: specPort,
		MeterPort:    meterPort,
		AckTimeout:   time.Second,
		DataTimeout:  time.Second,
	})
	require.NoError(t, err)
	return d
}

// TestEndToEndFixedPorts 在 19101/19102/19103 上完成频谱与表计取数。
func TestEndToEndFixedPorts(t *testing.T) {
	startResponder(t, Options{CommandPort: 19101, SpectrumPort: 19102, MeterPort: 19103, DefaultLabel: config.DefaultLabel})

	d1 := newRequester(t, 19101, 19102, 19103)
	spec, err := d1.FetchSpectrum(0xDEADBEEF)
	require.NoError(t, err)
	require.Len(t, spec.Samples, 4096)
	require.Equal(t, uint32(0), spec.Tick)
	require.Equal(t, uint32(0xDEADBEEF), spec.Label)
	for _, v := range spec.Samples {
		require.Equal(t, -math.Pi, v)
	}

	meter, err := d1.FetchMeter(config.DefaultMeterToken)
	require.NoError(t, err)
	require.Len(t, meter.Readings, 20)
	for _, v := range meter.Readings {
		require.Equal(t, math.E, v)
	}
	require.NoError(t, d1.Close())

	// 另一个请求端复用同样的数据端口，tick 继续递增
	d2 := newRequester(t, 19101, 19102, 19103)
	defer d2.Close()
	spec, err = d2.FetchSpectrum(0xDEADBEEF)
	require.NoError(t, err)
	require.Equal(t, uint32(1), spec.Tick)
	spec, err = d2.FetchSpectrum(1)
	require.NoError(t, err)
	require.Equal(t, uint32(2), spec.Tick)
	require.Equal(t, uint32(1), spec.Label)
}

// TestTXMeterAndDefaultLabel 验证 reqMeter 的 TRX 字段与缺省 label。
func TestTXMeterAndDefaultLabel(t *testing.T) {
	cmdPort, specPort, meterPort := freeUDPPort(t), freeUDPPort(t), freeUDPPort(t)
	startResponder(t, Options{CommandPort: cmdPort, SpectrumPort: specPort, MeterPort: meterPort, DefaultLabel: config.DefaultLabel})

	d := newRequester(t, cmdPort, specPort, meterPort)
	tx, err := d.FetchTXMeter(77)
	require.NoError(t, err)
	require.Len(t, tx.Readings, 10)
	require.Equal(t, uint32(77), tx.Label)
	require.NoError(t, d.Close())

	meterConn := dataListener(t, meterPort)
	sock := udpClient(t)
	require.Equal(t, "ok", sendCommand(t, sock, cmdPort, "reqMeter\n"))

	require.NoError(t, meterConn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 1024)
	n, _, err := meterConn.ReadFromUDP(buf)
	require.NoError(t, err)
	m, err := packet.DecodeMeter(buf[:n])
	require.NoError(t, err)
	require.Equal(t, uint32(config.DefaultLabel), m.Label)
	require.Len(t, m.Readings, 20)
}

// TestUnknownCommandAckedButIgnored 验证未知命令仍回 ok，但任何数据端口都收不到载荷。
func TestUnknownCommandAckedButIgnored(t *testing.T) {
	cmdPort, specPort, meterPort := freeUDPPort(t), freeUDPPort(t), freeUDPPort(t)
	r := startResponder(t, Options{CommandPort: cmdPort, SpectrumPort: specPort, MeterPort: meterPort})

	specConn := dataListener(t, specPort)
	meterConn := dataListener(t, meterPort)

	sock := udpClient(t)
	require.Equal(t, "ok", sendCommand(t, sock, cmdPort, "reqBogus 1\n"))
	require.Equal(t, "ok", sendCommand(t, sock, cmdPort, "reqSpectrum notanumber\n"))

	deadline := time.Now().Add(500 * time.Millisecond)
	for _, c := range []*net.UDPConn{specConn, meterConn} {
		require.NoError(t, c.SetReadDeadline(deadline))
		buf := make([]byte, 64)
		_, _, err := c.ReadFromUDP(buf)
		require.Error(t, err, "unexpected payload")
	}
	require.Equal(t, uint32(0), r.Tick())
}

// TestSendFailureDoesNotStopLoop 验证无人接收数据时应答端继续工作。
func TestSendFailureDoesNotStopLoop(t *testing.T) {
	cmdPort, specPort, meterPort := freeUDPPort(t), freeUDPPort(t), freeUDPPort(t)
	r := startResponder(t, Options{CommandPort: cmdPort, SpectrumPort: specPort, MeterPort: meterPort})

	sock := udpClient(t)
	for i := 0; i < 3; i++ {
		require.Equal(t, "ok", sendCommand(t, sock, cmdPort, "reqSpectrum 5\n"))
	}
	waitFor(t, time.Second, func() bool { return r.Tick() == 3 })

	d := newRequester(t, cmdPort, specPort, meterPort)
	defer d.Close()
	spec, err := d.FetchSpectrum(5)
	require.NoError(t, err)
	require.Equal(t, uint32(3), spec.Tick)
	require.Equal(t, status.ResponderListening, r.Status())
}

// TestBindConflict 验证命令端口被占用时返回 SocketBindFailure。
func TestBindConflict(t *testing.T) {
	busy, err := ports.Listen("", 0)
	require.NoError(t, err)
	defer busy.Close()

	_, err = New(Options{CommandPort: ports.LocalPort(busy), SpectrumPort: 1, MeterPort: 2}, Synthetic{})
	require.Error(t, err)
	require.Equal(t, pferrors.CodeSocketBind, pferrors.Code(err))

	_, err = New(Options{CommandPort: freeUDPPort(t)}, nil)
	require.Equal(t, pferrors.CodeBadRequest, pferrors.Code(err))
}

// TestSyntheticSource 验证常量载荷源的长度与取值。
func TestSyntheticSource(t *testing.T) {
	src := NewSynthetic(config.DefaultConfig().Responder)
	require.Len(t, src.Spectrum(1), 4096)
	require.Len(t, src.Meter(1, false), 20)
	require.Len(t, src.Meter(1, true), 10)
	require.Equal(t, math.E, src.Meter(1, true)[9])
	b := packet.EncodeSpectrum(0, 0, src.Spectrum(0))
	require.LessOrEqual(t, len(b), config.MaxDatagram)
}

// TestReadBackoff 验证连续读取失败时等待时间倍增并封顶。
func TestReadBackoff(t *testing.T) {
	require.Equal(t, 10*time.Millisecond, readBackoff(1))
	require.Equal(t, 20*time.Millisecond, readBackoff(2))
	require.Equal(t, 80*time.Millisecond, readBackoff(4))
	require.Equal(t, time.Second, readBackoff(8))
	require.Equal(t, time.Second, readBackoff(1000))
}

// freeUDPPort 获取一个可用的临时 UDP 端口（用于测试）。
func freeUDPPort(t *testing.T) int {
	t.Helper()
	c, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	require.NoError(t, err)
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).Port
}

func udpClient(t *testing.T) *net.UDPConn {
	t.Helper()
	c, err := ports.Listen("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func dataListener(t *testing.T, port int) *net.UDPConn {
	t.Helper()
	c, err := ports.Listen("", port)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// sendCommand 发送一条原始命令并返回 ack 内容。
func sendCommand(t *testing.T, c *net.UDPConn, port int, cmd string) string {
	t.Helper()
	_, err := c.WriteToUDP([]byte(cmd), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 16)
	n, _, err := c.ReadFromUDP(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

// waitFor 在超时时间内轮询等待条件成立。
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout")
}
