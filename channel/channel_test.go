package channel

import (
	"net"
	"testing"
	"time"

	pferrors "portfetch/errors"
	"portfetch/ports"

	"github.com/stretchr/testify/require"
)

// listenLoopback 绑定一个 127.0.0.1 上的临时 UDP 端口（用于测试）。
func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	c, err := ports.Listen("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// replyOnce 在 peer 上收到一条数据报后回送 reply，并把收到的内容发到 got。
func replyOnce(peer *net.UDPConn, reply []byte, got chan<- []byte) {
	buf := make([]byte, 1024)
	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, from, err := peer.ReadFromUDP(buf)
	if err != nil {
		close(got)
		return
	}
	got <- append([]byte(nil), buf[:n]...)
	if reply != nil {
		_, _ = peer.WriteToUDP(reply, from)
	}
}

func TestSendAndAwaitAckOK(t *testing.T) {
	local := listenLoopback(t)
	peer := listenLoopback(t)
	got := make(chan []byte, 1)
	go replyOnce(peer, []byte("ok"), got)

	cmd := NewCommand(local, peer.LocalAddr().(*net.UDPAddr))
	require.NoError(t, cmd.SendAndAwaitAck([]byte("reqMeter 1\n"), time.Second))
	require.Equal(t, "reqMeter 1\n", string(<-got))
}

func TestSendAndAwaitAckNack(t *testing.T) {
	local := listenLoopback(t)
	peer := listenLoopback(t)
	got := make(chan []byte, 1)
	go replyOnce(peer, []byte("no"), got)

	cmd := NewCommand(local, peer.LocalAddr().(*net.UDPAddr))
	err := cmd.SendAndAwaitAck([]byte("reqMeter 1\n"), time.Second)
	require.Error(t, err)
	require.Equal(t, pferrors.CodeNack, pferrors.Code(err))
}

func TestSendAndAwaitAckTimeout(t *testing.T) {
	local := listenLoopback(t)
	peer := listenLoopback(t)
	got := make(chan []byte, 1)
	go replyOnce(peer, nil, got)

	cmd := NewCommand(local, peer.LocalAddr().(*net.UDPAddr))
	start := time.Now()
	err := cmd.SendAndAwaitAck([]byte("reqSpectrum 1\n"), 150*time.Millisecond)
	elapsed := time.Since(start)
	require.Equal(t, pferrors.CodeAckTimeout, pferrors.Code(err))
	require.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	require.Less(t, elapsed, time.Second)
}

func TestAwaitPayload(t *testing.T) {
	local := listenLoopback(t)
	sender := listenLoopback(t)
	data := NewData(local)

	payload := make([]byte, 8+4096*8)
	payload[0] = 0xAB
	_, err := sender.WriteToUDP(payload, data.LocalAddr())
	require.NoError(t, err)

	got, from, err := data.AwaitPayload(time.Second)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Equal(t, ports.LocalPort(sender), from.Port)
}

func TestAwaitPayloadTimeout(t *testing.T) {
	data := NewData(listenLoopback(t))
	start := time.Now()
	_, _, err := data.AwaitPayload(100 * time.Millisecond)
	require.Equal(t, pferrors.CodeDataTimeout, pferrors.Code(err))
	require.Equal(t, pferrors.StageDataTimeout, pferrors.Stage(err))
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
