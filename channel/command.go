package channel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	pferrors "portfetch/errors"
	"portfetch/packet"
)

// ackBufSize 足够容纳 "ok" 及任何误发的短数据报。
const ackBufSize = 512

// Command 是命令通道：向远端命令端口发送一条命令并等待确认。
// conn 为未连接 socket，避免 ICMP 端口不可达把等待提前打断。
type Command struct {
	conn   *net.UDPConn
	target *net.UDPAddr
	buf    []byte
}

// NewCommand 创建命令通道。
// 参数：
// - conn: 本地已绑定的 UDP socket（由调用方持有生命周期）
// - target: 远端命令端口地址
func NewCommand(conn *net.UDPConn, target *net.UDPAddr) *Command {
	return &Command{conn: conn, target: target, buf: make([]byte, ackBufSize)}
}

// Target 返回远端命令地址。
func (c *Command) Target() *net.UDPAddr { return c.target }

// SendAndAwaitAck 发送一条命令数据报，并在 timeout 内等待确认。
// 说明：不做重试，重试策略由调用方决定。
// 参数：
// - cmd: 命令字节（通常为 "<verb> <token>\n"）
// - timeout: 等待确认的最长时间
// 返回：
// - error: CodeSendFailed（发送失败）/ CodeAckTimeout（超时无回应）/ CodeNack（回应不是 "ok"）
func (c *Command) SendAndAwaitAck(cmd []byte, timeout time.Duration) error {
	if _, err := c.conn.WriteToUDP(cmd, c.target); err != nil {
		return pferrors.Wrap(pferrors.CodeSendFailed, "send command", err)
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return pferrors.Wrap(pferrors.CodeInternal, "set ack deadline", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	n, _, err := c.conn.ReadFromUDP(c.buf)
	if err != nil {
		if isTimeout(err) {
			return pferrors.Wrap(pferrors.CodeAckTimeout, "late or missing ack", err)
		}
		return pferrors.Wrap(pferrors.CodeInternal, "read ack", err)
	}
	if !packet.IsAck(c.buf[:n]) {
		return pferrors.Wrap(pferrors.CodeNack, "command failed", fmt.Errorf("ack=%q", c.buf[:n]))
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
