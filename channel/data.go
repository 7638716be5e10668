package channel

import (
	"net"
	"time"

	pferrors "portfetch/errors"
)

// DataBufSize 与 SDR 端口客户端的缓冲一致，足以容纳任意 UDP 数据报，
// 4096 点频谱（32776 字节）不会被截断。
const DataBufSize = 65536

// Data 是数据通道：在本地数据端口上等待一个完整载荷数据报。
type Data struct {
	conn *net.UDPConn
	buf  []byte
}

// NewData 创建数据通道。
// 参数：
// - conn: 本地已绑定的数据端口 socket
func NewData(conn *net.UDPConn) *Data {
	return &Data{conn: conn, buf: make([]byte, DataBufSize)}
}

// LocalAddr 返回数据通道绑定的本地地址。
func (d *Data) LocalAddr() *net.UDPAddr {
	a, _ := d.conn.LocalAddr().(*net.UDPAddr)
	return a
}

// AwaitPayload 在 timeout 内接收一个数据报。
// 说明：不校验发送方地址，调用方可自行比对返回的 from。
// 返回：
// - []byte: 数据报内容（独立副本）
// - *net.UDPAddr: 发送方地址
// - error: 超时返回 CodeDataTimeout
func (d *Data) AwaitPayload(timeout time.Duration) ([]byte, *net.UDPAddr, error) {
	if err := d.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, pferrors.Wrap(pferrors.CodeInternal, "set data deadline", err)
	}
	defer d.conn.SetReadDeadline(time.Time{})

	n, from, err := d.conn.ReadFromUDP(d.buf)
	if err != nil {
		if isTimeout(err) {
			return nil, nil, pferrors.Wrap(pferrors.CodeDataTimeout, "data late or missing", err)
		}
		return nil, nil, pferrors.Wrap(pferrors.CodeInternal, "read data", err)
	}
	out := make([]byte, n)
	copy(out, d.buf[:n])
	return out, from, nil
}
