package ports

import (
	"net"
	"strconv"

	pferrors "portfetch/errors"
)

// Endpoint 是 (host, UDP port) 二元组。
type Endpoint struct {
	Host string
	Port int
}

// String 返回 host:port 形式的地址文本。
func (e Endpoint) String() string { return net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) }

// Resolve 解析为 UDP 地址。
// 返回：
// - *net.UDPAddr: 解析后的地址
// - error: 主机名无法解析时返回 CodeBadRequest
func (e Endpoint) Resolve() (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp4", e.String())
	if err != nil {
		return nil, pferrors.Wrap(pferrors.CodeBadRequest, "resolve endpoint "+e.String(), err)
	}
	return addr, nil
}

// Listen 在本机绑定一个 UDP socket。
// 参数：
// - host: 绑定地址，空串表示所有地址
// - port: 端口号，0 表示由系统分配
// 返回：
// - *net.UDPConn: 已绑定的未连接 socket
// - error: 绑定失败返回 CodeSocketBind（启动期致命错误）
func Listen(host string, port int) (*net.UDPConn, error) {
	ep := Endpoint{Host: host, Port: port}
	addr, err := net.ResolveUDPAddr("udp4", ep.String())
	if err != nil {
		return nil, pferrors.Wrap(pferrors.CodeSocketBind, "resolve bind address "+ep.String(), err)
	}
	c, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, pferrors.Wrap(pferrors.CodeSocketBind, "bind udp "+ep.String(), err)
	}
	return c, nil
}

// LocalPort 返回 socket 实际绑定的本地端口。
func LocalPort(c *net.UDPConn) int {
	if a, ok := c.LocalAddr().(*net.UDPAddr); ok {
		return a.Port
	}
	return 0
}
