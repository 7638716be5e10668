package slippers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"portfetch/config"
	pferrors "portfetch/errors"
	pflog "portfetch/log"
	"portfetch/packet"
	"portfetch/ports"
	"portfetch/status"
)

const (
	cmdBufSize = 1024

	readBackoffMin = 10 * time.Millisecond
	readBackoffMax = time.Second
)

// Options 描述应答端绑定的端口与默认 label。
type Options struct {
	BindHost     string
	CommandPort  int
	SpectrumPort int
	MeterPort    int
	// DefaultLabel 用于不带 token 的命令。
	DefaultLabel uint32
}

// OptionsFromConfig 由全局配置生成应答端选项。
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		BindHost:     cfg.Responder.BindHost,
		CommandPort:  cfg.Target.CommandPort,
		SpectrumPort: cfg.Target.SpectrumPort,
		MeterPort:    cfg.Target.MeterPort,
		DefaultLabel: cfg.Responder.DefaultLabel,
	}
}

// Responder 是参考应答端（slippers）。
// 只有一个 Listening 状态：每条命令处理完毕后回到监听，不保留会话。
type Responder struct {
	opts Options
	src  Source

	cmd   *net.UDPConn
	spec  *net.UDPConn
	meter *net.UDPConn

	tick      atomic.Uint32
	state     atomic.Value
	closeOnce sync.Once
}

// New 绑定命令端口以及两个发送 socket。
// 参数：
// - opts: 端口与默认 label
// - src: 载荷源
// 返回：
// - *Responder: 应答端实例（状态 Starting）
// - error: 绑定失败返回 CodeSocketBind
func New(opts Options, src Source) (*Responder, error) {
	if src == nil {
		return nil, pferrors.New(pferrors.CodeBadRequest, "nil source")
	}
	r := &Responder{opts: opts, src: src}
	r.state.Store(status.ResponderStarting)

	var err error
	if r.cmd, err = ports.Listen(opts.BindHost, opts.CommandPort); err != nil {
		return nil, err
	}
	if r.spec, err = ports.Listen(opts.BindHost, 0); err != nil {
		_ = r.cmd.Close()
		return nil, err
	}
	if r.meter, err = ports.Listen(opts.BindHost, 0); err != nil {
		_ = r.cmd.Close()
		_ = r.spec.Close()
		return nil, err
	}
	return r, nil
}

// Addr 返回命令端口的本地地址。
func (r *Responder) Addr() *net.UDPAddr {
	a, _ := r.cmd.LocalAddr().(*net.UDPAddr)
	return a
}

// Tick 返回下一帧频谱将携带的序号。
func (r *Responder) Tick() uint32 { return r.tick.Load() }

// Status 返回应答端当前状态。
func (r *Responder) Status() status.ResponderStatus {
	return r.state.Load().(status.ResponderStatus)
}

// Serve 在命令端口上循环处理请求，直到 ctx 取消。
// 说明：
// - 收到任何数据报立即回 "ok"，再解析与生成载荷
// - 未知或畸形命令只记录日志，不回送数据
// - 发送失败只记录日志，循环继续
// 返回：
// - nil: ctx 取消或应答端被关闭
func (r *Responder) Serve(ctx context.Context) error {
	r.state.Store(status.ResponderListening)
	defer r.state.Store(status.ResponderStopped)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = r.Close()
		case <-done:
		}
	}()

	pflog.With(map[string]any{
		"addr":          r.Addr().String(),
		"spectrum_port": r.opts.SpectrumPort,
		"meter_port":    r.opts.MeterPort,
		"status":        status.ResponderListening.String(),
	}).Info("应答端开始监听")

	buf := make([]byte, cmdBufSize)
	failures := 0
	for {
		n, from, err := r.cmd.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			failures++
			wait := readBackoff(failures)
			pflog.With(map[string]any{"failures": failures, "backoff_ms": wait.Milliseconds()}).WithError(err).Warn("读取命令失败")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		failures = 0
		r.handle(buf[:n], from)
	}
}

// readBackoff 返回第 n 次连续读取失败后的等待时间：从 10ms 起倍增，上限 1s。
func readBackoff(n int) time.Duration {
	d := readBackoffMin
	for i := 1; i < n && d < readBackoffMax; i++ {
		d *= 2
	}
	return min(d, readBackoffMax)
}

// handle 处理一条命令：先 ack，再分派。
func (r *Responder) handle(data []byte, from *net.UDPAddr) {
	if _, err := r.cmd.WriteToUDP(packet.Ack, from); err != nil {
		pflog.With(map[string]any{"from": from.String()}).WithError(err).Warn("ack 发送失败")
	}

	req, err := packet.ParseCommand(data)
	if err != nil {
		pflog.With(map[string]any{
			"from":    from.String(),
			"command": fmt.Sprintf("%q", data),
			"stage":   pferrors.Stage(err),
			"code":    pferrors.Code(err),
		}).WithError(err).Warn("命令无法识别，已忽略")
		return
	}
	label := req.Label
	if !req.HasLabel {
		label = r.opts.DefaultLabel
	}

	switch req.Kind {
	case packet.KindSpectrum:
		tick := r.tick.Add(1) - 1
		payload := packet.EncodeSpectrum(label, tick, r.src.Spectrum(label))
		r.send(r.spec, payload, &net.UDPAddr{IP: from.IP, Port: r.opts.SpectrumPort}, map[string]any{
			"kind":  req.Kind.String(),
			"label": label,
			"tick":  tick,
		})
	case packet.KindMeter:
		payload := packet.EncodeMeter(label, r.src.Meter(label, req.TX))
		r.send(r.meter, payload, &net.UDPAddr{IP: from.IP, Port: r.opts.MeterPort}, map[string]any{
			"kind":  req.Kind.String(),
			"label": label,
			"tx":    req.TX,
		})
	}
}

func (r *Responder) send(conn *net.UDPConn, payload []byte, to *net.UDPAddr, fields map[string]any) {
	fields["to"] = to.String()
	fields["bytes"] = len(payload)
	if len(payload) > config.MaxDatagram {
		pflog.With(fields).Error("载荷超过 UDP 数据报上限，未发送")
		return
	}
	if _, err := conn.WriteToUDP(payload, to); err != nil {
		pflog.With(fields).WithError(err).Warn("载荷发送失败")
		return
	}
	pflog.With(fields).Debug("已回送载荷")
}

// Close 关闭全部 socket（幂等）。
func (r *Responder) Close() error {
	var first error
	r.closeOnce.Do(func() {
		for _, c := range []*net.UDPConn{r.cmd, r.spec, r.meter} {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}
