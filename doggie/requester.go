package doggie

import (
	"fmt"
	"net"
	"sync"
	"time"

	"portfetch/channel"
	"portfetch/config"
	pferrors "portfetch/errors"
	pflog "portfetch/log"
	"portfetch/packet"
	"portfetch/ports"
)

// Options 描述一个请求端会话。
type Options struct {
	// Target 为远端命令端口。
	Target ports.Endpoint
	// BindHost 为本地数据端口的绑定地址，空串表示所有地址。
	BindHost     string
	SpectrumPort int
	MeterPort    int
	AckTimeout   time.Duration
	DataTimeout  time.Duration
}

// OptionsFromConfig 由全局配置生成请求端选项。
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Target:       ports.Endpoint{Host: cfg.Target.Host, Port: cfg.Target.CommandPort},
		SpectrumPort: cfg.Target.SpectrumPort,
		MeterPort:    cfg.Target.MeterPort,
		AckTimeout:   cfg.Timeouts.Ack,
		DataTimeout:  cfg.Timeouts.Data,
	}
}

// Snapshot 是一次取数的结果；Tick 仅对频谱有效。
type Snapshot struct {
	Kind      packet.Kind `json:"kind"`
	Token     uint32      `json:"token"`
	Label     uint32      `json:"label"`
	Tick      uint32      `json:"tick"`
	TX        bool        `json:"tx,omitempty"`
	Values    []float64   `json:"values"`
	From      string      `json:"from,omitempty"`
	FetchedAt time.Time   `json:"fetched_at"`
}

type decoder func([]byte) (Snapshot, error)

var decoders = map[packet.Kind]decoder{
	packet.KindSpectrum: func(b []byte) (Snapshot, error) {
		s, err := packet.DecodeSpectrum(b)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Label: s.Label, Tick: s.Tick, Values: s.Samples}, nil
	},
	packet.KindMeter: func(b []byte) (Snapshot, error) {
		m, err := packet.DecodeMeter(b)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Label: m.Label, Values: m.Readings}, nil
	},
}

// Requester 是请求端（doggie）：同一时刻至多一个在途请求。
type Requester struct {
	opts Options

	// dataPorts 在 New 之后只读，无需加锁
	dataPorts map[packet.Kind]int

	mu      sync.Mutex
	cmdConn *net.UDPConn
	cmd     *channel.Command
	conns   map[packet.Kind]*net.UDPConn
	data    map[packet.Kind]*channel.Data
	last    Snapshot
	hasLast bool
	closed  bool
}

// New 创建请求端并绑定命令 socket 与各数据端口。
// 参数：
// - opts: 会话选项（超时为 0 时取 1s）
// 返回：
// - *Requester: 请求端实例
// - error: 地址解析失败或端口绑定失败（CodeSocketBind）
func New(opts Options) (*Requester, error) {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = time.Second
	}
	if opts.DataTimeout <= 0 {
		opts.DataTimeout = time.Second
	}
	target, err := opts.Target.Resolve()
	if err != nil {
		return nil, err
	}

	r := &Requester{
		opts:      opts,
		conns:     make(map[packet.Kind]*net.UDPConn),
		data:      make(map[packet.Kind]*channel.Data),
		dataPorts: make(map[packet.Kind]int),
	}
	r.cmdConn, err = ports.Listen("", 0)
	if err != nil {
		return nil, err
	}
	r.cmd = channel.NewCommand(r.cmdConn, target)

	for kind, port := range map[packet.Kind]int{
		packet.KindSpectrum: opts.SpectrumPort,
		packet.KindMeter:    opts.MeterPort,
	} {
		c, err := ports.Listen(opts.BindHost, port)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.conns[kind] = c
		r.data[kind] = channel.NewData(c)
		r.dataPorts[kind] = ports.LocalPort(c)
	}
	pflog.With(map[string]any{
		"target":        opts.Target.String(),
		"spectrum_port": r.dataPorts[packet.KindSpectrum],
		"meter_port":    r.dataPorts[packet.KindMeter],
	}).Debug("请求端就绪")
	return r, nil
}

// DataPort 返回某类载荷实际绑定的本地数据端口（端口参数为 0 时由系统分配）。
func (r *Requester) DataPort(kind packet.Kind) int { return r.dataPorts[kind] }

// Fetch 取一帧指定类型的快照（阻塞，受两个超时约束）。
// 流程：发送命令并等待 ack -> 等待数据端口载荷 -> 按类型解码。
// 参数：
// - kind: 载荷类型
// - token: 关联值，只出现在命令文本中
// 返回：
// - Snapshot: 快照（失败时仅带 Kind/Token）
// - error: CommandFailed（AckTimeout/Nack/SendFailed）、DataTimeout 或 MalformedPacket
func (r *Requester) Fetch(kind packet.Kind, token uint32) (Snapshot, error) {
	return r.fetch(kind, token, packet.FormatCommand(kind, token), false)
}

// FetchSpectrum 取一帧频谱。
func (r *Requester) FetchSpectrum(token uint32) (packet.Spectrum, error) {
	s, err := r.Fetch(packet.KindSpectrum, token)
	if err != nil {
		return packet.Spectrum{}, err
	}
	return packet.Spectrum{Label: s.Label, Tick: s.Tick, Samples: s.Values}, nil
}

// FetchMeter 取一组接收侧表计读数。
func (r *Requester) FetchMeter(token uint32) (packet.Meter, error) {
	s, err := r.Fetch(packet.KindMeter, token)
	if err != nil {
		return packet.Meter{}, err
	}
	return packet.Meter{Label: s.Label, Readings: s.Values}, nil
}

// FetchTXMeter 取一组发射侧表计读数（reqMeter <token> 1）。
func (r *Requester) FetchTXMeter(token uint32) (packet.Meter, error) {
	s, err := r.fetch(packet.KindMeter, token, packet.FormatTXMeterCommand(token), true)
	if err != nil {
		return packet.Meter{}, err
	}
	return packet.Meter{Label: s.Label, Readings: s.Values}, nil
}

func (r *Requester) fetch(kind packet.Kind, token uint32, cmd []byte, tx bool) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	failed := Snapshot{Kind: kind, Token: token, TX: tx}
	if r.closed {
		return failed, pferrors.Wrap(pferrors.CodeInternal, "requester closed", net.ErrClosed)
	}
	data, ok := r.data[kind]
	dec, okDec := decoders[kind]
	if !ok || !okDec {
		return failed, pferrors.Wrap(pferrors.CodeBadRequest, "unsupported kind", fmt.Errorf("kind=%q", kind))
	}
	ctx := fmt.Sprintf("fetch %s", kind)

	if err := r.cmd.SendAndAwaitAck(cmd, r.opts.AckTimeout); err != nil {
		r.logFailure(kind, token, err)
		return failed, pferrors.WithMessage(err, ctx)
	}
	payload, from, err := data.AwaitPayload(r.opts.DataTimeout)
	if err != nil {
		r.logFailure(kind, token, err)
		return failed, pferrors.WithMessage(err, ctx)
	}
	snap, err := dec(payload)
	if err != nil {
		r.logFailure(kind, token, err)
		return failed, pferrors.WithMessage(err, ctx)
	}
	snap.Kind = kind
	snap.Token = token
	snap.TX = tx
	snap.From = from.String()
	snap.FetchedAt = time.Now()

	r.last = snap
	r.hasLast = true
	return snap, nil
}

func (r *Requester) logFailure(kind packet.Kind, token uint32, err error) {
	pflog.With(map[string]any{
		"kind":   kind.String(),
		"token":  token,
		"target": r.opts.Target.String(),
		"stage":  pferrors.Stage(err),
		"code":   pferrors.Code(err),
	}).WithError(err).Warn("取数失败")
}

// Last 返回最近一次成功取数的快照（仅供诊断）。
func (r *Requester) Last() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// Close 释放命令 socket 与全部数据 socket（幂等）。
func (r *Requester) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var first error
	if r.cmdConn != nil {
		first = r.cmdConn.Close()
	}
	for kind, c := range r.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.conns, kind)
		delete(r.data, kind)
	}
	return first
}
