package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"portfetch/config"
	"portfetch/doggie"
	pflog "portfetch/log"
	"portfetch/monitor"
	"portfetch/packet"
	"portfetch/record"
)

const Version = "1.0"

const defaultConfigPath = "configs/config.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run 解析参数并执行交互模式或轮询模式，返回进程退出码。
// 退出码：
// - 0: 正常结束（含 EOF、SIGINT）
// - 1: 配置错误或端口绑定失败
// - 2: 参数错误
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("port-doggie", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPathFlag := fs.String("config_path", defaultConfigPath, "配置文件路径（YAML 或 TOML）。如果是目录，则默认读取该目录下的 config.yaml")
	versionFlag := fs.Bool("version", false, "输出版本并退出")
	pollFlag := fs.Bool("poll", false, "按间隔轮询而不是读取标准输入")
	countFlag := fs.Int("count", -1, "轮询轮数，0 表示直到中断；-1 取配置值")
	intervalFlag := fs.Duration("interval", 0, "轮询间隔；0 取配置值")
	recordFlag := fs.String("record", "", "把取到的快照写入 parquet 文件")
	monitorFlag := fs.String("monitor", "", "在该地址上提供 websocket 监视（如 :8088）")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "port-doggie %s\n\n", Version)
		_, _ = fmt.Fprintln(stderr, "用法：")
		_, _ = fmt.Fprintln(stderr, "  port-doggie [flags] [host cmd-port spec-data-port meter-data-port]")
		_, _ = fmt.Fprintln(stderr, "\n交互命令：s 取频谱，m 取表计，t 取发射表计")
		_, _ = fmt.Fprintln(stderr, "\n参数：")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if *versionFlag {
		_, _ = fmt.Fprintln(stdout, Version)
		return 0
	}

	cfg, err := loadConfig(*configPathFlag)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	cfg, err = config.ApplyArgs(cfg, fs.Args())
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}
	if *countFlag >= 0 {
		cfg.Poll.Count = *countFlag
	}
	if *intervalFlag > 0 {
		cfg.Poll.Interval = *intervalFlag
	}
	if *monitorFlag != "" {
		cfg.Monitor.Listen = *monitorFlag
	}
	if err := config.Validate(cfg); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}
	pflog.SetComponent("doggie")
	if err := pflog.Init(cfg.Logging); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	req, err := doggie.New(doggie.OptionsFromConfig(cfg))
	if err != nil {
		pflog.L().WithError(err).Error("请求端启动失败")
		_, _ = fmt.Fprintf(stderr, "can't open UDP sockets for %s:%d: %v\n", cfg.Target.Host, cfg.Target.CommandPort, err)
		return 1
	}
	defer req.Close()
	_, _ = fmt.Fprintln(stderr, "doggie is ready")

	ctx, cancel := signalContext()
	defer cancel()

	var sinks []func(doggie.Snapshot)
	if *recordFlag != "" {
		w, err := record.Create(*recordFlag, map[string]string{
			"target":  fmt.Sprintf("%s:%d", cfg.Target.Host, cfg.Target.CommandPort),
			"version": Version,
		})
		if err != nil {
			pflog.L().WithError(err).Error("无法创建记录文件")
			return 1
		}
		defer func() {
			if err := w.Close(); err != nil {
				pflog.L().WithError(err).Warn("关闭记录文件失败")
			}
		}()
		sinks = append(sinks, func(s doggie.Snapshot) {
			if err := w.Write(s); err != nil {
				pflog.L().WithError(err).Warn("写入记录失败")
			}
		})
	}
	if cfg.Monitor.Listen != "" {
		hub := monitor.NewHub()
		stop, err := serveMonitor(cfg.Monitor.Listen, hub)
		if err != nil {
			pflog.With(map[string]any{"listen": cfg.Monitor.Listen}).WithError(err).Error("监视端口监听失败")
			return 1
		}
		defer stop()
		sinks = append(sinks, hub.Publish)
	}

	session := &session{
		fetcher: req,
		tokens:  cfg.Tokens,
		out:     stdout,
		errOut:  stderr,
		sinks:   sinks,
	}
	if *pollFlag {
		kinds := make([]packet.Kind, 0, len(cfg.Poll.Kinds))
		for _, k := range cfg.Poll.Kinds {
			kind, err := packet.ParseKind(k)
			if err != nil {
				_, _ = fmt.Fprintln(stderr, err)
				return 2
			}
			kinds = append(kinds, kind)
		}
		err := doggie.Poll(ctx, req, doggie.PollOptions{
			Kinds: kinds,
			Tokens: map[packet.Kind]uint32{
				packet.KindSpectrum: cfg.Tokens.Spectrum,
				packet.KindMeter:    cfg.Tokens.Meter,
			},
			Interval: cfg.Poll.Interval,
			Count:    cfg.Poll.Count,
		}, session.report)
		if err != nil && ctx.Err() == nil {
			pflog.L().WithError(err).Error("轮询异常结束")
			return 1
		}
		return 0
	}
	session.interactive(ctx, stdin)
	return 0
}

// loadConfig 读取配置文件；默认路径不存在时使用内置默认配置。
func loadConfig(p string) (config.Config, error) {
	path := resolveConfigPath(p)
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) && p == defaultConfigPath {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func resolveConfigPath(p string) string {
	if p == "" {
		return defaultConfigPath
	}
	st, err := os.Stat(p)
	if err != nil {
		return p
	}
	if st.IsDir() {
		return filepath.Join(p, "config.yaml")
	}
	return p
}

// serveMonitor 在 addr 上启动监视 HTTP 服务。
// 返回：
// - stop: 关闭 hub 与 HTTP 服务
// - error: 监听失败
func serveMonitor(addr string, hub *monitor.Hub) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: hub.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			pflog.L().WithError(err).Warn("监视服务退出")
		}
	}()
	pflog.With(map[string]any{"listen": ln.Addr().String()}).Info("监视服务已启动")
	return func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// signalContext 创建一个可被 SIGINT/SIGTERM 取消的 Context。
// 返回：
// - ctx: 监听信号并在收到信号时取消的上下文
// - cancel: 主动取消函数
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}
