package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"portfetch/config"
	pflog "portfetch/log"
	"portfetch/slippers"
)

const Version = "1.0"

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signalContext()
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run 启动参考应答端并阻塞到 ctx 取消，返回进程退出码。
// 退出码：
// - 0: 收到中断后正常退出
// - 1: 配置错误或端口绑定失败
// - 2: 参数错误
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("port-slippers", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPathFlag := fs.String("config_path", defaultConfigPath, "配置文件路径（YAML 或 TOML）。如果是目录，则默认读取该目录下的 config.yaml")
	versionFlag := fs.Bool("version", false, "输出版本并退出")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "port-slippers %s\n\n", Version)
		_, _ = fmt.Fprintln(stderr, "用法：")
		_, _ = fmt.Fprintln(stderr, "  port-slippers [flags] [host cmd-port spec-data-port meter-data-port]")
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
	if len(fs.Args()) == 4 {
		// 位置参数中的 host 即应答端绑定地址
		cfg.Responder.BindHost = cfg.Target.Host
	}
	pflog.SetComponent("slippers")
	if err := pflog.Init(cfg.Logging); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	resp, err := slippers.New(slippers.OptionsFromConfig(cfg), slippers.NewSynthetic(cfg.Responder))
	if err != nil {
		pflog.L().WithError(err).Error("应答端启动失败")
		_, _ = fmt.Fprintf(stderr, "can't open UDP command socket on %s:%d: %v\n", cfg.Responder.BindHost, cfg.Target.CommandPort, err)
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "slippers command port %s ready\n", resp.Addr())

	if err := resp.Serve(ctx); err != nil {
		pflog.L().WithError(err).Error("应答端异常退出")
		return 1
	}
	pflog.With(map[string]any{"tick": resp.Tick(), "status": resp.Status().String()}).Info("应答端已停止")
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
