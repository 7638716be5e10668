package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"portfetch/config"
	"portfetch/doggie"
	pferrors "portfetch/errors"
	"portfetch/packet"
)

// fetcher 是交互会话依赖的取数能力。
type fetcher interface {
	Fetch(kind packet.Kind, token uint32) (doggie.Snapshot, error)
	FetchTXMeter(token uint32) (packet.Meter, error)
}

type session struct {
	fetcher fetcher
	tokens  config.TokenConfig
	out     io.Writer
	errOut  io.Writer
	sinks   []func(doggie.Snapshot)
}

// interactive 逐行读取命令直到 EOF 或 ctx 取消。
// s 取频谱，m 取表计，t 取发射表计；其它输入提示 "can't do that"。
// 读取在独立 goroutine 中进行，阻塞在输入上时也能立即响应取消。
func (s *session) interactive(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-lines:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.line(text)
		}
	}
}

func (s *session) line(text string) {
	cmd := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(cmd, "s"):
		_, _ = fmt.Fprintln(s.out, "Fetch spectrum")
		snap, err := s.fetcher.Fetch(packet.KindSpectrum, s.tokens.Spectrum)
		s.report(snap, err)
	case strings.HasPrefix(cmd, "m"):
		_, _ = fmt.Fprintln(s.out, "Fetch meter")
		snap, err := s.fetcher.Fetch(packet.KindMeter, s.tokens.Meter)
		s.report(snap, err)
	case strings.HasPrefix(cmd, "t"):
		_, _ = fmt.Fprintln(s.out, "Fetch TX meter")
		m, err := s.fetcher.FetchTXMeter(s.tokens.Meter)
		s.report(doggie.Snapshot{Kind: packet.KindMeter, Token: s.tokens.Meter, TX: true, Label: m.Label, Values: m.Readings}, err)
	default:
		_, _ = fmt.Fprintln(s.out, "can't do that")
	}
}

// report 打印一次取数结果，成功时转交给各个输出端。
func (s *session) report(snap doggie.Snapshot, err error) {
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "%s failed: %s: %v\n", snap.Kind, pferrors.Stage(err), err)
		return
	}
	_, _ = fmt.Fprintln(s.out, summarize(snap))
	for _, sink := range s.sinks {
		sink(snap)
	}
}

func summarize(snap doggie.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s label=%#x", snap.Kind, snap.Label)
	if snap.Kind == packet.KindSpectrum {
		fmt.Fprintf(&b, " tick=%d", snap.Tick)
	}
	if snap.TX {
		b.WriteString(" tx")
	}
	fmt.Fprintf(&b, " points=%d", len(snap.Values))
	if len(snap.Values) > 0 {
		fmt.Fprintf(&b, " first=%g", snap.Values[0])
	}
	return b.String()
}
