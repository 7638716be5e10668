package packet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	pferrors "portfetch/errors"
)

// Ack 是命令通道的确认字面量。
var Ack = []byte("ok")

// Request 是应答端解析出的一条命令。
type Request struct {
	Kind     Kind
	Label    uint32
	HasLabel bool
	// TX 仅对 reqMeter 有效：选择发射侧表计组。
	TX bool
}

// FormatCommand 构造 "<verb> <token>\n" 命令行。
func FormatCommand(kind Kind, token uint32) []byte {
	return []byte(fmt.Sprintf("%s %d\n", kind.Verb(), token))
}

// FormatTXMeterCommand 构造 "reqMeter <token> 1\n"，请求发射侧表计组。
func FormatTXMeterCommand(token uint32) []byte {
	return []byte(fmt.Sprintf("%s %d 1\n", VerbMeter, token))
}

// IsAck 判断数据报是否恰好为 "ok"。
func IsAck(b []byte) bool { return bytes.Equal(b, Ack) }

// ParseCommand 解析命令行（按空白分词，首词为动词）。
// 规则：
// - 空命令或未知动词返回 CodeUnknownCommand
// - token 非十进制 u32、trx 非 0/1 时返回 CodeBadRequest
// - 缺少 token 时 HasLabel=false，由应答端使用默认 label
func ParseCommand(b []byte) (Request, error) {
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return Request{}, pferrors.New(pferrors.CodeUnknownCommand, "empty command")
	}
	var req Request
	switch fields[0] {
	case VerbSpectrum:
		req.Kind = KindSpectrum
	case VerbMeter:
		req.Kind = KindMeter
	default:
		return Request{}, pferrors.Wrap(pferrors.CodeUnknownCommand, "unknown verb", fmt.Errorf("verb=%q", fields[0]))
	}
	if len(fields) > 1 {
		v, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return Request{}, pferrors.Wrap(pferrors.CodeBadRequest, "invalid token", err)
		}
		req.Label = uint32(v)
		req.HasLabel = true
	}
	if req.Kind == KindMeter && len(fields) > 2 {
		switch fields[2] {
		case "0":
		case "1":
			req.TX = true
		default:
			return Request{}, pferrors.Wrap(pferrors.CodeBadRequest, "invalid trx", fmt.Errorf("trx=%q", fields[2]))
		}
	}
	return req, nil
}
