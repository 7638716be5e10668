package errors

import (
	"errors"
	"fmt"
)

type CodeError struct {
	Code    int
	Message string
	Err     error
}

// Error 返回带错误码的可读文本（用于日志与命令行输出）。
func (e *CodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%d %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
}

// Unwrap 返回底层错误，便于 errors.Is/errors.As 继续判断。
func (e *CodeError) Unwrap() error { return e.Err }

// New 构造一个仅包含错误码与消息的 CodeError。
// 参数：
// - code: 错误码
// - msg: 错误描述
func New(code int, msg string) *CodeError { return &CodeError{Code: code, Message: msg} }

// Wrap 将底层错误包装为带错误码的 CodeError。
// 参数：
// - code: 错误码
// - msg: 错误描述
// - err: 底层错误（可为 nil）
func Wrap(code int, msg string, err error) *CodeError {
	if err == nil {
		return &CodeError{Code: code, Message: msg}
	}
	return &CodeError{Code: code, Message: msg, Err: err}
}

// WithMessage 为错误追加上下文消息。
// 规则：
// - 若 err 为 CodeError，则保留 code，消息前置上下文并保留底层 err
// - 否则使用 fmt.Errorf("%s: %w", ...) 保留可追溯性
func WithMessage(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return &CodeError{Code: ce.Code, Message: msg + ": " + ce.Message, Err: ce.Err}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Code 提取错误码。
// 返回：
// - 0: err 为 nil
// - CodeError: 返回其中的 Code
// - 其它错误: 默认返回 CodeInternal
func Code(err error) int {
	if err == nil {
		return 0
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

const (
	CodeInternal        = 500
	CodeBadRequest      = 502
	CodeSocketBind      = 510
	CodeAckTimeout      = 520
	CodeNack            = 521
	CodeSendFailed      = 522
	CodeDataTimeout     = 530
	CodeMalformedPacket = 540
	CodeUnknownCommand  = 550
)

const (
	StageSocketBind      = "SocketBindFailure"
	StageCommandFailed   = "CommandFailed"
	StageDataTimeout     = "DataTimeout"
	StageMalformedPacket = "MalformedPacket"
	StageUnknownCommand  = "UnknownCommand"
	StageBadRequest      = "BadRequest"
	StageInternal        = "Internal"
)

// Stage 将错误码归类为取数流程中的失败阶段。
// 说明：
// - AckTimeout/Nack/SendFailed 都属于命令通道失败（CommandFailed）
// - nil 返回空字符串
func Stage(err error) string {
	if err == nil {
		return ""
	}
	switch Code(err) {
	case CodeSocketBind:
		return StageSocketBind
	case CodeAckTimeout, CodeNack, CodeSendFailed:
		return StageCommandFailed
	case CodeDataTimeout:
		return StageDataTimeout
	case CodeMalformedPacket:
		return StageMalformedPacket
	case CodeUnknownCommand:
		return StageUnknownCommand
	case CodeBadRequest:
		return StageBadRequest
	default:
		return StageInternal
	}
}

// Is 判断 err 是否携带指定错误码。
func Is(err error, code int) bool { return err != nil && Code(err) == code }
