// Package errors 带堆栈的错误包装，*AndReport 系列方法在包装的同时将错误上报至已注册的报告器.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// New returns an error with the supplied message and the caller stack.
func New(message string) error {
	return pkgerrors.New(message)
}

// Errorf formats according to a format specifier and records the caller stack.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

// Wrap annotates err with message and a stack. Wrap returns nil if err is nil.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message and a stack. Wrapf returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// WithStack annotates err with the caller stack. WithStack returns nil if err is nil.
func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

// WithMessage annotates err without recording another stack.
func WithMessage(err error, message string) error {
	return pkgerrors.WithMessage(err, message)
}

func Is(err, target error) bool {
	return pkgerrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return pkgerrors.As(err, target)
}

func Unwrap(err error) error {
	return pkgerrors.Unwrap(err)
}

// Cause returns the innermost error of a wrapped chain.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

// NewWithReport 创建错误并上报
func NewWithReport(message string) error {
	err := pkgerrors.New(message)
	report(err)
	return err
}

// ErrorfAndReport 格式化创建错误并上报
func ErrorfAndReport(format string, args ...interface{}) error {
	err := pkgerrors.Errorf(format, args...)
	report(err)
	return err
}

// WrapAndReport 包装错误并上报，err为nil时返回nil且不上报
func WrapAndReport(err error, message string) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrap(err, message)
	report(wrapped)
	return wrapped
}

// WrapfAndReport 格式化包装错误并上报，err为nil时返回nil且不上报
func WrapfAndReport(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrapf(err, format, args...)
	report(wrapped)
	return wrapped
}

func WithStackAndReport(err error) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.WithStack(err)
	report(wrapped)
	return wrapped
}

func WithMessageAndReport(err error, message string) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.WithMessage(err, message)
	report(wrapped)
	return wrapped
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

type stack []string

// callers 返回当前调用栈，每一帧格式为 "function file:line"
func callers() stack {
	var frames stack
	tracer, ok := pkgerrors.New("").(stackTracer)
	if !ok {
		return frames
	}
	for _, f := range tracer.StackTrace() {
		frames = append(frames, fmt.Sprintf("%n %s:%d", f, f, f))
	}
	return frames
}

func (s stack) fullStack() []string {
	return s
}

// reportKey 取出错误发生处的栈帧，作为上报限流的维度
func (s stack) reportKey() string {
	const skip = 4
	if len(s) > skip {
		return s[skip]
	}
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}
