package auth

import (
	"context"
	"fmt"
	"strings"
)

// Logger is a key/value structured logger:
//
//	logger.Info("account registered", "account_id", id)
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] AUTH " + render(format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] AUTH " + render(format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] AUTH " + render(format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] AUTH " + render(format, args...))
}

func render(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultLogger is the logger components fall back to when none is set
func DefaultLogger() Logger {
	return defLogger{}
}

func orDefaultLogger(logger Logger) Logger {
	if logger == nil {
		return DefaultLogger()
	}
	return logger
}

// Authenticator signs accounts in and resolves bearer tokens
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*Session, *Account, error)
	Authenticate(ctx context.Context, token string) (*Account, error)
}

var _ Authenticator = (*Auther)(nil)
