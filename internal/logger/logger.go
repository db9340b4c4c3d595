// 包 logger：统一初始化与获取日志器，避免各模块重复配置；通过环境变量控制日志级别与输出格式
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// Setup：初始化默认日志器
// 背景：守护进程各组件（数据集、解析器、编排器、D-Bus 适配层）共用同一输出，便于按环境统一调整级别与格式
// 约束：输出目标固定为标准错误，由 systemd/journald 收集；不在此处管理文件句柄
func Setup() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = slog.New(newHandler(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")))
	return defaultLogger
}

func newHandler(level, format string) slog.Handler {
	lvl := ParseLevel(level)
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
}

// ParseLevel 未识别的取值回退到 info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// L：获取默认日志器；若未初始化则回退到 Setup
func L() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		return Setup()
	}
	return l
}

// For：带 component 字段的子日志器
func For(component string) *slog.Logger {
	return L().With("component", component)
}
