package console

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/wfunc/uart-console/internal/hardware"
)

// ErrorCode 屏幕底部附加的错误提示
type ErrorCode int

const (
	ErrorNone ErrorCode = iota
	ErrorStateChangeFailed
	ErrorSingleCharOnly
)

// Message 返回错误提示文本
func (c ErrorCode) Message() string {
	switch c {
	case ErrorStateChangeFailed:
		return "Change state request failed!"
	case ErrorSingleCharOnly:
		return "Please input a single character only!"
	default:
		return ""
	}
}

// DefaultTitle 默认标题
const DefaultTitle = "UART Control Console Application"

const clearSequence = "\033[H\033[2J"

var commandHelp = []string{
	"A - Increment state",
	"D - Decrement state",
	"S - Request current state",
	"X - Exit the application",
}

// Renderer 绘制控制台界面
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	status *StatusStore
	title  string
	clear  bool
}

// NewRenderer 创建界面渲染器
func NewRenderer(out io.Writer, status *StatusStore, title string, clearScreen bool) *Renderer {
	if title == "" {
		title = DefaultTitle
	}
	return &Renderer{
		out:    out,
		status: status,
		title:  title,
		clear:  clearScreen,
	}
}

// Render 按当前状态重绘整个界面，整屏内容一次写出
func (r *Renderer) Render(code ErrorCode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	screen := Screen(r.title, r.status.Get(), code, r.clear)
	_, _ = io.WriteString(r.out, screen)
}

// Screen 生成界面文本
func Screen(title, status string, code ErrorCode, clearScreen bool) string {
	var buf bytes.Buffer

	if clearScreen {
		buf.WriteString(clearSequence)
	}

	fmt.Fprintf(&buf, "%s \n\n", title)

	buf.WriteString("States:\n")
	for i, desc := range hardware.StateDescriptions {
		fmt.Fprintf(&buf, "%d - %s\n", hardware.MinState+i, desc)
	}
	buf.WriteString("\n")

	buf.WriteString("Commands:\n")
	for _, line := range commandHelp {
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "Current Status: %s\n", status)
	if msg := code.Message(); msg != "" {
		buf.WriteString(msg)
		buf.WriteString("\n")
	}
	buf.WriteString("\nInput Command:")

	return buf.String()
}
