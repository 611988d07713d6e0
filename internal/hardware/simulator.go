package hardware

import "sync"

// LedBoard 模拟LED状态机固件
//
// 状态 1-4 对应两个LED的四种组合。A/D 在范围内加减，越界时应答 F；
// S 应答当前状态；其他命令一律应答 F。
type LedBoard struct {
	mu    sync.Mutex
	state int
}

// NewLedBoard 创建模拟LED板，初始状态越界时取最小状态
func NewLedBoard(initial int) *LedBoard {
	if initial < MinState || initial > MaxState {
		initial = MinState
	}
	return &LedBoard{state: initial}
}

// Handle 处理一个命令字节并返回应答
func (b *LedBoard) Handle(cmd byte) (byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch cmd {
	case CmdIncrement:
		if b.state >= MaxState {
			return ReplyFailure, true
		}
		b.state++
		return StateChar(b.state), true
	case CmdDecrement:
		if b.state <= MinState {
			return ReplyFailure, true
		}
		b.state--
		return StateChar(b.state), true
	case CmdStatus:
		return StateChar(b.state), true
	default:
		return ReplyFailure, true
	}
}

// State 返回当前状态
func (b *LedBoard) State() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
