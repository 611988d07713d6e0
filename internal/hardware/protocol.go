package hardware

// 单字节协议命令（主机 -> 设备）
const (
	CmdIncrement byte = 'A' // 状态加一
	CmdDecrement byte = 'D' // 状态减一
	CmdStatus    byte = 'S' // 请求当前状态
)

// ReplyFailure 设备应答的失败/未知标记（设备 -> 主机）
const ReplyFailure byte = 'F'

// LED板状态范围
const (
	MinState = 1
	MaxState = 4
)

// StateDescriptions 设备状态说明，按状态编号排列
var StateDescriptions = []string{
	"Both Led's OFF",
	"Only P1 Led ON",
	"Only P2 Led ON",
	"Both Led's ON",
}

// StateChar 返回状态编号对应的应答字符
func StateChar(state int) byte {
	return byte('0' + state)
}

// IsFailure 判断应答是否为失败标记
func IsFailure(b byte) bool {
	return b == ReplyFailure
}
