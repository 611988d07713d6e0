package hardware

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/logger"
	bugst "go.bug.st/serial"
	"go.uber.org/zap"
)

// AutoPort 配置中表示自动查找设备的端口名
const AutoPort = "auto"

// 自动查找时优先匹配的设备名（按优先级排列）
var preferredPatterns = []string{"ttyACM", "usbmodem", "ttyUSB", "usbserial", "COM"}

// 可在测试中替换
var portLister = bugst.GetPortsList

// ListPorts 列出系统中的串口
func ListPorts() ([]string, error) {
	ports, err := portLister()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPortNotFound, "enumerate serial ports")
	}
	sort.Strings(ports)
	return ports, nil
}

// ResolvePort 将配置中的端口名解析为实际设备路径
func ResolvePort(name string) (string, error) {
	if name != "" && !strings.EqualFold(name, AutoPort) {
		return name, nil
	}
	return FindDevice()
}

// FindDevice 自动查找LED板所在的串口
func FindDevice() (string, error) {
	ports, err := ListPorts()
	if err != nil || len(ports) == 0 {
		// 枚举失败时退回到按路径模式查找
		ports = globDevices()
	}

	device := pickDevice(ports)
	if device == "" {
		return "", errors.New(errors.ErrPortNotFound, "no ttyACM/ttyUSB/usbmodem device")
	}

	logger.GetModuleLogger(logger.ModuleSerial).Info("找到串口设备", zap.String("device", device))
	return device, nil
}

// pickDevice 按优先级从候选端口中挑选一个
func pickDevice(ports []string) string {
	for _, pattern := range preferredPatterns {
		for _, port := range ports {
			if strings.Contains(port, pattern) {
				return port
			}
		}
	}
	return ""
}

// globDevices 按常见设备路径查找
func globDevices() []string {
	patterns := []string{"/dev/ttyACM*", "/dev/ttyUSB*", "/dev/cu.usbmodem*", "/dev/tty.usbmodem*"}

	var devices []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		devices = append(devices, matches...)
	}
	return devices
}
