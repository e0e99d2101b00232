package hardware

import (
	"os"
	"sort"
	"strings"

	bugserial "go.bug.st/serial"
)

// listPorts 枚举系统串口，测试中可替换
var listPorts = bugserial.GetPortsList

// 自动探测时的设备名优先级，越靠前越优先
var devicePreference = []string{"serial", "ttyAMA", "ttyS0", "ttyUSB", "ttyACM"}

// SerialPortExists 检查串口设备是否存在
func SerialPortExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListPorts 列出系统中的串口设备
func ListPorts() ([]string, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ports, func(i, j int) bool {
		return devicePriority(ports[i]) < devicePriority(ports[j])
	})
	return ports, nil
}

// FindPort 查找可用串口
// 优先使用上次成功的设备，其次按设备名优先级选择
func FindPort(last string) (string, error) {
	if last != "" && SerialPortExists(last) {
		return last, nil
	}

	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", nil
	}
	return ports[0], nil
}

func devicePriority(path string) int {
	name := path[strings.LastIndex(path, "/")+1:]
	for i, prefix := range devicePreference {
		if strings.HasPrefix(name, prefix) {
			return i
		}
	}
	return len(devicePreference)
}
