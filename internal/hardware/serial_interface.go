package hardware

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

// SerialPort 串口接口（用于测试和模拟外设）
type SerialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// PortOpener 按设备路径打开串口
type PortOpener func(path string) (SerialPort, error)

// OpenSerialPort 返回基于tarm/serial的串口打开函数
// 帧格式固定为 9600 8N1；readTimeout为0时读操作会一直阻塞，调用方应传入正值
func OpenSerialPort(readTimeout time.Duration) PortOpener {
	return func(path string) (SerialPort, error) {
		port, err := serial.OpenPort(&serial.Config{
			Name:        path,
			Baud:        BaudRate,
			Size:        DataBits,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: readTimeout,
		})
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}
