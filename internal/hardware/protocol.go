package hardware

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// 链路参数
const (
	BaudRate          = 9600
	DataBits          = 8
	DefaultDevicePath = "/dev/serial0"
	AutoDevicePath    = "auto"
)

// 协议常量
const (
	KeyCount              = 8    // 按键编号 0-7
	KeyPressDuration      = 1000 // 按键按下时长（毫秒）
	MaxErrors             = 3    // 连续失败阈值，达到后重开链路
	ReadBufferSize        = 256  // 接收缓冲区，最多使用 ReadBufferSize-1 字节
	DefaultUpdateInterval = 750 * time.Millisecond
	CommandTerminator     = '\r'
	ResponseDelimiter     = '\n'
	DisplaySlotCount      = 2

	// 连续失败达到阈值时显示的文本
	NoResponseUpper = "ERROR: No Response"
	NoResponseLower = "Check Connection"
)

// StatusResponse 外设返回的状态文本
type StatusResponse struct {
	Upper    string
	Lower    string
	HasUpper bool
	HasLower bool
}

// AppendKeyCommand 追加按键命令 "KEY <n> 1000\r"
func AppendKeyCommand(dst []byte, key int) []byte {
	dst = append(dst, "KEY "...)
	dst = strconv.AppendInt(dst, int64(key), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, KeyPressDuration, 10)
	return append(dst, CommandTerminator)
}

// AppendDisplayCommand 追加显示请求命令 "DISP <n>\r"
func AppendDisplayCommand(dst []byte, slot int) []byte {
	dst = append(dst, "DISP "...)
	dst = strconv.AppendInt(dst, int64(slot), 10)
	return append(dst, CommandTerminator)
}

// EncodeKeyCommand 编码按键命令
func EncodeKeyCommand(key int) string {
	var buf [32]byte
	return string(AppendKeyCommand(buf[:0], key))
}

// EncodeDisplayCommand 编码显示请求命令
func EncodeDisplayCommand(slot int) string {
	var buf [32]byte
	return string(AppendDisplayCommand(buf[:0], slot))
}

// ParseStatusResponse 解析状态响应
// 按换行切分并跳过空段，第一段为上行文本，第二段为下行文本，其余忽略。
// 遇到NUL字节即视为结束；每段末尾的回车会被去掉。
func ParseStatusResponse(data []byte) StatusResponse {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}

	var resp StatusResponse
	for _, field := range strings.FieldsFunc(string(data), func(r rune) bool { return r == ResponseDelimiter }) {
		line := strings.TrimRight(field, "\r")
		switch {
		case !resp.HasUpper:
			resp.Upper, resp.HasUpper = line, true
		case !resp.HasLower:
			resp.Lower, resp.HasLower = line, true
		default:
			return resp
		}
	}
	return resp
}

// ValidKey 判断按键编号是否在 0-7 范围内
func ValidKey(key int) bool {
	return key >= 0 && key < KeyCount
}

// TrimCommand 去掉命令结尾的回车，用于日志
func TrimCommand(cmd []byte) string {
	return strings.TrimRight(string(cmd), "\r")
}
