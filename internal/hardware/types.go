package hardware

import "time"

// Stats 链路统计
type Stats struct {
	CommandsSent      uint64    `json:"commands_sent"`
	ResponsesReceived uint64    `json:"responses_received"`
	EmptyReads        uint64    `json:"empty_reads"`
	WriteFailures     uint64    `json:"write_failures"`
	ReadFailures      uint64    `json:"read_failures"`
	Reopens           uint64    `json:"reopens"`
	LastError         string    `json:"last_error,omitempty"`
	LastErrorTime     time.Time `json:"last_error_time,omitempty"`
	ConnectedAt       time.Time `json:"connected_at,omitempty"`
}

// PanelState 面板状态
type PanelState struct {
	LinkOpen   bool   `json:"link_open"`
	DevicePath string `json:"device_path,omitempty"`
	Failures   int    `json:"failures"`
	Slot       int    `json:"slot"`
	Stats      Stats  `json:"stats"`
}
