package hardware

import "sync"

// StatusDisplay 两行状态显示
type StatusDisplay interface {
	SetUpper(text string)
	SetLower(text string)
}

// TextDisplay 内存中的两行文本显示
type TextDisplay struct {
	mu    sync.RWMutex
	upper string
	lower string
}

// NewTextDisplay 创建文本显示，初始为空
func NewTextDisplay() *TextDisplay {
	return &TextDisplay{}
}

// SetUpper 设置上行文本
func (d *TextDisplay) SetUpper(text string) {
	d.mu.Lock()
	d.upper = text
	d.mu.Unlock()
}

// SetLower 设置下行文本
func (d *TextDisplay) SetLower(text string) {
	d.mu.Lock()
	d.lower = text
	d.mu.Unlock()
}

// Lines 返回当前两行文本
func (d *TextDisplay) Lines() (upper, lower string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.upper, d.lower
}
