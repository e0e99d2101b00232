package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPorts(t *testing.T, ports []string, err error) {
	t.Helper()
	orig := listPorts
	listPorts = func() ([]string, error) { return append([]string(nil), ports...), err }
	t.Cleanup(func() { listPorts = orig })
}

func TestListPorts_Ordering(t *testing.T) {
	stubPorts(t, []string{"/dev/ttyACM0", "/dev/ttyUSB0", "/dev/ttyAMA0", "/dev/serial0", "/dev/rfcomm0"}, nil)

	ports, err := ListPorts()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/serial0", "/dev/ttyAMA0", "/dev/ttyUSB0", "/dev/ttyACM0", "/dev/rfcomm0"}, ports)
}

func TestFindPort(t *testing.T) {
	stubPorts(t, []string{"/dev/ttyUSB1", "/dev/ttyAMA0"}, nil)

	path, err := FindPort("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyAMA0", path)

	// 上次成功的设备仍存在时优先使用
	last := filepath.Join(t.TempDir(), "ttyLAST")
	require.NoError(t, os.WriteFile(last, nil, 0644))
	path, err = FindPort(last)
	require.NoError(t, err)
	assert.Equal(t, last, path)
}

func TestFindPort_NoneOrError(t *testing.T) {
	stubPorts(t, nil, nil)
	path, err := FindPort("/dev/does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, path)

	stubPorts(t, nil, errors.New("enumeration failed"))
	_, err = FindPort("")
	assert.Error(t, err)
}

func TestLink_AutoDetect(t *testing.T) {
	stubPorts(t, []string{"/dev/ttyUSB0"}, nil)
	opener := &testOpener{}
	link := NewLink(&LinkConfig{Port: AutoDevicePath}, opener.open)

	require.NoError(t, link.Open())
	assert.Equal(t, []string{"/dev/ttyUSB0"}, opener.paths)

	stubPorts(t, nil, nil)
	require.NoError(t, link.Close())
	// 设备消失后找不到可用串口
	assert.Error(t, link.Open())
	assert.False(t, link.IsOpen())
}

func TestSerialPortExists(t *testing.T) {
	assert.False(t, SerialPortExists(filepath.Join(t.TempDir(), "missing")))
	assert.True(t, SerialPortExists(t.TempDir()))
}
