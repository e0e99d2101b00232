package shell

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/hardware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newSimSession() (*hardware.SimulatedPort, *Session) {
	sim := hardware.NewSimulatedPort()
	return sim, NewSession(&hardware.LinkConfig{Port: "sim"}, sim.Opener())
}

func TestSession_RequiresOpen(t *testing.T) {
	_, s := newSimSession()

	assert.True(t, apperrors.Is(s.Key("1"), apperrors.ErrDeviceOffline))
	assert.True(t, apperrors.Is(s.Tick(), apperrors.ErrDeviceOffline))
	assert.NoError(t, s.Close())

	out, err := s.Status(false)
	require.NoError(t, err)
	assert.Contains(t, out, "link:     closed")
}

func TestSession_KeyAndTick(t *testing.T) {
	sim, s := newSimSession()
	require.NoError(t, s.Open(""))

	require.NoError(t, s.Key("6"))
	assert.Equal(t, 6, sim.LastKey())

	assert.True(t, apperrors.Is(s.Key("8"), apperrors.ErrInvalidParam))
	assert.True(t, apperrors.Is(s.Key("x"), apperrors.ErrInvalidParam))

	require.NoError(t, s.Tick())
	out, err := s.Status(false)
	require.NoError(t, err)
	assert.Contains(t, out, "SIM PANEL READY")
	assert.Contains(t, out, "link:     open sim")
	assert.Contains(t, out, "slot:     1")

	out, err = s.Status(true)
	require.NoError(t, err)
	assert.Contains(t, out, `"link_open":true`)
	assert.Contains(t, out, `"upper":"SIM PANEL READY`)
}

func TestSession_OpenPath(t *testing.T) {
	sim, s := newSimSession()
	require.NoError(t, s.Open("/dev/ttyUSB3"))
	out, _ := s.Status(false)
	assert.Contains(t, out, "/dev/ttyUSB3")

	// 重新打开会关闭旧链路
	require.NoError(t, s.Open(""))
	assert.Equal(t, 2, sim.Opens())
	require.NoError(t, s.Close())
}

func TestSession_OpenFailure(t *testing.T) {
	sim, s := newSimSession()
	sim.SetOffline(true)

	err := s.Open("")
	assert.True(t, apperrors.Is(err, apperrors.ErrSerialPortOpen))
}

func TestSession_Ports(t *testing.T) {
	_, s := newSimSession()
	s.listPorts = func() ([]string, error) { return []string{"/dev/serial0"}, nil }

	ports, err := s.Ports()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/serial0"}, ports)
}

// stickyPort 关闭总是失败的串口
type stickyPort struct {
	closes int
}

func (p *stickyPort) Read([]byte) (int, error)    { return 0, io.EOF }
func (p *stickyPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *stickyPort) Flush() error                { return nil }
func (p *stickyPort) Close() error {
	p.closes++
	return errors.New("device busy")
}

func TestSession_ReopenAfterCloseFailure(t *testing.T) {
	var ports []*stickyPort
	opener := func(string) (hardware.SerialPort, error) {
		p := &stickyPort{}
		ports = append(ports, p)
		return p, nil
	}
	s := NewSession(&hardware.LinkConfig{Port: "sticky"}, opener)
	core, logs := observer.New(zapcore.WarnLevel)
	s.logger = zap.New(core)

	require.NoError(t, s.Open(""))
	require.NoError(t, s.Open(""))

	require.Len(t, ports, 2)
	assert.Equal(t, 1, ports[0].closes)
	assert.Equal(t, 0, ports[1].closes)
	require.NoError(t, s.Key("2"))

	entries := logs.FilterMessage("关闭旧链路失败").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "device busy")
}
