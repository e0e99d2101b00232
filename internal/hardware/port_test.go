package hardware

import (
	"errors"
	"io"
	"sync"
)

var errIO = errors.New("input/output error")

type readResult struct {
	data string
	err  error
}

// testPort 可编排读写结果的串口
type testPort struct {
	mu sync.Mutex

	reads      []readResult // 依次返回，用完后返回 (0, io.EOF)
	writeErrs  []error      // 依次用于Write，nil表示成功
	shortWrite bool
	closeErr   error

	written    []string
	readCalls  int
	flushCalls int
	closed     bool
}

func (p *testPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readCalls++
	if len(p.reads) == 0 {
		return 0, io.EOF
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	if r.err != nil {
		return 0, r.err
	}
	return copy(b, r.data), nil
}

func (p *testPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writeErrs) > 0 {
		err := p.writeErrs[0]
		p.writeErrs = p.writeErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	if p.shortWrite {
		return len(b) - 1, nil
	}
	p.written = append(p.written, string(b))
	return len(b), nil
}

func (p *testPort) Flush() error {
	p.mu.Lock()
	p.flushCalls++
	p.mu.Unlock()
	return nil
}

func (p *testPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.closeErr
}

func (p *testPort) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

// testOpener 记录打开次数，按顺序返回端口
type testOpener struct {
	ports []*testPort
	err   error
	paths []string
}

func (o *testOpener) open(path string) (SerialPort, error) {
	o.paths = append(o.paths, path)
	if o.err != nil {
		return nil, o.err
	}
	if len(o.ports) == 0 {
		return &testPort{}, nil
	}
	p := o.ports[0]
	if len(o.ports) > 1 {
		o.ports = o.ports[1:]
	}
	return p, nil
}

func (o *testOpener) calls() int {
	return len(o.paths)
}

func newTestLink(o *testOpener) *Link {
	return NewLink(&LinkConfig{Port: "/dev/ttyTEST0"}, o.open)
}
