// Package dxltest provides an in-memory AX-12 bus for tests.
package dxltest

import (
	"bytes"
	"sync"
	"time"

	"github.com/gwillem/dominobot/pkg/dxl"
)

const tableSize = 50

// Servo is one simulated servo's control table.
type Servo struct {
	Regs      [tableSize]byte
	ErrorBits byte
	Silent    bool // never answers

	staged []write
}

type write struct {
	addr byte
	data []byte
}

// Word returns the little-endian 16-bit register at addr.
func (s *Servo) Word(addr byte) uint16 {
	return uint16(s.Regs[addr]) | uint16(s.Regs[addr+1])<<8
}

// SetWord stores a 16-bit register at addr.
func (s *Servo) SetWord(addr byte, v uint16) {
	s.Regs[addr] = byte(v)
	s.Regs[addr+1] = byte(v >> 8)
}

// Bus simulates servos behind one serial port. It implements dxl.Port.
type Bus struct {
	mu     sync.Mutex
	servos map[byte]*Servo
	rx     bytes.Buffer
	frames [][]byte

	// AutoMove copies goal position writes into present position, as if
	// the servo reached its goal instantly.
	AutoMove bool
	// FailOpen makes Open fail with this error.
	FailOpen error

	open  bool
	Name  string
	Baud  int
	Opens int
}

// NewBus returns an empty bus with AutoMove enabled.
func NewBus() *Bus {
	return &Bus{servos: map[byte]*Servo{}, AutoMove: true}
}

// AddServo attaches an AX-12 with factory defaults, centered.
func (b *Bus) AddServo(id byte) *Servo {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Servo{}
	s.SetWord(dxl.ModelNumber.Address, 12)
	s.Regs[dxl.ID.Address] = id
	s.Regs[dxl.BaudRate.Address] = 1
	s.SetWord(dxl.CCWAngleLimit.Address, dxl.MaxTicks)
	s.SetWord(dxl.GoalPosition.Address, 512)
	s.SetWord(dxl.PresentPosition.Address, 512)
	s.Regs[dxl.PresentVoltage.Address] = 120
	s.Regs[dxl.PresentTemperature.Address] = 35
	b.servos[id] = s
	return s
}

// Servo returns the simulated servo with the given ID.
func (b *Bus) Servo(id byte) *Servo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.servos[id]
}

// Open satisfies dxl.Opener.
func (b *Bus) Open(name string, baud int) (dxl.Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailOpen != nil {
		return nil, b.FailOpen
	}
	b.open = true
	b.Name, b.Baud = name, baud
	b.Opens++
	return b, nil
}

// SetFailOpen changes FailOpen while the bus is in use.
func (b *Bus) SetFailOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.FailOpen = err
}

// OpenCount returns how many times the port was opened.
func (b *Bus) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Opens
}

// IsOpen reports whether the port is held by a client.
func (b *Bus) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Frames returns copies of every frame written so far.
func (b *Bus) Frames() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.frames))
	for i, f := range b.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// LastFrame returns the most recent frame written, or nil.
func (b *Bus) LastFrame() []byte {
	frames := b.Frames()
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

// ClearFrames forgets recorded frames.
func (b *Bus) ClearFrames() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = nil
}

func (b *Bus) SetReadTimeout(time.Duration) error { return nil }

func (b *Bus) ResetInputBuffer() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rx.Reset()
	return nil
}

// Read returns pending reply bytes; zero bytes means the read timed out.
func (b *Bus) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rx.Len() == 0 {
		return 0, nil
	}
	return b.rx.Read(p)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	return nil
}

// Write accepts one complete instruction packet and queues the reply.
func (b *Bus) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, append([]byte(nil), p...))
	if len(p) < 6 || p[0] != 0xFF || p[1] != 0xFF {
		return len(p), nil
	}
	id, inst := p[2], dxl.Instruction(p[4])
	params := p[5 : len(p)-1]

	if id == dxl.BroadcastID {
		b.broadcast(inst, params)
		return len(p), nil
	}

	s, ok := b.servos[id]
	if !ok || s.Silent {
		return len(p), nil
	}

	var reply []byte
	switch inst {
	case dxl.InstRead:
		addr, n := int(params[0]), int(params[1])
		reply = append(reply, s.Regs[addr:addr+n]...)
	case dxl.InstWrite:
		b.apply(s, params[0], params[1:])
	case dxl.InstRegWrite:
		s.staged = append(s.staged, write{params[0], append([]byte(nil), params[1:]...)})
		s.Regs[dxl.Registered.Address] = 1
	case dxl.InstAction:
		b.action(s)
	}
	b.rx.Write(dxl.EncodePacket(id, dxl.Instruction(s.ErrorBits), reply))
	return len(p), nil
}

func (b *Bus) broadcast(inst dxl.Instruction, params []byte) {
	switch inst {
	case dxl.InstAction:
		for _, s := range b.servos {
			b.action(s)
		}
	case dxl.InstSyncWrite:
		addr, width := params[0], int(params[1])
		for rest := params[2:]; len(rest) >= width+1; rest = rest[width+1:] {
			if s, ok := b.servos[rest[0]]; ok {
				b.apply(s, addr, rest[1:width+1])
			}
		}
	}
}

func (b *Bus) action(s *Servo) {
	for _, w := range s.staged {
		b.apply(s, w.addr, w.data)
	}
	s.staged = nil
	s.Regs[dxl.Registered.Address] = 0
}

func (b *Bus) apply(s *Servo, addr byte, data []byte) {
	copy(s.Regs[addr:], data)
	if addr == dxl.ID.Address && len(data) > 0 {
		for id, other := range b.servos {
			if other == s && id != data[0] {
				delete(b.servos, id)
				b.servos[data[0]] = s
			}
		}
	}
	if b.AutoMove && addr <= dxl.GoalPosition.Address+1 && int(addr)+len(data) > int(dxl.GoalPosition.Address) {
		s.SetWord(dxl.PresentPosition.Address, s.Word(dxl.GoalPosition.Address))
	}
}
