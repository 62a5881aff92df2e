package dxl

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request/response exchange.
const DefaultTimeout = 50 * time.Millisecond

// Port is the subset of a serial port the client needs.
// go.bug.st/serial ports satisfy it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a serial port by name.
type Opener func(name string, baud int) (Port, error)

// OpenSerial opens a real serial port at 8N1.
func OpenSerial(name string, baud int) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Client owns one serial bus. Requests are serialized; nothing is retried.
type Client struct {
	mu      sync.Mutex
	opener  Opener
	timeout time.Duration
	logger  *zap.Logger

	port Port
	name string
	baud int
}

// Option configures a Client.
type Option func(*Client)

// WithOpener replaces the serial port opener.
func WithOpener(o Opener) Option {
	return func(c *Client) { c.opener = o }
}

// WithTimeout sets the response timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for frame tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a closed client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		opener:  OpenSerial,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open opens the named port, closing any port already held.
func (c *Client) Open(name string, baud int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()

	port, err := c.opener(name, baud)
	if err != nil {
		return &ConnectionError{Port: name, Baud: baud, Err: err}
	}
	if err := port.SetReadTimeout(c.timeout); err != nil {
		port.Close()
		return &ConnectionError{Port: name, Baud: baud, Err: errors.Wrap(err, "set read timeout")}
	}

	c.port, c.name, c.baud = port, name, baud
	c.logger.Info("serial port opened", zap.String("port", name), zap.Int("baud", baud))
	return nil
}

// Reinitialize closes the current port and opens the given one.
func (c *Client) Reinitialize(name string, baud int) error {
	return c.Open(name, baud)
}

// Close releases the port. Closing a closed client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.logger.Info("serial port closed", zap.String("port", c.name))
	c.port = nil
	return errors.Wrapf(err, "close %s", c.name)
}

// IsOpen reports whether a port is held.
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port != nil
}

// PortInfo returns the name and baud rate of the last opened port.
func (c *Client) PortInfo() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.baud
}

// Ping checks that servo id answers.
func (c *Client) Ping(id byte) error {
	_, err := c.transact(id, InstPing, nil)
	return err
}

// Read reads n bytes starting at addr.
func (c *Client) Read(id, addr byte, n int) ([]byte, error) {
	status, err := c.transact(id, InstRead, []byte{addr, byte(n)})
	if err != nil {
		return nil, err
	}
	if len(status.Params) != n {
		return nil, &TransactionError{ID: id, Op: InstRead, Err: errors.Errorf("got %d bytes, want %d", len(status.Params), n)}
	}
	return status.Params, nil
}

// Write writes data starting at addr and waits for the status reply.
func (c *Client) Write(id, addr byte, data []byte) error {
	_, err := c.transact(id, InstWrite, append([]byte{addr}, data...))
	return err
}

// RegWrite stages a write that takes effect on the next Action.
func (c *Client) RegWrite(id, addr byte, data []byte) error {
	_, err := c.transact(id, InstRegWrite, append([]byte{addr}, data...))
	return err
}

// Action applies writes staged with RegWrite. Use BroadcastID to trigger
// every servo at once.
func (c *Client) Action(id byte) error {
	_, err := c.transact(id, InstAction, nil)
	return err
}

// SyncWrite writes one register on many servos with a single broadcast frame.
func (c *Client) SyncWrite(addr byte, width int, values []SyncValue) error {
	if len(values) == 0 {
		return nil
	}
	if width != 1 && width != 2 {
		return errors.Errorf("sync write: unsupported width %d", width)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(BroadcastID, InstSyncWrite, EncodeSyncWrite(addr, width, values))
}

func (c *Client) transact(id byte, inst Instruction, params []byte) (StatusPacket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(id, inst, EncodePacket(id, inst, params)); err != nil {
		return StatusPacket{}, err
	}
	if id == BroadcastID {
		return StatusPacket{}, nil
	}

	status, err := c.receive()
	if err != nil {
		return StatusPacket{}, &TransactionError{ID: id, Op: inst, Err: err}
	}
	if status.ID != id {
		return StatusPacket{}, &TransactionError{ID: id, Op: inst, Err: errors.Errorf("reply from servo %d", status.ID)}
	}
	if status.Error != 0 {
		return status, &TransactionError{ID: id, Op: inst, Err: status.Error}
	}
	return status, nil
}

func (c *Client) send(id byte, inst Instruction, packet []byte) error {
	if c.port == nil {
		return &TransactionError{ID: id, Op: inst, Err: ErrNotOpen}
	}
	if err := c.port.ResetInputBuffer(); err != nil {
		return &TransactionError{ID: id, Op: inst, Err: errors.Wrap(err, "reset input")}
	}
	c.logger.Debug("tx", zap.String("frame", fmt.Sprintf("% x", packet)))
	if _, err := c.port.Write(packet); err != nil {
		return &TransactionError{ID: id, Op: inst, Err: errors.Wrap(err, "write")}
	}
	return nil
}

func (c *Client) receive() (StatusPacket, error) {
	deadline := time.Now().Add(c.timeout)

	head := make([]byte, headerSize)
	if err := c.readFull(head, deadline); err != nil {
		return StatusPacket{}, err
	}
	if head[0] != frameHeader || head[1] != frameHeader {
		return StatusPacket{}, ErrBadHeader
	}
	frame := make([]byte, headerSize+int(head[3]))
	copy(frame, head)
	if err := c.readFull(frame[headerSize:], deadline); err != nil {
		return StatusPacket{}, err
	}
	c.logger.Debug("rx", zap.String("frame", fmt.Sprintf("% x", frame)))
	return DecodeStatus(frame)
}

// readFull fills buf. The port returns zero bytes when its read timeout
// expires.
func (c *Client) readFull(buf []byte, deadline time.Time) error {
	for got := 0; got < len(buf); {
		n, err := c.port.Read(buf[got:])
		if err != nil {
			return errors.Wrap(err, "read")
		}
		if n == 0 || time.Now().After(deadline) && got+n < len(buf) {
			return ErrTimeout
		}
		got += n
	}
	return nil
}
