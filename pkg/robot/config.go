package robot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf16"

	"github.com/pkg/errors"

	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/motion"
)

const DefaultConfigFile = "dominobot.cfg"

// ConfigVersion is the only blob layout Decode accepts.
const ConfigVersion = 0

// nullString is the length marker of a null string in the blob.
const nullString = 0xFFFFFFFF

// maxStringBytes bounds string fields so a corrupt length cannot exhaust
// memory.
const maxStringBytes = 1 << 16

// Config holds the persisted robot configuration.
type Config struct {
	ClampBaud int
	ClampPort string
	ServoBaud int
	ServoPort string
	Speed     float64 // cruise speed in rpm
	Mode      motion.Mode
	ServoIDs  []int // per slot, dxl.Unassigned when empty
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		ClampBaud: 9600,
		ClampPort: "COM3",
		ServoBaud: 1_000_000,
		ServoPort: "COM9",
		Speed:     30,
		Mode:      motion.Manual,
		ServoIDs:  []int{dxl.Unassigned, dxl.Unassigned, dxl.Unassigned, dxl.Unassigned},
	}
}

// ConfigError is returned when a stored configuration cannot be used.
type ConfigError struct {
	Path string
	Err  error
}

func (err *ConfigError) Error() string {
	if err.Path == "" {
		return fmt.Sprintf("config: %v", err.Err)
	}
	return fmt.Sprintf("config %s: %v", err.Path, err.Err)
}

func (err *ConfigError) Unwrap() error { return err.Err }

// Validate checks the slot table.
func (c Config) Validate() error {
	if n := len(c.ServoIDs); n < len(AllSlots())-1 || n > len(AllSlots()) {
		return errors.Errorf("expected 3 or 4 servo ids, got %d", n)
	}
	seen := map[int]Slot{}
	for i, id := range c.ServoIDs {
		if id == dxl.Unassigned {
			continue
		}
		if id < 0 || id > dxl.MaxID {
			return errors.Errorf("%s: servo id %d out of range", Slot(i), id)
		}
		if prev, ok := seen[id]; ok {
			return errors.Errorf("%s: servo id %d already used by %s", Slot(i), id, prev)
		}
		seen[id] = Slot(i)
	}
	if c.Speed <= 0 {
		return errors.Errorf("speed must be positive, got %g", c.Speed)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	c.ServoIDs = append([]int(nil), c.ServoIDs...)
	return c
}

// Encode writes c as a big-endian blob.
func (c Config) Encode(w io.Writer) error {
	e := encoder{w: bufio.NewWriter(w)}
	e.int32(ConfigVersion)
	e.int32(c.ClampBaud)
	e.string(c.ClampPort)
	e.int32(c.ServoBaud)
	e.string(c.ServoPort)
	e.float64(c.Speed)
	e.int32(int(c.Mode))
	e.int32(len(c.ServoIDs))
	for _, id := range c.ServoIDs {
		e.int32(id)
	}
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// Decode reads a blob written by Encode.
func Decode(r io.Reader) (Config, error) {
	d := decoder{r: bufio.NewReader(r)}
	if v := d.int32(); d.err == nil && v != ConfigVersion {
		return Config{}, &ConfigError{Err: errors.Errorf("unsupported version %d", v)}
	}

	var c Config
	c.ClampBaud = d.int32()
	c.ClampPort = d.string()
	c.ServoBaud = d.int32()
	c.ServoPort = d.string()
	c.Speed = d.float64()
	c.Mode = motion.Mode(d.int32())
	n := d.int32()
	if d.err == nil && (n < 0 || n > len(AllSlots())) {
		return Config{}, &ConfigError{Err: errors.Errorf("bad servo id count %d", n)}
	}
	for i := 0; i < n && d.err == nil; i++ {
		c.ServoIDs = append(c.ServoIDs, d.int32())
	}
	if d.err != nil {
		return Config{}, &ConfigError{Err: d.err}
	}
	return c, nil
}

// LoadConfig reads the configuration stored at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Path: path, Err: err}
	}
	c, err := Decode(bytes.NewReader(data))
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return Config{}, err
	}
	return c, nil
}

// Save writes c to path.
func (c Config) Save(path string) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

// ConfigExists returns true if a configuration file exists at path.
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) put(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.BigEndian, v)
	}
}

func (e *encoder) int32(v int) { e.put(int32(v)) }

func (e *encoder) float64(v float64) { e.put(math.Float64bits(v)) }

// string writes the UTF-16 code units of s behind their byte length.
func (e *encoder) string(s string) {
	units := utf16.Encode([]rune(s))
	e.put(uint32(2 * len(units)))
	e.put(units)
}

type decoder struct {
	r   *bufio.Reader
	err error
}

func (d *decoder) get(v any) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, binary.BigEndian, v); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		d.err = errors.Wrap(err, "truncated data")
	}
}

func (d *decoder) int32() int {
	var v int32
	d.get(&v)
	return int(v)
}

func (d *decoder) float64() float64 {
	var v uint64
	d.get(&v)
	return math.Float64frombits(v)
}

func (d *decoder) string() string {
	var n uint32
	d.get(&n)
	if d.err != nil || n == nullString {
		return ""
	}
	if n%2 != 0 || n > maxStringBytes {
		d.err = errors.Errorf("bad string length %d", n)
		return ""
	}
	units := make([]uint16, n/2)
	d.get(units)
	return string(utf16.Decode(units))
}
