// Package dxl speaks the Dynamixel 1.0 half-duplex serial protocol used by
// AX-12 servos.
package dxl

import (
	"fmt"

	"github.com/pkg/errors"
)

// Instruction is a protocol instruction byte.
type Instruction byte

const (
	InstPing      Instruction = 0x01
	InstRead      Instruction = 0x02
	InstWrite     Instruction = 0x03
	InstRegWrite  Instruction = 0x04
	InstAction    Instruction = 0x05
	InstReset     Instruction = 0x06
	InstSyncWrite Instruction = 0x83
)

func (i Instruction) String() string {
	switch i {
	case InstPing:
		return "ping"
	case InstRead:
		return "read"
	case InstWrite:
		return "write"
	case InstRegWrite:
		return "reg_write"
	case InstAction:
		return "action"
	case InstReset:
		return "reset"
	case InstSyncWrite:
		return "sync_write"
	default:
		return fmt.Sprintf("0x%02X", byte(i))
	}
}

const (
	// BroadcastID addresses every servo on the bus. Servos never reply to it.
	BroadcastID byte = 0xFE
	// MaxID is the highest assignable servo ID.
	MaxID = 253

	frameHeader = 0xFF
	headerSize  = 4 // FF FF id len
)

var (
	ErrBadHeader   = errors.New("bad packet header")
	ErrBadChecksum = errors.New("bad packet checksum")
	ErrShortPacket = errors.New("short packet")
)

// StatusError is the error bitmask a servo reports in its status packet.
type StatusError byte

const (
	ErrVoltage     StatusError = 1 << 0
	ErrAngleLimit  StatusError = 1 << 1
	ErrOverheat    StatusError = 1 << 2
	ErrRange       StatusError = 1 << 3
	ErrChecksum    StatusError = 1 << 4
	ErrOverload    StatusError = 1 << 5
	ErrInstruction StatusError = 1 << 6
)

var statusErrorNames = []struct {
	bit  StatusError
	name string
}{
	{ErrVoltage, "input voltage"},
	{ErrAngleLimit, "angle limit"},
	{ErrOverheat, "overheating"},
	{ErrRange, "range"},
	{ErrChecksum, "checksum"},
	{ErrOverload, "overload"},
	{ErrInstruction, "instruction"},
}

func (e StatusError) Error() string {
	msg := "servo error:"
	for _, n := range statusErrorNames {
		if e&n.bit != 0 {
			msg += " " + n.name
		}
	}
	return msg
}

// Has reports whether flag is set.
func (e StatusError) Has(flag StatusError) bool {
	return e&flag != 0
}

// StatusPacket is a decoded servo reply.
type StatusPacket struct {
	ID     byte
	Error  StatusError
	Params []byte
}

func checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return ^sum
}

// EncodePacket builds an instruction packet:
// [0xFF, 0xFF, ID, LENGTH, INSTRUCTION, ...PARAMS, CHECKSUM].
func EncodePacket(id byte, inst Instruction, params []byte) []byte {
	packet := make([]byte, 0, headerSize+2+len(params))
	packet = append(packet, frameHeader, frameHeader)
	packet = append(packet, id, byte(len(params)+2), byte(inst))
	packet = append(packet, params...)
	return append(packet, checksum(packet[2:]))
}

// DecodeStatus parses one complete status packet.
func DecodeStatus(buf []byte) (StatusPacket, error) {
	if len(buf) < headerSize+2 {
		return StatusPacket{}, ErrShortPacket
	}
	if buf[0] != frameHeader || buf[1] != frameHeader {
		return StatusPacket{}, ErrBadHeader
	}
	n := int(buf[3])
	if n < 2 || len(buf) < headerSize+n {
		return StatusPacket{}, ErrShortPacket
	}
	frame := buf[:headerSize+n]
	if checksum(frame[2:len(frame)-1]) != frame[len(frame)-1] {
		return StatusPacket{}, ErrBadChecksum
	}
	return StatusPacket{
		ID:     frame[2],
		Error:  StatusError(frame[4]),
		Params: append([]byte(nil), frame[5:len(frame)-1]...),
	}, nil
}

// SyncValue is one servo's entry in a sync write.
type SyncValue struct {
	ID    byte
	Value uint16
}

// EncodeSyncWrite builds a broadcast sync write of width bytes (1 or 2) at
// addr. Params are [addr, width, (id, lo[, hi])...].
func EncodeSyncWrite(addr byte, width int, values []SyncValue) []byte {
	params := make([]byte, 0, 2+len(values)*(width+1))
	params = append(params, addr, byte(width))
	for _, v := range values {
		params = append(params, v.ID, byte(v.Value))
		if width == 2 {
			params = append(params, byte(v.Value>>8))
		}
	}
	return EncodePacket(BroadcastID, InstSyncWrite, params)
}
