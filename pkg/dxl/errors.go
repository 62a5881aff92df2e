package dxl

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotOpen    = errors.New("serial port not open")
	ErrTimeout    = errors.New("response timeout")
	ErrUnassigned = errors.New("servo has no ID assigned")
)

// ConnectionError is returned when the serial port cannot be opened.
type ConnectionError struct {
	Port string
	Baud int
	Err  error
}

func (err *ConnectionError) Error() string {
	return fmt.Sprintf("open %s at %d baud: %v", err.Port, err.Baud, err.Err)
}

func (err *ConnectionError) Unwrap() error { return err.Err }

// TransactionError is returned when a single request fails or times out.
type TransactionError struct {
	ID  byte
	Op  Instruction
	Err error
}

func (err *TransactionError) Error() string {
	return fmt.Sprintf("servo %d %s: %v", err.ID, err.Op, err.Err)
}

func (err *TransactionError) Unwrap() error { return err.Err }
