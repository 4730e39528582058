package uart

import (
	"fmt"
	"strings"

	gobug "go.bug.st/serial"
)

type Parity gobug.Parity

func (pa Parity) Get() gobug.Parity {
	return gobug.Parity(pa)
}

// Letter returns the conventional single-letter name (N, O, E, M, S).
func (pa Parity) Letter() byte {
	switch pa {
	case ParityOdd:
		return 'O'
	case ParityEven:
		return 'E'
	case ParityMark:
		return 'M'
	case ParitySpace:
		return 'S'
	default:
		return 'N'
	}
}

func (pa Parity) String() string {
	return string(pa.Letter())
}

const (
	// ParityNone represents no parity bit
	ParityNone = Parity(gobug.NoParity)
	// ParityOdd represents odd parity bit
	ParityOdd = Parity(gobug.OddParity)
	// ParityEven represents even parity bit
	ParityEven = Parity(gobug.EvenParity)
	// ParityMark represents mark parity bit (always 1)
	ParityMark = Parity(gobug.MarkParity)
	// ParitySpace represents space parity bit (always 0)
	ParitySpace = Parity(gobug.SpaceParity)
)

// ParseParity accepts N, O, E, M or S (case-insensitive). The empty string is ParityNone.
func ParseParity(s string) (Parity, error) {
	switch strings.ToUpper(s) {
	case "", "N":
		return ParityNone, nil
	case "O":
		return ParityOdd, nil
	case "E":
		return ParityEven, nil
	case "M":
		return ParityMark, nil
	case "S":
		return ParitySpace, nil
	}
	return ParityNone, fmt.Errorf("unsupported parity %q (use N,O,E,M,S)", s)
}
