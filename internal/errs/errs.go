// Package errs defines the engine's status codes. Every fallible operation
// returns one of these (possibly wrapped with fmt.Errorf and %w), so callers
// compare with errors.Is.
package errs

import "strconv"

// Code is a small negative status code. The zero value is not an error and is
// never returned.
type Code int

const (
	ErrAllocation         Code = -1
	ErrInvalidAttribute   Code = -2
	ErrInvalidValue       Code = -3
	ErrInvalidState       Code = -4
	ErrInvalidNumChannels Code = -5
	ErrInvalidNumFrames   Code = -6
	ErrInvalidNumBits     Code = -7
	ErrInvalidReturnValue Code = -8
	ErrFileNotFound       Code = -9
	ErrFileNotReadable    Code = -10
	ErrFileNotWritable    Code = -11
	ErrFileNotSeekable    Code = -12
)

var messages = map[Code]string{
	ErrAllocation:         "allocation failed",
	ErrInvalidAttribute:   "invalid attribute",
	ErrInvalidValue:       "invalid value",
	ErrInvalidState:       "invalid state",
	ErrInvalidNumChannels: "invalid number of channels",
	ErrInvalidNumFrames:   "invalid number of frames",
	ErrInvalidNumBits:     "invalid number of bits",
	ErrInvalidReturnValue: "invalid return value",
	ErrFileNotFound:       "file not found",
	ErrFileNotReadable:    "file not readable",
	ErrFileNotWritable:    "file not writable",
	ErrFileNotSeekable:    "file not seekable",
}

func (c Code) Error() string {
	if msg, ok := messages[c]; ok {
		return "chipkit: " + msg
	}
	return "chipkit: status " + strconv.Itoa(int(c))
}

// Int returns the raw status code.
func (c Code) Int() int { return int(c) }
