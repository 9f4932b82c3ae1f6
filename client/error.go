package client

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrNoneFunction = errors.New("A function name must be provided")
	ErrConnection   = errors.New("Client is not connected to a server")
	ErrTimeOut      = errors.New("Waiting for server response timed out")
	ErrUnknown      = errors.New("Unknown error")
)

// ErrorHandler is a callback function for handling client-side errors,
// including server-reported ERROR packets and agent disconnects.
type ErrorHandler func(error)

// getError extracts the error code/message pair from an ERROR packet body.
func getError(data []byte) error {
	parts := bytes.SplitN(data, []byte{0}, 2)
	if len(parts) != 2 {
		return fmt.Errorf("client: malformed error packet: %v", data)
	}
	return fmt.Errorf("%s: %s", parts[0], parts[1])
}
