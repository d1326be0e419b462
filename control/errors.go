package control

import "errors"

// ErrUnknownCommand is returned by Dispatch for an unrecognized Kind.
var ErrUnknownCommand = errors.New("unknown command")
