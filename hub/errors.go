package hub

import "errors"

// ErrClosed is returned by Subscription.Receive after the subscription is
// closed or the hub shuts down.
var ErrClosed = errors.New("subscription closed")
