// Package mail submits the rendered digest over SMTP. Submission is paced
// with a token bucket, retried on transient failures and guarded by a
// circuit breaker; a no-op transport stands in when delivery is disabled.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"syscall"
)

// TransportError classifies a failed mail submission. SMTP reply codes in
// the 4yz range mean the server wants the client to try again later; 5yz
// means the message was refused for good.
type TransportError struct {
	// Code is the SMTP reply code, or zero when the failure happened below
	// the protocol (dial, TLS, timeout).
	Code int

	Temporary bool

	Err error
}

func (e *TransportError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mail transport error (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("mail transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retriable implements the retry package's classification override.
func (e *TransportError) Retriable() bool {
	return e.Temporary
}

// AsTransportError extracts a TransportError from an error chain.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// classifySendError maps a net/smtp failure onto a TransportError. Context
// errors pass through unchanged so cancellation stays visible to the run
// state machine.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// net/smtp surfaces server replies as textproto errors.
	var replyErr *textproto.Error
	if errors.As(err, &replyErr) {
		return &TransportError{
			Code:      replyErr.Code,
			Temporary: replyErr.Code >= 400 && replyErr.Code < 500,
			Err:       err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Temporary: true, Err: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &TransportError{Temporary: true, Err: err}
	}

	// 接続系の失敗はリトライで回復することが多い
	return &TransportError{Temporary: true, Err: err}
}
