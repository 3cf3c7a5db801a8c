package middleware

import (
	"fmt"

	"github.com/modfin/mimex"
	"github.com/modfin/mimex/envelope"
)

// Recover turns a panic in the handler chain into an error.
func Recover(next mimex.HandlerFunc) mimex.HandlerFunc {
	return func(e *envelope.Envelope) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("recovered: %v", r)
			}
		}()
		return next(e)
	}
}
