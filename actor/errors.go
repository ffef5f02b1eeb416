package actor

import "errors"

// joinErrors mirrors chan2's helper: errors.Join over a possibly-empty
// slice, so callers never need to special-case "no errors collected".
func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
