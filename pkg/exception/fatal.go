package exception

import "errors"

// fatalError marks protocol violations and internal logic bugs. The
// strategy loop halts on these instead of continuing with a possibly
// inconsistent position. Everything else is recoverable and only logged.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// Fatal wraps err so that IsFatal reports true for it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err or any wrapped error was marked fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
