package remote

import (
	"github.com/pkg/errors"
)

var (
	// ErrRemote is the generic recoverable failure every remote call may
	// return. Strategies downgrade it to a fallback, never surface it.
	ErrRemote = errors.New("remote fetch failed")

	// ErrNotFound marks a referenced entity missing at action time, e.g.
	// liking an already deleted post. Callers treat it as a no-op.
	ErrNotFound = errors.New("entity not found")

	// ErrTooManyAuthors rejects an AuthorIn clause above MaxAuthorIn.
	ErrTooManyAuthors = errors.Errorf("authorIn exceeds the %d id limit", MaxAuthorIn)
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WrapRemote tags err as a recoverable remote failure while keeping the
// underlying cause in the chain for logging.
func WrapRemote(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.WithMessage(ErrRemote, err.Error()), msg)
}
