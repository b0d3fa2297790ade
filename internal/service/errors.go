package service

import (
	"errors"

	"edudrive/internal/domain"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicatePath)
}
