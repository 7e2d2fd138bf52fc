package services

import (
	stderrors "errors"

	"github.com/abrezinsky/votosafe/internal/auth"
	"github.com/abrezinsky/votosafe/internal/errors"
	"github.com/abrezinsky/votosafe/internal/repository"
)

// Service errors. Messages are shown to voters as-is.
var (
	ErrInvalidCredentials = errors.Unauthorized("DNI o PIN incorrectos").WithCode("INVALID_CREDENTIALS")
	ErrDuplicateID        = errors.Conflict("El DNI ya está registrado").WithCode("DUPLICATE_ID")
	ErrIncompleteBallot   = errors.Validation("Debes votar en todas las categorías").WithCode("INCOMPLETE_BALLOT")
	ErrUserNotFound       = errors.NotFound("Usuario no encontrado").WithCode("USER_NOT_FOUND")
	ErrElectionNotFound   = errors.NotFound("Elección no encontrada").WithCode("ELECTION_NOT_FOUND")
	ErrAlreadyVoted       = errors.Conflict("Ya emitiste tu voto en esta elección").WithCode("ALREADY_VOTED")
	ErrSessionExpired     = errors.Unauthorized("Tu sesión ha expirado").WithCode("SESSION_EXPIRED")
	ErrVoteNotFound       = errors.NotFound("No hay voto registrado para esta elección").WithCode("VOTE_NOT_FOUND")
	ErrCodeMismatch       = auth.ErrCodeMismatch

	ErrInvalidDNI     = errors.Validation("Ingresa un DNI válido de 8 dígitos").WithCode("INVALID_DNI")
	ErrInvalidPIN     = errors.Validation("El PIN debe tener 4 dígitos").WithCode("INVALID_PIN")
	ErrPINMismatch    = errors.Validation("Los PINs no coinciden").WithCode("PIN_MISMATCH")
	ErrInvalidCelular = errors.Validation("El celular debe tener 9 dígitos").WithCode("INVALID_CELULAR")
)

// invalid builds a validation error carrying code
func invalid(code, format string, args ...any) *errors.Error {
	return errors.Validationf(format, args...).WithCode(code)
}

// translate maps repository sentinels onto service errors
func translate(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, repository.ErrNotFound):
		return notFound
	case stderrors.Is(err, repository.ErrAlreadyVoted):
		return ErrAlreadyVoted
	}
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.Internal(err)
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
