package service

import (
	"errors"
	"fmt"

	"totemcraft.ai/internal/sim/totem"
)

var (
	ErrUnknownTotem     = totem.ErrUnknownTotem
	ErrPermissionDenied = errors.New("permission denied")
	ErrIndestructible   = errors.New("totem is indestructible")
	ErrNotRegistered    = errors.New("totem not registered")
	ErrObstructed       = errors.New("location obstructed")
	ErrEmptyName        = errors.New("name is empty")
	ErrNameTooLong      = fmt.Errorf("name longer than %d characters", MaxNameLength)
)

type QuotaError struct {
	Max int
}

func (e *QuotaError) Error() string { return fmt.Sprintf("totem limit %d reached", e.Max) }
