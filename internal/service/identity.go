package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/food_order/internal/domain"
)

// Identity is who is calling, as established by the session layer. UserID
// is nil for guests, who are known only by their cart token.
type Identity struct {
	UserID    *uuid.UUID
	Role      domain.Role
	CartToken string
	IP        string
}

func (i Identity) Authenticated() bool {
	return i.UserID != nil
}

func (i Identity) ActorID() string {
	if i.UserID == nil {
		return ""
	}
	return i.UserID.String()
}

// RateKey identifies the caller for order rate limiting.
func (i Identity) RateKey() string {
	switch {
	case i.UserID != nil:
		return "user:" + i.UserID.String()
	case i.IP != "":
		return "ip:" + i.IP
	default:
		return ""
	}
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", ErrValidation, s)
	}
	return id, nil
}
