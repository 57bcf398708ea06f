package domain

import "strings"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleKitchen  Role = "kitchen"
	RoleCourier  Role = "courier"
	RoleAdmin    Role = "admin"
)

type edge struct {
	from OrderStatus
	to   OrderStatus
}

var roleEdges = map[Role][]edge{
	RoleKitchen: {
		{StatusConfirmed, StatusPreparing},
		{StatusPreparing, StatusReady},
		{StatusReady, StatusPreparing},
	},
	RoleCourier: {
		{StatusReady, StatusDelivering},
		{StatusDelivering, StatusDelivered},
		{StatusSucceeded, StatusDelivered},
	},
}

func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

func (r Role) IsStaff() bool {
	return r == RoleKitchen || r == RoleCourier || r == RoleAdmin
}

// RoleMayTransition reports whether role may drive the legal transition from -> to.
// Legality against the transition table is checked separately.
func RoleMayTransition(role Role, from, to OrderStatus) bool {
	if role == RoleAdmin {
		return true
	}
	for _, e := range roleEdges[role] {
		if e.from == from && e.to == to {
			return true
		}
	}
	return false
}
