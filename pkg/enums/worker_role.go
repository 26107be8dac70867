package enums

import "fmt"

// WorkerRole distinguishes the two kinds of fulfillment staff.
type WorkerRole string

const (
	WorkerRoleDelivery WorkerRole = "delivery"
	WorkerRoleStock    WorkerRole = "stock"
)

var validWorkerRoles = []WorkerRole{
	WorkerRoleDelivery,
	WorkerRoleStock,
}

func (r WorkerRole) String() string {
	return string(r)
}

func (r WorkerRole) IsValid() bool {
	for _, candidate := range validWorkerRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// UserRole maps the worker role onto the token role used by the auth middleware.
func (r WorkerRole) UserRole() UserRole {
	if r == WorkerRoleStock {
		return UserRoleStock
	}
	return UserRoleDelivery
}

func ParseWorkerRole(value string) (WorkerRole, error) {
	for _, candidate := range validWorkerRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid worker role %q", value)
}
