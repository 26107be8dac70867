package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// WorkerDTO is the public view of a worker; the password hash never leaves
// the package.
type WorkerDTO struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Phone            string           `json:"phone"`
	Role             enums.WorkerRole `json:"role"`
	DateOfAssignment *time.Time       `json:"dateOfAssignment,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// CreateWorkerInput registers a new worker.
type CreateWorkerInput struct {
	Name     string
	Phone    string
	Password string
	Role     string
}

// Transition describes an accepted status change.
type Transition struct {
	From   enums.OrderStatus `json:"from"`
	To     enums.OrderStatus `json:"to"`
	Order  orders.OrderDTO   `json:"order"`
	Worker WorkerDTO         `json:"worker"`
}

func ToWorkerDTO(w models.Delivery) WorkerDTO {
	return WorkerDTO{
		ID:               w.ID,
		Name:             w.Name,
		Phone:            w.Phone,
		Role:             w.Role,
		DateOfAssignment: w.DateOfAssignment,
		CreatedAt:        w.CreatedAt,
	}
}
