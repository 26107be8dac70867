package delivery

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type transitionKey struct {
	role enums.WorkerRole
	from enums.OrderStatus
}

// transitions is the whole state machine: stock staff start orders, drivers
// pick them up and complete them.
var transitions = map[transitionKey]enums.OrderStatus{
	{enums.WorkerRoleStock, enums.OrderStatusOrdered}:       enums.OrderStatusInProgress,
	{enums.WorkerRoleDelivery, enums.OrderStatusOrdered}:    enums.OrderStatusPickedUp,
	{enums.WorkerRoleDelivery, enums.OrderStatusInProgress}: enums.OrderStatusPickedUp,
	{enums.WorkerRoleDelivery, enums.OrderStatusPickedUp}:   enums.OrderStatusDelivered,
}

// nextStatus returns the status the worker moves the order to.
func nextStatus(worker *models.Delivery, order *models.Order) (enums.OrderStatus, error) {
	if order.Status.IsTerminal() {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order already delivered")
	}
	to, ok := transitions[transitionKey{worker.Role, order.Status}]
	if !ok {
		return "", pkgerrors.Newf(pkgerrors.CodeStateConflict, "a %s worker cannot move an order from %q", worker.Role, order.Status)
	}
	if order.Status == enums.OrderStatusPickedUp && !assignedTo(order, worker.ID) {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order was picked up by another worker")
	}
	return to, nil
}

func assignedTo(order *models.Order, workerID uuid.UUID) bool {
	return order.DeliveryID != nil && *order.DeliveryID == workerID
}
