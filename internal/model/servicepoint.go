package model

import "github.com/google/uuid"

// ServicePoint is an attending station (counter, room) at a branch,
// eligible to serve a subset of the branch's services.
type ServicePoint struct {
	Base
	BranchID   uuid.UUID   `db:"branch_id" json:"branch_id"`
	Name       string      `db:"name" json:"name"`
	IsActive   bool        `db:"is_active" json:"is_active"`
	ServiceIDs []uuid.UUID `db:"-" json:"service_ids"`
}

// Supports reports whether the point can serve the given service.
func (p *ServicePoint) Supports(serviceID uuid.UUID) bool {
	for _, id := range p.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}
