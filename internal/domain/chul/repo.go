package chul

import (
	"context"

	"github.com/google/uuid"

	"github.com/mfl/mfl/internal/domain/common"
	"github.com/mfl/mfl/internal/platform/auth"
)

type LookupRepository interface {
	CreateStatus(ctx context.Context, s *Status) error
	GetStatus(ctx context.Context, id uuid.UUID) (*Status, error)
	ListStatuses(ctx context.Context, limit, offset int) ([]*Status, int, error)

	CreateApprover(ctx context.Context, a *Approver) error
	GetApprover(ctx context.Context, id uuid.UUID) (*Approver, error)
	ListApprovers(ctx context.Context, limit, offset int) ([]*Approver, int, error)

	CreateApprovalStatus(ctx context.Context, s *ApprovalStatus) error
	GetApprovalStatus(ctx context.Context, id uuid.UUID) (*ApprovalStatus, error)
	ListApprovalStatuses(ctx context.Context, limit, offset int) ([]*ApprovalStatus, int, error)
}

type UnitRepository interface {
	Create(ctx context.Context, u *Unit) error
	Get(ctx context.Context, id uuid.UUID) (*Unit, error)
	Update(ctx context.Context, u *Unit) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns units visible to scope, newest first.
	List(ctx context.Context, scope auth.Scope, filter UnitFilter, limit, offset int) ([]*Unit, int, error)
	AddContact(ctx context.Context, unitID, contactID uuid.UUID) error
	ListContacts(ctx context.Context, unitID uuid.UUID) ([]*common.Contact, error)
	CreateApproval(ctx context.Context, a *Approval) error
	ListApprovals(ctx context.Context, unitID uuid.UUID) ([]*Approval, error)
}

type WorkerRepository interface {
	Create(ctx context.Context, w *Worker) error
	Get(ctx context.Context, id uuid.UUID) (*Worker, error)
	Update(ctx context.Context, w *Worker) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns workers of units visible to scope, newest first.
	List(ctx context.Context, scope auth.Scope, unitID *uuid.UUID, limit, offset int) ([]*Worker, int, error)
	AddContact(ctx context.Context, workerID, contactID uuid.UUID) error
	ListContacts(ctx context.Context, workerID uuid.UUID) ([]*common.Contact, error)
	CreateApproval(ctx context.Context, a *Approval) error
	ListApprovals(ctx context.Context, workerID uuid.UUID) ([]*Approval, error)
}
