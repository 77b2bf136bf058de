package store

import (
	"context"
	"errors"
	"time"

	"comptoir/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrRevisionConflict = errors.New("sale revision conflict")
)

// SaleFilter narrows ListSales. Zero values mean "any".
type SaleFilter struct {
	StoreID  string
	ClientID string
	Status   domain.SaleStatus
	IsCredit *bool
	From     time.Time
	To       time.Time
	Limit    int
}

type Repository interface {
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)
	// UpdateSalePayment persists the new payment state of a sale. The write
	// only lands if the stored revision still equals expectedRevision; the
	// persisted revision is bumped by one. Returns ErrRevisionConflict when
	// another writer got there first.
	UpdateSalePayment(ctx context.Context, sale domain.Sale, expectedRevision int64) (*domain.Sale, error)
	CancelSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error)

	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	ListClients(ctx context.Context, limit int) ([]domain.Client, error)
	// ApplyLoyaltyAccrual updates the client's points/tier/spent fields and
	// appends the history entry as one atomic write.
	ApplyLoyaltyAccrual(ctx context.Context, client domain.Client, entry domain.LoyaltyHistoryEntry) (*domain.Client, error)
	ListLoyaltyHistory(ctx context.Context, clientID string, limit int) ([]domain.LoyaltyHistoryEntry, error)

	CreateReservation(ctx context.Context, reservation domain.Reservation) (*domain.Reservation, error)
	GetReservation(ctx context.Context, id string) (*domain.Reservation, error)
	ListReservations(ctx context.Context, storeID string, status domain.ReservationStatus, limit int) ([]domain.Reservation, error)
	MarkReservationConverted(ctx context.Context, id string, saleID string, at time.Time) (*domain.Reservation, error)
	// ReopenReservation reverts a converted reservation back to open. It is
	// the compensation step when the sale write after a conversion claim
	// fails.
	ReopenReservation(ctx context.Context, id string) error

	CreateServiceRequest(ctx context.Context, request domain.ServiceRequest) (*domain.ServiceRequest, error)
	UpdateServiceRequestStatus(ctx context.Context, id string, status domain.ServiceRequestStatus, at time.Time) (*domain.ServiceRequest, error)
	ListServiceRequests(ctx context.Context, storeID string, status domain.ServiceRequestStatus, limit int) ([]domain.ServiceRequest, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
