// Package service wires the payment and loyalty engines to the repository and
// exposes the operations the HTTP layer calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"comptoir/backend/internal/cache"
	"comptoir/backend/internal/domain"
	"comptoir/backend/internal/loyalty"
	"comptoir/backend/internal/payment"
	"comptoir/backend/internal/store"
	"comptoir/backend/internal/xid"
)

var (
	ErrSaleCancelled = errors.New("sale is cancelled")
	ErrSaleClosed    = errors.New("sale is already settled")
	ErrValidation    = errors.New("invalid request")
)

// How many times a payment write is retried when a concurrent writer bumps
// the sale revision first. Each retry re-reads and re-validates.
const paymentRetries = 3

type actorKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	stats      cache.StatsCache
	logger     *zap.SugaredLogger
	loyaltyCfg loyalty.Config
	storeID    string
}

func New(repo store.Repository, stats cache.StatsCache, logger *zap.SugaredLogger, loyaltyCfg loyalty.Config, defaultStoreID string) *Service {
	if stats == nil {
		stats = cache.NewNoop()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		repo:       repo,
		stats:      stats,
		logger:     logger,
		loyaltyCfg: loyaltyCfg,
		storeID:    defaultStoreID,
	}
}

func (s *Service) resolveStoreID(storeID string) string {
	if strings.TrimSpace(storeID) == "" {
		return s.storeID
	}
	return storeID
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func saleResponse(sale domain.Sale) domain.SaleResponse {
	stats := payment.Compute(sale)
	return domain.SaleResponse{
		Sale:            sale,
		RemainingAmount: stats.Remaining,
		StatusLabel:     payment.Label(sale),
	}
}

// RecordSale registers a new sale. Counter sales must be settled in full at
// creation; credit sales may start with any paid amount from zero up to the
// total, and complete immediately when the initial payments already cover it.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (*domain.SaleResponse, error) {
	if req.TotalAmount < 1 {
		return nil, validationErr("total_amount must be at least 1")
	}
	if req.DiscountAmount < 0 || req.DiscountAmount >= req.TotalAmount {
		return nil, validationErr("discount_amount out of range")
	}

	payments := make(domain.PaymentBreakdown, len(req.Payments))
	for method, amount := range req.Payments {
		if !method.Valid() {
			return nil, fmt.Errorf("%w: %q", payment.ErrInvalidMethod, method)
		}
		if amount < 1 {
			return nil, validationErr("payment amount for %s must be positive", method)
		}
		payments[method] = amount
	}
	paid := payments.Total()
	if paid > req.TotalAmount {
		return nil, payment.ErrExceedsBalance
	}
	if !req.IsCredit && paid != req.TotalAmount {
		return nil, validationErr("counter sale must be paid in full at creation")
	}
	if req.IsCredit && req.ClientID == "" {
		return nil, validationErr("credit sale requires a client")
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()

	sale := domain.Sale{
		ID:             xid.New("sale"),
		ClientID:       req.ClientID,
		StoreID:        s.resolveStoreID(req.StoreID),
		SellerID:       actor.Username,
		SellerName:     actor.Username,
		IsCredit:       req.IsCredit,
		TotalAmount:    req.TotalAmount,
		DiscountAmount: req.DiscountAmount,
		PaidAmount:     paid,
		Payments:       payments,
		Status:         domain.SaleStatusPending,
		CreatedAt:      now,
	}
	if paid >= req.TotalAmount {
		sale.Status = domain.SaleStatusCompleted
		completedAt := now
		sale.CompletedAt = &completedAt
	}

	if sale.ClientID != "" {
		if _, err := s.repo.GetClient(ctx, sale.ClientID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, validationErr("client %s not found", sale.ClientID)
			}
			return nil, err
		}
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return nil, err
	}

	if created.Status == domain.SaleStatusCompleted && created.ClientID != "" {
		if _, err := s.accrueForSale(ctx, *created); err != nil {
			s.logger.Warnw("loyalty accrual failed", "sale_id", created.ID, "error", err)
		}
	}

	s.stats.Invalidate(ctx, created.StoreID)
	s.logger.Infow("sale recorded", "sale_id", created.ID, "store_id", created.StoreID, "total", created.TotalAmount, "credit", created.IsCredit)
	resp := saleResponse(*created)
	return &resp, nil
}

// ApplyPayment applies one payment to a credit sale. The write is guarded by
// the sale revision: when a concurrent payment lands first, the sale is
// re-read and the amount re-validated against the new balance before
// retrying, so two simultaneous payments can never overshoot the total.
func (s *Service) ApplyPayment(ctx context.Context, saleID string, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	var lastErr error
	for attempt := 0; attempt < paymentRetries; attempt++ {
		sale, err := s.repo.GetSale(ctx, saleID)
		if err != nil {
			return nil, err
		}
		if sale.Status == domain.SaleStatusCancelled {
			return nil, ErrSaleCancelled
		}
		if sale.Status == domain.SaleStatusCompleted {
			return nil, ErrSaleClosed
		}

		updated, err := payment.Apply(*sale, domain.PaymentEvent{
			Amount: req.Amount,
			Method: req.Method,
			Date:   time.Now().UTC(),
			Note:   req.Note,
		})
		if err != nil {
			return nil, err
		}

		persisted, err := s.repo.UpdateSalePayment(ctx, updated, sale.Revision)
		if err != nil {
			if errors.Is(err, store.ErrRevisionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		resp := domain.PaymentResponse{
			Sale:            *persisted,
			RemainingAmount: payment.Compute(*persisted).Remaining,
			StatusLabel:     payment.Label(*persisted),
		}

		completedNow := sale.Status != domain.SaleStatusCompleted && persisted.Status == domain.SaleStatusCompleted
		if completedNow && persisted.ClientID != "" {
			summary, err := s.accrueForSale(ctx, *persisted)
			if err != nil {
				s.logger.Warnw("loyalty accrual failed", "sale_id", persisted.ID, "error", err)
			} else {
				resp.Accrual = summary
			}
		}

		s.stats.Invalidate(ctx, persisted.StoreID)
		s.logger.Infow("payment applied", "sale_id", persisted.ID, "amount", req.Amount, "method", req.Method, "remaining", resp.RemainingAmount)
		return &resp, nil
	}
	return nil, lastErr
}

// accrueForSale credits the sale's client with points for the full sale
// amount. Rounding down to zero points means nothing is written at all.
func (s *Service) accrueForSale(ctx context.Context, sale domain.Sale) (*domain.AccrualSummary, error) {
	return s.AccrueLoyalty(ctx, sale.ClientID, sale.TotalAmount, sale.ID, sale.StoreID)
}

// AccrueLoyalty converts a qualifying amount into loyalty points for the
// client. Client fields and the history entry move in one atomic repository
// write; a zero-point outcome skips the write entirely.
func (s *Service) AccrueLoyalty(ctx context.Context, clientID string, amount int64, saleID string, storeID string) (*domain.AccrualSummary, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	accrual := loyalty.Accrue(*client, amount, s.loyaltyCfg)
	if accrual.PointsAdded < 1 {
		return &domain.AccrualSummary{
			PointsAdded:    0,
			NewTotalPoints: accrual.NewPoints,
			NewTier:        accrual.NewTier,
		}, nil
	}

	previousTier := client.LoyaltyTier
	updated := *client
	updated.LoyaltyPoints = accrual.NewPoints
	updated.LoyaltyTier = accrual.NewTier
	updated.TotalSpent = accrual.NewTotalSpent

	entry := domain.LoyaltyHistoryEntry{
		ID:          xid.New("lh"),
		ClientID:    client.ID,
		PointsAdded: accrual.PointsAdded,
		Source:      "purchase",
		SaleID:      saleID,
		StoreID:     storeID,
		Description: fmt.Sprintf("Achat de %d FCFA", amount),
		CreatedAt:   time.Now().UTC(),
	}

	persisted, err := s.repo.ApplyLoyaltyAccrual(ctx, updated, entry)
	if err != nil {
		return nil, err
	}

	if persisted.LoyaltyTier != previousTier {
		s.logger.Infow("client tier changed", "client_id", persisted.ID, "from", previousTier, "to", persisted.LoyaltyTier)
	}

	return &domain.AccrualSummary{
		PointsAdded:    accrual.PointsAdded,
		NewTotalPoints: persisted.LoyaltyPoints,
		NewTier:        persisted.LoyaltyTier,
	}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.SaleResponse, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := saleResponse(*sale)
	return &resp, nil
}

func (s *Service) ListSales(ctx context.Context, filter store.SaleFilter) (*domain.SaleListResponse, error) {
	if filter.StoreID == "" {
		filter.StoreID = s.storeID
	}
	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := domain.SaleListResponse{Sales: make([]domain.SaleResponse, 0, len(sales))}
	for _, sale := range sales {
		resp.Sales = append(resp.Sales, saleResponse(sale))
	}
	return &resp, nil
}

// CancelSale voids a sale. Only pending sales with nothing paid can be
// cancelled; anything with money on it has to be handled as an SAV case.
func (s *Service) CancelSale(ctx context.Context, id string) (*domain.SaleResponse, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.Status == domain.SaleStatusCancelled {
		return nil, ErrSaleCancelled
	}
	if sale.Status != domain.SaleStatusPending || sale.PaidAmount != 0 {
		return nil, validationErr("only unpaid pending sales can be cancelled")
	}

	cancelled, err := s.repo.CancelSale(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.stats.Invalidate(ctx, cancelled.StoreID)
	s.logger.Infow("sale cancelled", "sale_id", cancelled.ID)
	resp := saleResponse(*cancelled)
	return &resp, nil
}

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (*domain.Client, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, validationErr("full_name is required")
	}

	client := domain.Client{
		ID:          xid.New("cli"),
		FullName:    name,
		Phone:       strings.TrimSpace(req.Phone),
		LoyaltyTier: domain.TierBronze,
		CreatedAt:   time.Now().UTC(),
	}
	return s.repo.CreateClient(ctx, client)
}

func (s *Service) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	return s.repo.GetClient(ctx, id)
}

func (s *Service) UpdateClient(ctx context.Context, id string, req domain.ClientUpdateRequest) (*domain.Client, error) {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, validationErr("full_name cannot be empty")
		}
		client.FullName = name
	}
	if req.Phone != nil {
		client.Phone = strings.TrimSpace(*req.Phone)
	}

	return s.repo.UpdateClient(ctx, *client)
}

func (s *Service) ListClients(ctx context.Context, limit int) ([]domain.Client, error) {
	return s.repo.ListClients(ctx, limit)
}

func (s *Service) ListLoyaltyHistory(ctx context.Context, clientID string, limit int) ([]domain.LoyaltyHistoryEntry, error) {
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListLoyaltyHistory(ctx, clientID, limit)
}

func (s *Service) CreateReservation(ctx context.Context, req domain.ReservationCreateRequest) (*domain.Reservation, error) {
	if req.ClientID == "" {
		return nil, validationErr("client_id is required")
	}
	if req.TotalAmount < 1 {
		return nil, validationErr("total_amount must be at least 1")
	}
	if req.DepositAmount < 0 || req.DepositAmount > req.TotalAmount {
		return nil, validationErr("deposit_amount out of range")
	}
	if req.DepositAmount > 0 && !req.DepositMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", payment.ErrInvalidMethod, req.DepositMethod)
	}
	if _, err := s.repo.GetClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	reservation := domain.Reservation{
		ID:            xid.New("res"),
		ClientID:      req.ClientID,
		StoreID:       s.resolveStoreID(req.StoreID),
		ItemsLabel:    strings.TrimSpace(req.ItemsLabel),
		TotalAmount:   req.TotalAmount,
		DepositAmount: req.DepositAmount,
		DepositMethod: req.DepositMethod,
		Status:        domain.ReservationOpen,
		CreatedAt:     time.Now().UTC(),
	}
	return s.repo.CreateReservation(ctx, reservation)
}

func (s *Service) ListReservations(ctx context.Context, storeID string, status domain.ReservationStatus, limit int) ([]domain.Reservation, error) {
	return s.repo.ListReservations(ctx, s.resolveStoreID(storeID), status, limit)
}

// ConvertReservation turns an open reservation into a sale. The deposit
// becomes the sale's initial payment; if it does not cover the total, the
// sale is opened as a credit sale with the balance outstanding.
// The reservation is claimed before the sale is written: only the caller
// that wins the open→converted transition creates a sale, so a retry or a
// concurrent conversion can never produce a second sale for the same
// reservation. If the sale write then fails, the claim is compensated by
// reopening the reservation.
func (s *Service) ConvertReservation(ctx context.Context, id string) (*domain.SaleResponse, error) {
	reservation, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.Status != domain.ReservationOpen {
		return nil, validationErr("reservation is not open")
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()

	sale := domain.Sale{
		ID:          xid.New("sale"),
		ClientID:    reservation.ClientID,
		StoreID:     reservation.StoreID,
		SellerID:    actor.Username,
		SellerName:  actor.Username,
		IsCredit:    reservation.DepositAmount < reservation.TotalAmount,
		TotalAmount: reservation.TotalAmount,
		PaidAmount:  reservation.DepositAmount,
		Payments:    make(domain.PaymentBreakdown),
		Status:      domain.SaleStatusPending,
		CreatedAt:   now,
	}
	if reservation.DepositAmount > 0 {
		sale.Payments[reservation.DepositMethod] = reservation.DepositAmount
	}
	if sale.PaidAmount >= sale.TotalAmount {
		sale.Status = domain.SaleStatusCompleted
		completedAt := now
		sale.CompletedAt = &completedAt
	}

	if _, err := s.repo.MarkReservationConverted(ctx, reservation.ID, sale.ID, now); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		if reopenErr := s.repo.ReopenReservation(ctx, reservation.ID); reopenErr != nil {
			s.logger.Errorw("reservation stuck converted after failed sale write", "reservation_id", reservation.ID, "error", reopenErr)
		}
		return nil, err
	}

	if created.Status == domain.SaleStatusCompleted && created.ClientID != "" {
		if _, err := s.accrueForSale(ctx, *created); err != nil {
			s.logger.Warnw("loyalty accrual failed", "sale_id", created.ID, "error", err)
		}
	}

	s.stats.Invalidate(ctx, created.StoreID)
	s.logger.Infow("reservation converted", "reservation_id", reservation.ID, "sale_id", created.ID)
	resp := saleResponse(*created)
	return &resp, nil
}

func (s *Service) CreateServiceRequest(ctx context.Context, req domain.ServiceRequestCreate) (*domain.ServiceRequest, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, validationErr("description is required")
	}
	if req.SaleID != "" {
		if _, err := s.repo.GetSale(ctx, req.SaleID); err != nil {
			return nil, err
		}
	}

	request := domain.ServiceRequest{
		ID:          xid.New("sav"),
		ClientID:    req.ClientID,
		SaleID:      req.SaleID,
		StoreID:     s.resolveStoreID(req.StoreID),
		Description: strings.TrimSpace(req.Description),
		Status:      domain.SAVOpen,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := s.repo.CreateServiceRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	s.stats.Invalidate(ctx, created.StoreID)
	return created, nil
}

func (s *Service) UpdateServiceRequest(ctx context.Context, id string, req domain.ServiceRequestUpdate) (*domain.ServiceRequest, error) {
	switch req.Status {
	case domain.SAVOpen, domain.SAVInProgress, domain.SAVResolved:
	default:
		return nil, validationErr("unknown service request status %q", req.Status)
	}

	updated, err := s.repo.UpdateServiceRequestStatus(ctx, id, req.Status, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.stats.Invalidate(ctx, updated.StoreID)
	return updated, nil
}

func (s *Service) ListServiceRequests(ctx context.Context, storeID string, status domain.ServiceRequestStatus, limit int) ([]domain.ServiceRequest, error) {
	return s.repo.ListServiceRequests(ctx, s.resolveStoreID(storeID), status, limit)
}

// DashboardStats folds sales, SAV tickets and clients into the dashboard
// aggregates. Label counts reuse the same derivation as the sale views, so
// the dashboard can never disagree with a sale table. The fold is cached per
// store and invalidated on every write.
func (s *Service) DashboardStats(ctx context.Context, storeID string) (*domain.DashboardStats, error) {
	storeID = s.resolveStoreID(storeID)

	if cached, ok := s.stats.GetStats(ctx, storeID); ok {
		return cached, nil
	}

	sales, err := s.repo.ListSales(ctx, store.SaleFilter{StoreID: storeID, Limit: 10000})
	if err != nil {
		return nil, err
	}
	requests, err := s.repo.ListServiceRequests(ctx, storeID, "", 10000)
	if err != nil {
		return nil, err
	}
	clients, err := s.repo.ListClients(ctx, 10000)
	if err != nil {
		return nil, err
	}

	stats := domain.DashboardStats{
		StoreID:       storeID,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		SalesByStatus: make(map[string]int64),
		SalesByLabel:  make(map[string]int64),
		SAVByStatus:   make(map[string]int64),
		ClientsByTier: make(map[string]int64),
	}

	for _, sale := range sales {
		stats.SalesTotal++
		stats.SalesByStatus[string(sale.Status)]++
		stats.SalesByLabel[payment.Label(sale)]++
		if sale.Status != domain.SaleStatusCancelled {
			stats.Revenue += sale.PaidAmount
			if sale.IsCredit {
				stats.CreditOutstanding += payment.Compute(sale).Remaining
			}
		}
	}
	for _, request := range requests {
		stats.SAVByStatus[string(request.Status)]++
	}
	for _, client := range clients {
		stats.ClientsTotal++
		stats.ClientsByTier[string(client.LoyaltyTier)]++
	}

	s.stats.SetStats(ctx, storeID, stats)
	return &stats, nil
}
