package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"comptoir/backend/internal/domain"
	"comptoir/backend/internal/store"
	"comptoir/backend/internal/xid"
)

type Store struct {
	mu                  sync.RWMutex
	salesByID           map[string]domain.Sale
	clientsByID         map[string]domain.Client
	loyaltyByClient     map[string][]domain.LoyaltyHistoryEntry
	reservationsByID    map[string]domain.Reservation
	serviceRequestsByID map[string]domain.ServiceRequest
	usersByUsername     map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. These credentials
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"vendeur", sellerPwd, "seller"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()

	now := time.Now().UTC()
	for _, c := range []domain.Client{
		{ID: "cli-demo-awa", FullName: "Awa Ndiaye", Phone: "+221770000001", LoyaltyTier: domain.TierBronze, CreatedAt: now},
		{ID: "cli-demo-moussa", FullName: "Moussa Diop", Phone: "+221770000002", LoyaltyTier: domain.TierBronze, CreatedAt: now},
	} {
		s.clientsByID[c.ID] = c
	}

	return s
}

func New() *Store {
	return &Store{
		salesByID:           make(map[string]domain.Sale),
		clientsByID:         make(map[string]domain.Client),
		loyaltyByClient:     make(map[string][]domain.LoyaltyHistoryEntry),
		reservationsByID:    make(map[string]domain.Reservation),
		serviceRequestsByID: make(map[string]domain.ServiceRequest),
		usersByUsername:     seedUsers(),
	}
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.StoreID == "" || sale.TotalAmount < 1 {
		return nil, store.ErrInvalidRecord
	}
	if sale.PaidAmount > sale.TotalAmount || sale.Payments.Total() != sale.PaidAmount {
		return nil, store.ErrInvalidRecord
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Payments = sale.Payments.Clone()
	sale.Revision = 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrInvalidRecord
	}
	s.salesByID[sale.ID] = sale

	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneSale(sale)
	return &found, nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if filter.StoreID != "" && sale.StoreID != filter.StoreID {
			continue
		}
		if filter.ClientID != "" && sale.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		if filter.IsCredit != nil && sale.IsCredit != *filter.IsCredit {
			continue
		}
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}

	sort.Slice(sales, func(i, j int) bool {
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) UpdateSalePayment(_ context.Context, sale domain.Sale, expectedRevision int64) (*domain.Sale, error) {
	if sale.PaidAmount > sale.TotalAmount || sale.Payments.Total() != sale.PaidAmount {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.salesByID[sale.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if current.Revision != expectedRevision {
		return nil, store.ErrRevisionConflict
	}

	sale.Payments = sale.Payments.Clone()
	sale.Revision = expectedRevision + 1
	s.salesByID[sale.ID] = sale

	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) CancelSale(_ context.Context, id string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Status != domain.SaleStatusPending || sale.PaidAmount != 0 {
		return nil, store.ErrInvalidRecord
	}

	cancelledAt := at.UTC()
	sale.Status = domain.SaleStatusCancelled
	sale.CancelledAt = &cancelledAt
	sale.Revision++
	s.salesByID[id] = sale

	cancelled := cloneSale(sale)
	return &cancelled, nil
}

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.FullName) == "" {
		return nil, store.ErrInvalidRecord
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	if client.LoyaltyTier == "" {
		client.LoyaltyTier = domain.TierBronze
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clientsByID[client.ID]; exists {
		return nil, store.ErrInvalidRecord
	}
	s.clientsByID[client.ID] = client

	created := client
	return &created, nil
}

func (s *Store) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clientsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := client
	return &found, nil
}

func (s *Store) UpdateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.FullName) == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clientsByID[client.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.clientsByID[client.ID] = client

	updated := client
	return &updated, nil
}

func (s *Store) ListClients(_ context.Context, limit int) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]domain.Client, 0, len(s.clientsByID))
	for _, client := range s.clientsByID {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].FullName < clients[j].FullName
	})
	if limit > 0 && len(clients) > limit {
		clients = clients[:limit]
	}
	return clients, nil
}

func (s *Store) ApplyLoyaltyAccrual(_ context.Context, client domain.Client, entry domain.LoyaltyHistoryEntry) (*domain.Client, error) {
	if entry.PointsAdded < 1 || entry.ClientID != client.ID {
		return nil, store.ErrInvalidRecord
	}
	if entry.ID == "" {
		entry.ID = xid.New("lh")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clientsByID[client.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.clientsByID[client.ID] = client
	s.loyaltyByClient[client.ID] = append(s.loyaltyByClient[client.ID], entry)

	updated := client
	return &updated, nil
}

func (s *Store) ListLoyaltyHistory(_ context.Context, clientID string, limit int) ([]domain.LoyaltyHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.loyaltyByClient[clientID]
	entries := make([]domain.LoyaltyHistoryEntry, len(history))
	copy(entries, history)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) CreateReservation(_ context.Context, reservation domain.Reservation) (*domain.Reservation, error) {
	if reservation.ClientID == "" || reservation.StoreID == "" || reservation.TotalAmount < 1 {
		return nil, store.ErrInvalidRecord
	}
	if reservation.DepositAmount < 0 || reservation.DepositAmount > reservation.TotalAmount {
		return nil, store.ErrInvalidRecord
	}
	if reservation.ID == "" {
		reservation.ID = xid.New("res")
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now().UTC()
	}
	if reservation.Status == "" {
		reservation.Status = domain.ReservationOpen
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservationsByID[reservation.ID] = reservation

	created := reservation
	return &created, nil
}

func (s *Store) GetReservation(_ context.Context, id string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservationsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := reservation
	return &found, nil
}

func (s *Store) ListReservations(_ context.Context, storeID string, status domain.ReservationStatus, limit int) ([]domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]domain.Reservation, 0, len(s.reservationsByID))
	for _, reservation := range s.reservationsByID {
		if storeID != "" && reservation.StoreID != storeID {
			continue
		}
		if status != "" && reservation.Status != status {
			continue
		}
		reservations = append(reservations, reservation)
	}
	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].CreatedAt.After(reservations[j].CreatedAt)
	})
	if limit > 0 && len(reservations) > limit {
		reservations = reservations[:limit]
	}
	return reservations, nil
}

func (s *Store) MarkReservationConverted(_ context.Context, id string, saleID string, at time.Time) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservationsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if reservation.Status != domain.ReservationOpen {
		return nil, store.ErrInvalidRecord
	}

	convertedAt := at.UTC()
	reservation.Status = domain.ReservationConverted
	reservation.SaleID = saleID
	reservation.ConvertedAt = &convertedAt
	s.reservationsByID[id] = reservation

	converted := reservation
	return &converted, nil
}

func (s *Store) ReopenReservation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservationsByID[id]
	if !ok {
		return store.ErrNotFound
	}
	if reservation.Status != domain.ReservationConverted {
		return store.ErrInvalidRecord
	}

	reservation.Status = domain.ReservationOpen
	reservation.SaleID = ""
	reservation.ConvertedAt = nil
	s.reservationsByID[id] = reservation
	return nil
}

func (s *Store) CreateServiceRequest(_ context.Context, request domain.ServiceRequest) (*domain.ServiceRequest, error) {
	if request.StoreID == "" || strings.TrimSpace(request.Description) == "" {
		return nil, store.ErrInvalidRecord
	}
	if request.ID == "" {
		request.ID = xid.New("sav")
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = domain.SAVOpen
	}
	request.UpdatedAt = request.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	s.serviceRequestsByID[request.ID] = request

	created := request
	return &created, nil
}

func (s *Store) UpdateServiceRequestStatus(_ context.Context, id string, status domain.ServiceRequestStatus, at time.Time) (*domain.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.serviceRequestsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	request.Status = status
	request.UpdatedAt = at.UTC()
	s.serviceRequestsByID[id] = request

	updated := request
	return &updated, nil
}

func (s *Store) ListServiceRequests(_ context.Context, storeID string, status domain.ServiceRequestStatus, limit int) ([]domain.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requests := make([]domain.ServiceRequest, 0, len(s.serviceRequestsByID))
	for _, request := range s.serviceRequestsByID {
		if storeID != "" && request.StoreID != storeID {
			continue
		}
		if status != "" && request.Status != status {
			continue
		}
		requests = append(requests, request)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidRecord
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	cloned := sale
	cloned.Payments = sale.Payments.Clone()
	return cloned
}
