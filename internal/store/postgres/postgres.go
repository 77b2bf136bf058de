package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"comptoir/backend/internal/domain"
	"comptoir/backend/internal/store"
	"comptoir/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
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
	sale.Revision = 1

	payments, err := json.Marshal(sale.Payments)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (
			id, client_id, store_id, seller_id, seller_name, is_credit,
			total_amount, discount_amount, paid_amount, payments, status,
			revision, created_at, completed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, nullIfEmpty(sale.ClientID), sale.StoreID, sale.SellerID, nullIfEmpty(sale.SellerName),
		sale.IsCredit, sale.TotalAmount, sale.DiscountAmount, sale.PaidAmount, payments,
		string(sale.Status), sale.Revision, sale.CreatedAt, nullTime(sale.CompletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.scanSale(s.db.QueryRowContext(ctx, `
		SELECT id, client_id, store_id, seller_id, seller_name, is_credit,
			total_amount, discount_amount, paid_amount, payments, status,
			revision, created_at, completed_at, cancelled_at
		FROM sales
		WHERE id = $1
	`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var clientID, sellerName sql.NullString
	var payments []byte
	var status string
	var completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&sale.ID, &clientID, &sale.StoreID, &sale.SellerID, &sellerName, &sale.IsCredit,
		&sale.TotalAmount, &sale.DiscountAmount, &sale.PaidAmount, &payments, &status,
		&sale.Revision, &sale.CreatedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if clientID.Valid {
		sale.ClientID = clientID.String
	}
	if sellerName.Valid {
		sale.SellerName = sellerName.String
	}
	sale.Status = domain.SaleStatus(status)
	sale.CreatedAt = sale.CreatedAt.UTC()
	if completedAt.Valid {
		at := completedAt.Time.UTC()
		sale.CompletedAt = &at
	}
	if cancelledAt.Valid {
		at := cancelledAt.Time.UTC()
		sale.CancelledAt = &at
	}

	sale.Payments = make(domain.PaymentBreakdown)
	if len(payments) > 0 {
		if err := json.Unmarshal(payments, &sale.Payments); err != nil {
			return nil, err
		}
	}

	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, client_id, store_id, seller_id, seller_name, is_credit,
			total_amount, discount_amount, paid_amount, payments, status,
			revision, created_at, completed_at, cancelled_at
		FROM sales
		WHERE 1=1
	`)

	args := make([]any, 0, 6)
	appendArg := func(clause string, value any) {
		args = append(args, value)
		query.WriteString(clause)
		query.WriteString(placeholder(len(args)))
	}

	if filter.StoreID != "" {
		appendArg(" AND store_id = ", filter.StoreID)
	}
	if filter.ClientID != "" {
		appendArg(" AND client_id = ", filter.ClientID)
	}
	if filter.Status != "" {
		appendArg(" AND status = ", string(filter.Status))
	}
	if filter.IsCredit != nil {
		appendArg(" AND is_credit = ", *filter.IsCredit)
	}
	if !filter.From.IsZero() {
		appendArg(" AND created_at >= ", filter.From)
	}
	if !filter.To.IsZero() {
		appendArg(" AND created_at < ", filter.To)
	}

	query.WriteString(" ORDER BY created_at DESC")
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}
	appendArg(" LIMIT ", limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := s.scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

// UpdateSalePayment is the compare-and-swap write guarding concurrent payment
// entry: the row only moves if its revision is still the one the caller read.
func (s *Store) UpdateSalePayment(ctx context.Context, sale domain.Sale, expectedRevision int64) (*domain.Sale, error) {
	if sale.PaidAmount > sale.TotalAmount || sale.Payments.Total() != sale.PaidAmount {
		return nil, store.ErrInvalidRecord
	}

	payments, err := json.Marshal(sale.Payments)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET paid_amount = $3, payments = $4, status = $5, completed_at = $6,
			revision = revision + 1, updated_at = now()
		WHERE id = $1 AND revision = $2
	`, sale.ID, expectedRevision, sale.PaidAmount, payments, string(sale.Status), nullTime(sale.CompletedAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either the sale vanished or another writer bumped the revision.
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sales WHERE id = $1)`, sale.ID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrRevisionConflict
	}

	sale.Revision = expectedRevision + 1
	updated := sale
	return &updated, nil
}

func (s *Store) CancelSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, cancelled_at = $3, revision = revision + 1, updated_at = now()
		WHERE id = $1 AND status = $4 AND paid_amount = 0
	`, id, string(domain.SaleStatusCancelled), at.UTC(), string(domain.SaleStatusPending))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.GetSale(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrInvalidRecord
	}
	return s.GetSale(ctx, id)
}

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, full_name, phone, loyalty_points, loyalty_tier, total_spent, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, client.ID, client.FullName, nullIfEmpty(client.Phone), client.LoyaltyPoints, string(client.LoyaltyTier), client.TotalSpent, client.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}

	created := client
	return &created, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var client domain.Client
	var phone sql.NullString
	var tier string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, phone, loyalty_points, loyalty_tier, total_spent, created_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&client.ID, &client.FullName, &phone, &client.LoyaltyPoints, &tier, &client.TotalSpent, &client.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if phone.Valid {
		client.Phone = phone.String
	}
	client.LoyaltyTier = domain.LoyaltyTier(tier)
	client.CreatedAt = client.CreatedAt.UTC()
	return &client, nil
}

func (s *Store) UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.FullName) == "" {
		return nil, store.ErrInvalidRecord
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET full_name = $2, phone = $3, updated_at = now()
		WHERE id = $1
	`, client.ID, client.FullName, nullIfEmpty(client.Phone))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetClient(ctx, client.ID)
}

func (s *Store) ListClients(ctx context.Context, limit int) ([]domain.Client, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, phone, loyalty_points, loyalty_tier, total_spent, created_at
		FROM clients
		ORDER BY full_name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, limit)
	for rows.Next() {
		var client domain.Client
		var phone sql.NullString
		var tier string
		if err := rows.Scan(&client.ID, &client.FullName, &phone, &client.LoyaltyPoints, &tier, &client.TotalSpent, &client.CreatedAt); err != nil {
			return nil, err
		}
		if phone.Valid {
			client.Phone = phone.String
		}
		client.LoyaltyTier = domain.LoyaltyTier(tier)
		client.CreatedAt = client.CreatedAt.UTC()
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

// ApplyLoyaltyAccrual updates the client's loyalty fields and appends the
// history entry inside one transaction, so points never move without their
// audit record.
func (s *Store) ApplyLoyaltyAccrual(ctx context.Context, client domain.Client, entry domain.LoyaltyHistoryEntry) (*domain.Client, error) {
	if entry.PointsAdded < 1 || entry.ClientID != client.ID {
		return nil, store.ErrInvalidRecord
	}
	if entry.ID == "" {
		entry.ID = xid.New("lh")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE clients
		SET loyalty_points = $2, loyalty_tier = $3, total_spent = $4, updated_at = now()
		WHERE id = $1
	`, client.ID, client.LoyaltyPoints, string(client.LoyaltyTier), client.TotalSpent)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loyalty_history (id, client_id, points_added, source, sale_id, store_id, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ClientID, entry.PointsAdded, entry.Source, nullIfEmpty(entry.SaleID), nullIfEmpty(entry.StoreID), entry.Description, entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	updated := client
	return &updated, nil
}

func (s *Store) ListLoyaltyHistory(ctx context.Context, clientID string, limit int) ([]domain.LoyaltyHistoryEntry, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, points_added, source, COALESCE(sale_id,''), COALESCE(store_id,''), description, created_at
		FROM loyalty_history
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LoyaltyHistoryEntry, 0, limit)
	for rows.Next() {
		var entry domain.LoyaltyHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.ClientID, &entry.PointsAdded, &entry.Source, &entry.SaleID, &entry.StoreID, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateReservation(ctx context.Context, reservation domain.Reservation) (*domain.Reservation, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (id, client_id, store_id, items_label, total_amount, deposit_amount, deposit_method, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, reservation.ID, reservation.ClientID, reservation.StoreID, reservation.ItemsLabel,
		reservation.TotalAmount, reservation.DepositAmount, string(reservation.DepositMethod),
		string(reservation.Status), reservation.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := reservation
	return &created, nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	var reservation domain.Reservation
	var method, status string
	var saleID sql.NullString
	var convertedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, store_id, items_label, total_amount, deposit_amount,
			deposit_method, status, sale_id, created_at, converted_at
		FROM reservations
		WHERE id = $1
	`, id).Scan(&reservation.ID, &reservation.ClientID, &reservation.StoreID, &reservation.ItemsLabel,
		&reservation.TotalAmount, &reservation.DepositAmount, &method, &status, &saleID,
		&reservation.CreatedAt, &convertedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	reservation.DepositMethod = domain.PaymentMethod(method)
	reservation.Status = domain.ReservationStatus(status)
	if saleID.Valid {
		reservation.SaleID = saleID.String
	}
	reservation.CreatedAt = reservation.CreatedAt.UTC()
	if convertedAt.Valid {
		at := convertedAt.Time.UTC()
		reservation.ConvertedAt = &at
	}
	return &reservation, nil
}

func (s *Store) ListReservations(ctx context.Context, storeID string, status domain.ReservationStatus, limit int) ([]domain.Reservation, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, store_id, items_label, total_amount, deposit_amount,
			deposit_method, status, sale_id, created_at, converted_at
		FROM reservations
		WHERE ($1 = '' OR store_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, storeID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]domain.Reservation, 0, limit)
	for rows.Next() {
		var reservation domain.Reservation
		var method, rowStatus string
		var saleID sql.NullString
		var convertedAt sql.NullTime
		if err := rows.Scan(&reservation.ID, &reservation.ClientID, &reservation.StoreID, &reservation.ItemsLabel,
			&reservation.TotalAmount, &reservation.DepositAmount, &method, &rowStatus, &saleID,
			&reservation.CreatedAt, &convertedAt); err != nil {
			return nil, err
		}
		reservation.DepositMethod = domain.PaymentMethod(method)
		reservation.Status = domain.ReservationStatus(rowStatus)
		if saleID.Valid {
			reservation.SaleID = saleID.String
		}
		reservation.CreatedAt = reservation.CreatedAt.UTC()
		if convertedAt.Valid {
			at := convertedAt.Time.UTC()
			reservation.ConvertedAt = &at
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (s *Store) MarkReservationConverted(ctx context.Context, id string, saleID string, at time.Time) (*domain.Reservation, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reservations
		SET status = $2, sale_id = $3, converted_at = $4
		WHERE id = $1 AND status = $5
	`, id, string(domain.ReservationConverted), saleID, at.UTC(), string(domain.ReservationOpen))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.GetReservation(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrInvalidRecord
	}
	return s.GetReservation(ctx, id)
}

func (s *Store) ReopenReservation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reservations
		SET status = $2, sale_id = NULL, converted_at = NULL
		WHERE id = $1 AND status = $3
	`, id, string(domain.ReservationOpen), string(domain.ReservationConverted))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetReservation(ctx, id); err != nil {
			return err
		}
		return store.ErrInvalidRecord
	}
	return nil
}

func (s *Store) CreateServiceRequest(ctx context.Context, request domain.ServiceRequest) (*domain.ServiceRequest, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_requests (id, client_id, sale_id, store_id, description, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, request.ID, nullIfEmpty(request.ClientID), nullIfEmpty(request.SaleID), request.StoreID,
		request.Description, string(request.Status), request.CreatedAt, request.UpdatedAt)
	if err != nil {
		return nil, err
	}

	created := request
	return &created, nil
}

func (s *Store) UpdateServiceRequestStatus(ctx context.Context, id string, status domain.ServiceRequestStatus, at time.Time) (*domain.ServiceRequest, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_requests
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, string(status), at.UTC())
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	var request domain.ServiceRequest
	var clientID, saleID sql.NullString
	var rowStatus string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, client_id, sale_id, store_id, description, status, created_at, updated_at
		FROM service_requests
		WHERE id = $1
	`, id).Scan(&request.ID, &clientID, &saleID, &request.StoreID, &request.Description, &rowStatus, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if clientID.Valid {
		request.ClientID = clientID.String
	}
	if saleID.Valid {
		request.SaleID = saleID.String
	}
	request.Status = domain.ServiceRequestStatus(rowStatus)
	request.CreatedAt = request.CreatedAt.UTC()
	request.UpdatedAt = request.UpdatedAt.UTC()
	return &request, nil
}

func (s *Store) ListServiceRequests(ctx context.Context, storeID string, status domain.ServiceRequestStatus, limit int) ([]domain.ServiceRequest, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(client_id,''), COALESCE(sale_id,''), store_id, description, status, created_at, updated_at
		FROM service_requests
		WHERE ($1 = '' OR store_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, storeID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]domain.ServiceRequest, 0, limit)
	for rows.Next() {
		var request domain.ServiceRequest
		var rowStatus string
		if err := rows.Scan(&request.ID, &request.ClientID, &request.SaleID, &request.StoreID,
			&request.Description, &rowStatus, &request.CreatedAt, &request.UpdatedAt); err != nil {
			return nil, err
		}
		request.Status = domain.ServiceRequestStatus(rowStatus)
		request.CreatedAt = request.CreatedAt.UTC()
		request.UpdatedAt = request.UpdatedAt.UTC()
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidRecord
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_accounts (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidRecord
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM user_accounts
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_accounts SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func placeholder(n int) string {
	const digits = "0123456789"
	if n < 10 {
		return "$" + digits[n:n+1]
	}
	return "$" + digits[n/10:n/10+1] + digits[n%10:n%10+1]
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
