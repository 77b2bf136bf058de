package domain

import "time"

// PaymentMethod is the closed set of payment channels accepted at the counter.
type PaymentMethod string

const (
	PayCash         PaymentMethod = "especes"
	PayCard         PaymentMethod = "carte"
	PayOrangeMoney  PaymentMethod = "om"
	PayMobileMoney  PaymentMethod = "momo"
	PayCheque       PaymentMethod = "cheque"
	PayGiftCheque   PaymentMethod = "cheque_cadeau"
	PayBankTransfer PaymentMethod = "virement"
)

// PaymentMethods returns every accepted payment channel, in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PayCash, PayCard, PayOrangeMoney, PayMobileMoney,
		PayCheque, PayGiftCheque, PayBankTransfer,
	}
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayOrangeMoney, PayMobileMoney, PayCheque, PayGiftCheque, PayBankTransfer:
		return true
	default:
		return false
	}
}

// PaymentBreakdown maps each payment channel to the amount received through it.
// Amounts are whole FCFA. Missing keys mean zero.
type PaymentBreakdown map[PaymentMethod]int64

func (b PaymentBreakdown) Total() int64 {
	var total int64
	for _, amount := range b {
		total += amount
	}
	return total
}

func (b PaymentBreakdown) Clone() PaymentBreakdown {
	cloned := make(PaymentBreakdown, len(b))
	for method, amount := range b {
		cloned[method] = amount
	}
	return cloned
}

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// Sale user-facing labels. This is the single closed set used across the
// dashboard, sale tables and detail responses.
const (
	LabelPaid          = "Payée"
	LabelPartiallyPaid = "Partiellement payée"
	LabelAwaiting      = "En attente"
	LabelFinished      = "Terminée"
	LabelCancelled     = "Annulée"
)

// Sale is a store sale. PaidAmount always equals Payments.Total() and never
// exceeds TotalAmount. Revision is the optimistic-concurrency token: every
// persisted payment bumps it, and writers must present the revision they read.
type Sale struct {
	ID             string           `json:"id"`
	ClientID       string           `json:"client_id,omitempty"`
	StoreID        string           `json:"store_id"`
	SellerID       string           `json:"seller_id"`
	SellerName     string           `json:"seller_name,omitempty"`
	IsCredit       bool             `json:"is_credit"`
	TotalAmount    int64            `json:"total_amount"`
	DiscountAmount int64            `json:"discount_amount"`
	PaidAmount     int64            `json:"paid_amount"`
	Payments       PaymentBreakdown `json:"payments"`
	Status         SaleStatus       `json:"status"`
	Revision       int64            `json:"revision"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	CancelledAt    *time.Time       `json:"cancelled_at,omitempty"`
}

// PaymentEvent is the delta applied to a sale by one payment. It is not
// persisted on its own; its effect is folded into the sale record.
type PaymentEvent struct {
	Amount int64         `json:"amount"`
	Method PaymentMethod `json:"method"`
	Date   time.Time     `json:"date"`
	Note   string        `json:"note,omitempty"`
}

type LoyaltyTier string

const (
	TierBronze LoyaltyTier = "bronze"
	TierSilver LoyaltyTier = "argent"
	TierGold   LoyaltyTier = "or"
)

// Client is a loyalty-enrolled customer. LoyaltyTier is always derived from
// LoyaltyPoints against the configured thresholds, never set independently.
type Client struct {
	ID            string      `json:"id"`
	FullName      string      `json:"full_name"`
	Phone         string      `json:"phone,omitempty"`
	LoyaltyPoints int64       `json:"loyalty_points"`
	LoyaltyTier   LoyaltyTier `json:"loyalty_tier"`
	TotalSpent    int64       `json:"total_spent"`
	CreatedAt     time.Time   `json:"created_at"`
}

// LoyaltyHistoryEntry is an append-only audit record of one accrual.
type LoyaltyHistoryEntry struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	PointsAdded int64     `json:"points_added"`
	Source      string    `json:"source"`
	SaleID      string    `json:"sale_id,omitempty"`
	StoreID     string    `json:"store_id,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReservationStatus string

const (
	ReservationOpen      ReservationStatus = "open"
	ReservationConverted ReservationStatus = "converted"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation holds articles aside against a deposit. Converting it creates a
// sale that carries the deposit as its initial payment.
type Reservation struct {
	ID            string            `json:"id"`
	ClientID      string            `json:"client_id"`
	StoreID       string            `json:"store_id"`
	ItemsLabel    string            `json:"items_label"`
	TotalAmount   int64             `json:"total_amount"`
	DepositAmount int64             `json:"deposit_amount"`
	DepositMethod PaymentMethod     `json:"deposit_method"`
	Status        ReservationStatus `json:"status"`
	SaleID        string            `json:"sale_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	ConvertedAt   *time.Time        `json:"converted_at,omitempty"`
}

type ServiceRequestStatus string

const (
	SAVOpen       ServiceRequestStatus = "ouvert"
	SAVInProgress ServiceRequestStatus = "en_cours"
	SAVResolved   ServiceRequestStatus = "resolu"
)

// ServiceRequest is an after-sales (SAV) ticket attached to a sale.
type ServiceRequest struct {
	ID          string               `json:"id"`
	ClientID    string               `json:"client_id,omitempty"`
	SaleID      string               `json:"sale_id,omitempty"`
	StoreID     string               `json:"store_id"`
	Description string               `json:"description"`
	Status      ServiceRequestStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type SellerCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SellerUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type SaleCreateRequest struct {
	ClientID       string           `json:"client_id,omitempty"`
	StoreID        string           `json:"store_id,omitempty"`
	IsCredit       bool             `json:"is_credit"`
	TotalAmount    int64            `json:"total_amount"`
	DiscountAmount int64            `json:"discount_amount"`
	Payments       PaymentBreakdown `json:"payments"`
}

type SaleResponse struct {
	Sale            Sale   `json:"sale"`
	RemainingAmount int64  `json:"remaining_amount"`
	StatusLabel     string `json:"status_label"`
}

type SaleListResponse struct {
	Sales []SaleResponse `json:"sales"`
}

type PaymentRequest struct {
	Amount int64         `json:"amount"`
	Method PaymentMethod `json:"method"`
	Note   string        `json:"note,omitempty"`
}

// PaymentResponse reports the sale after one applied payment, plus the
// loyalty accrual it triggered, if any.
type PaymentResponse struct {
	Sale            Sale            `json:"sale"`
	RemainingAmount int64           `json:"remaining_amount"`
	StatusLabel     string          `json:"status_label"`
	Accrual         *AccrualSummary `json:"accrual,omitempty"`
}

type AccrualSummary struct {
	PointsAdded    int64       `json:"points_added"`
	NewTotalPoints int64       `json:"new_total_points"`
	NewTier        LoyaltyTier `json:"new_tier"`
}

type ClientCreateRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

type ClientUpdateRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

type ReservationCreateRequest struct {
	ClientID      string        `json:"client_id"`
	StoreID       string        `json:"store_id,omitempty"`
	ItemsLabel    string        `json:"items_label"`
	TotalAmount   int64         `json:"total_amount"`
	DepositAmount int64         `json:"deposit_amount"`
	DepositMethod PaymentMethod `json:"deposit_method"`
}

type ServiceRequestCreate struct {
	ClientID    string `json:"client_id,omitempty"`
	SaleID      string `json:"sale_id,omitempty"`
	StoreID     string `json:"store_id,omitempty"`
	Description string `json:"description"`
}

type ServiceRequestUpdate struct {
	Status ServiceRequestStatus `json:"status"`
}

// DashboardStats is the read-side fold over sales, SAV tickets and clients
// that feeds the dashboard. Counts keyed by labels come from the same label
// derivation used everywhere else, so views never disagree.
type DashboardStats struct {
	StoreID           string           `json:"store_id"`
	GeneratedAt       string           `json:"generated_at"`
	SalesTotal        int64            `json:"sales_total"`
	SalesByStatus     map[string]int64 `json:"sales_by_status"`
	SalesByLabel      map[string]int64 `json:"sales_by_label"`
	Revenue           int64            `json:"revenue"`
	CreditOutstanding int64            `json:"credit_outstanding"`
	SAVByStatus       map[string]int64 `json:"sav_by_status"`
	ClientsTotal      int64            `json:"clients_total"`
	ClientsByTier     map[string]int64 `json:"clients_by_tier"`
}
