package core

import "github.com/shopspring/decimal"

// Inputs accepted by the query layer. They are produced by the validation
// layer and are assumed to be well formed.

type NewCategory struct {
	Name         string
	Type         CategoryType
	Color        string
	Icon         string
	DisplayOrder *int64 // nil appends after the last category
}

type CategoryPatch struct {
	Name         *string
	Type         *CategoryType
	Color        *string
	Icon         *string
	DisplayOrder *int64
	IsActive     *bool
}

func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Color == nil && p.Icon == nil &&
		p.DisplayOrder == nil && p.IsActive == nil
}

type CategoryFilter struct {
	Type            *CategoryType `json:"type,omitempty"`
	IncludeInactive bool          `json:"includeInactive,omitempty"`
}

type NewTransaction struct {
	Amount          int64
	Type            TransactionType
	CategoryID      *int64
	Description     *string
	TransactionDate Date
	PaymentMethod   *string
	Tags            []string
	ReceiptURL      *string
	IsRecurring     bool
	RecurringID     *int64
}

// TransactionPatch carries the supplied fields of a partial update. Null
// lists nullable fields, by JSON name, that the client explicitly cleared.
type TransactionPatch struct {
	Amount          *int64
	Type            *TransactionType
	CategoryID      *int64
	Description     *string
	TransactionDate *Date
	PaymentMethod   *string
	Tags            []string // nil leaves tags unchanged
	ReceiptURL      *string
	Null            []string
}

func (p TransactionPatch) IsEmpty() bool {
	return p.Amount == nil && p.Type == nil && p.CategoryID == nil && p.Description == nil &&
		p.TransactionDate == nil && p.PaymentMethod == nil && p.Tags == nil &&
		p.ReceiptURL == nil && len(p.Null) == 0
}

// Sort is a whitelisted column and a direction, asc or desc.
type Sort struct {
	By    string `json:"sortBy"`
	Order string `json:"sortOrder"`
}

type TransactionFilters struct {
	Type        *TransactionType `json:"type,omitempty"`
	CategoryID  *int64           `json:"categoryId,omitempty"`
	From        *Date            `json:"from,omitempty"`
	To          *Date            `json:"to,omitempty"`
	Search      *string          `json:"search,omitempty"`
	MinAmount   *int64           `json:"minAmount,omitempty"`
	MaxAmount   *int64           `json:"maxAmount,omitempty"`
	IsRecurring *bool            `json:"isRecurring,omitempty"`
}

type TransactionQuery struct {
	Filters TransactionFilters
	Sort    Sort
	Page    Page
}

type StatsGrouping string

const (
	GroupByMonth    StatsGrouping = "month"
	GroupByCategory StatsGrouping = "category"
	GroupByType     StatsGrouping = "type"
)

type StatsQuery struct {
	StartDate *Date         `json:"startDate,omitempty"`
	EndDate   *Date         `json:"endDate,omitempty"`
	GroupBy   StatsGrouping `json:"groupBy"`
}

// TransactionStats aggregates amounts over a date range.
type TransactionStats struct {
	TotalIncome  int64         `json:"totalIncome"`
	TotalExpense int64         `json:"totalExpense"`
	Balance      int64         `json:"balance"`
	Count        int64         `json:"count"`
	GroupBy      StatsGrouping `json:"groupBy"`
	Groups       []StatsGroup  `json:"groups"`
}

type StatsGroup struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	CategoryID *int64          `json:"categoryId,omitempty"`
	Income     int64           `json:"income"`
	Expense    int64           `json:"expense"`
	Count      int64           `json:"count"`
	Average    decimal.Decimal `json:"averageAmount"`
}

type NewSubscription struct {
	Name            string
	Amount          int64
	CategoryID      *int64
	Frequency       Frequency
	NextPaymentDate Date
	Description     *string
	AutoGenerate    bool
	IsActive        bool
}

type SubscriptionPatch struct {
	Name            *string
	Amount          *int64
	CategoryID      *int64
	Frequency       *Frequency
	NextPaymentDate *Date
	Description     *string
	AutoGenerate    *bool
	IsActive        *bool
	Null            []string
}

func (p SubscriptionPatch) IsEmpty() bool {
	return p.Name == nil && p.Amount == nil && p.CategoryID == nil && p.Frequency == nil &&
		p.NextPaymentDate == nil && p.Description == nil && p.AutoGenerate == nil &&
		p.IsActive == nil && len(p.Null) == 0
}

type SubscriptionFilters struct {
	IsActive   *bool      `json:"isActive,omitempty"`
	CategoryID *int64     `json:"categoryId,omitempty"`
	Frequency  *Frequency `json:"frequency,omitempty"`
}

type SubscriptionQuery struct {
	Filters SubscriptionFilters
	Sort    Sort
	Page    Page
}

// Sortable columns, by the name clients pass in sort_by.
var (
	TransactionSortFields  = []string{"transaction_date", "amount", "created_at", "updated_at", "description", "id"}
	SubscriptionSortFields = []string{"next_payment_date", "name", "amount", "created_at"}
)
