package core

import (
	"time"
)

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
	CategoryBoth    CategoryType = "both"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	CategoryType    string
	TransactionType string
	Frequency       string

	Category struct {
		ID           int64        `json:"id"`
		Name         string       `json:"name"`
		Type         CategoryType `json:"type"`
		Color        string       `json:"color"`
		Icon         string       `json:"icon"`
		DisplayOrder int64        `json:"displayOrder"`
		IsActive     bool         `json:"isActive"`
		CreatedAt    time.Time    `json:"createdAt"`
		UpdatedAt    time.Time    `json:"updatedAt"`
	}

	Transaction struct {
		ID              int64           `json:"id"`
		Amount          int64           `json:"amount"` // smallest currency unit
		Type            TransactionType `json:"type"`
		CategoryID      *int64          `json:"categoryId"`
		Description     *string         `json:"description"`
		TransactionDate Date            `json:"transactionDate"`
		PaymentMethod   *string         `json:"paymentMethod"`
		Tags            []string        `json:"tags"`
		ReceiptURL      *string         `json:"receiptUrl"`
		IsRecurring     bool            `json:"isRecurring"`
		RecurringID     *int64          `json:"recurringId"`
		CreatedAt       time.Time       `json:"createdAt"`
		UpdatedAt       time.Time       `json:"updatedAt"`
	}

	Subscription struct {
		ID              int64     `json:"id"`
		Name            string    `json:"name"`
		Amount          int64     `json:"amount"`
		CategoryID      *int64    `json:"categoryId"`
		Frequency       Frequency `json:"frequency"`
		NextPaymentDate Date      `json:"nextPaymentDate"`
		Description     *string   `json:"description"`
		AutoGenerate    bool      `json:"autoGenerate"`
		IsActive        bool      `json:"isActive"`
		CreatedAt       time.Time `json:"createdAt"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}
)

var (
	CategoryTypes    = []CategoryType{CategoryIncome, CategoryExpense, CategoryBoth}
	TransactionTypes = []TransactionType{Income, Expense}
	Frequencies      = []Frequency{Daily, Weekly, Monthly, Yearly}
)

func (t CategoryType) IsValid() bool {
	switch t {
	case CategoryIncome, CategoryExpense, CategoryBoth:
		return true
	}
	return false
}

// Accepts reports whether a category of this type may be attached to a
// transaction of type tt. A "both" category matches either side.
func (t CategoryType) Accepts(tt TransactionType) bool {
	if t == CategoryBoth {
		return true
	}
	return string(t) == string(tt)
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}
