package validation

import (
	"net/url"

	"saifuu/internal/core"
)

var transactionNullable = []string{"categoryId", "description", "paymentMethod", "receiptUrl"}

type transactionCreateBody struct {
	Amount          *int64   `json:"amount" validate:"required,gt=0,lte=999999999999"`
	Type            string   `json:"type" validate:"required,transaction_type"`
	CategoryID      *int64   `json:"categoryId" validate:"omitnil,gt=0"`
	Description     *string  `json:"description" validate:"omitnil,max=500"`
	TransactionDate string   `json:"transactionDate" validate:"required,date"`
	PaymentMethod   *string  `json:"paymentMethod" validate:"omitnil,max=50"`
	Tags            []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	ReceiptURL      *string  `json:"receiptUrl" validate:"omitnil,max=2048,url"`
	IsRecurring     *bool    `json:"isRecurring"`
	RecurringID     *int64   `json:"recurringId" validate:"omitnil,gt=0"`
}

type transactionUpdateBody struct {
	Amount          *int64   `json:"amount" validate:"omitnil,gt=0,lte=999999999999"`
	Type            *string  `json:"type" validate:"omitnil,transaction_type"`
	CategoryID      *int64   `json:"categoryId" validate:"omitnil,gt=0"`
	Description     *string  `json:"description" validate:"omitnil,max=500"`
	TransactionDate *string  `json:"transactionDate" validate:"omitnil,date"`
	PaymentMethod   *string  `json:"paymentMethod" validate:"omitnil,max=50"`
	Tags            []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	ReceiptURL      *string  `json:"receiptUrl" validate:"omitnil,max=2048,url"`
}

func TransactionCreate(data []byte) (core.NewTransaction, error) {
	b, err := parseBody[transactionCreateBody](data, transactionNullable)
	if err != nil {
		return core.NewTransaction{}, err
	}
	if err := b.errs.Err(); err != nil {
		return core.NewTransaction{}, err
	}
	v := b.value
	date, _ := core.ParseDate(v.TransactionDate)
	tx := core.NewTransaction{
		Amount:          *v.Amount,
		Type:            core.TransactionType(v.Type),
		CategoryID:      v.CategoryID,
		Description:     v.Description,
		TransactionDate: date,
		PaymentMethod:   v.PaymentMethod,
		Tags:            v.Tags,
		ReceiptURL:      v.ReceiptURL,
		RecurringID:     v.RecurringID,
	}
	if v.IsRecurring != nil {
		tx.IsRecurring = *v.IsRecurring
	}
	if tx.Tags == nil {
		tx.Tags = []string{}
	}
	return tx, nil
}

func TransactionUpdate(data []byte) (core.TransactionPatch, error) {
	b, err := parseBody[transactionUpdateBody](data, transactionNullable)
	if err != nil {
		return core.TransactionPatch{}, err
	}
	null := nulls(&b.value, b.raw, b.blanked, transactionNullable, b.errs)
	if isNull(b.raw, "tags") {
		// "tags": null clears the list rather than failing.
		delete(b.errs, "tags")
		b.value.Tags = []string{}
	}
	if err := b.errs.Err(); err != nil {
		return core.TransactionPatch{}, err
	}
	v := b.value
	patch := core.TransactionPatch{
		Amount:        v.Amount,
		CategoryID:    v.CategoryID,
		Description:   v.Description,
		PaymentMethod: v.PaymentMethod,
		Tags:          v.Tags,
		ReceiptURL:    v.ReceiptURL,
		Null:          null,
	}
	if v.Type != nil {
		t := core.TransactionType(*v.Type)
		patch.Type = &t
	}
	if v.TransactionDate != nil {
		d, _ := core.ParseDate(*v.TransactionDate)
		patch.TransactionDate = &d
	}
	if patch.IsEmpty() {
		return patch, core.NewValidationError(core.FormField, "at least one field must be provided")
	}
	return patch, nil
}

func TransactionList(q url.Values) (core.TransactionQuery, error) {
	r := newQueryReader(q)
	var f core.TransactionFilters

	if t := r.String("type"); t != nil {
		checkVar(r.errs, "type", *t, "transaction_type")
		tt := core.TransactionType(*t)
		f.Type = &tt
	}
	if id := r.Int("category_id", "categoryId"); id != nil {
		checkVar(r.errs, "category_id", *id, "gt=0")
		f.CategoryID = id
	}
	f.From = r.Date("from", "startDate")
	f.To = r.Date("to", "endDate")
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		r.errs.Add("to", "must be on or after from")
	}
	if s := r.String("search"); s != nil {
		checkVar(r.errs, "search", *s, "max=100")
		f.Search = s
	}
	if n := r.Int("min_amount", "minAmount"); n != nil {
		checkVar(r.errs, "min_amount", *n, "gte=0")
		f.MinAmount = n
	}
	if n := r.Int("max_amount", "maxAmount"); n != nil {
		checkVar(r.errs, "max_amount", *n, "gte=0")
		f.MaxAmount = n
	}
	if f.MinAmount != nil && f.MaxAmount != nil && *f.MaxAmount < *f.MinAmount {
		r.errs.Add("max_amount", "must be greater than or equal to min_amount")
	}
	f.IsRecurring = r.Bool("is_recurring", "isRecurring")

	query := core.TransactionQuery{
		Filters: f,
		Sort:    r.Sort(core.TransactionSortFields, core.Sort{By: "transaction_date", Order: "desc"}),
		Page:    r.Page(),
	}
	return query, r.errs.Err()
}

func TransactionStats(q url.Values) (core.StatsQuery, error) {
	r := newQueryReader(q)
	sq := core.StatsQuery{
		StartDate: r.Date("startDate", "from"),
		EndDate:   r.Date("endDate", "to"),
		GroupBy:   core.GroupByMonth,
	}
	if sq.StartDate != nil && sq.EndDate != nil && sq.EndDate.Before(*sq.StartDate) {
		r.errs.Add("endDate", "must be on or after startDate")
	}
	if g := r.String("groupBy", "group_by"); g != nil {
		checkVar(r.errs, "groupBy", *g, "oneof=month category type")
		sq.GroupBy = core.StatsGrouping(*g)
	}
	return sq, r.errs.Err()
}
