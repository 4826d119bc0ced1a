package core

import (
	"strings"
	"time"
)

// ExpenseCategory is the closed set of spend categories.
type ExpenseCategory string

const (
	CategoryFoodDining     ExpenseCategory = "food_dining"
	CategoryTransportation ExpenseCategory = "transportation"
	CategoryShopping       ExpenseCategory = "shopping"
	CategoryEntertainment  ExpenseCategory = "entertainment"
	CategoryBillsUtilities ExpenseCategory = "bills_utilities"
	CategoryHealthcare     ExpenseCategory = "healthcare"
	CategoryEducation      ExpenseCategory = "education"
	CategoryTravel         ExpenseCategory = "travel"
	CategoryGroceries      ExpenseCategory = "groceries"
	CategoryPersonalCare   ExpenseCategory = "personal_care"
	CategoryGiftsDonations ExpenseCategory = "gifts_donations"
	CategoryHomeGarden     ExpenseCategory = "home_garden"
	CategorySportsFitness  ExpenseCategory = "sports_fitness"
	CategoryTechnology     ExpenseCategory = "technology"
	CategoryInsurance      ExpenseCategory = "insurance"
	CategoryInvestments    ExpenseCategory = "investments"
	CategoryOther          ExpenseCategory = "other"
)

// ExpenseCategories lists every valid category in declaration order.
func ExpenseCategories() []ExpenseCategory {
	return []ExpenseCategory{
		CategoryFoodDining, CategoryTransportation, CategoryShopping,
		CategoryEntertainment, CategoryBillsUtilities, CategoryHealthcare,
		CategoryEducation, CategoryTravel, CategoryGroceries,
		CategoryPersonalCare, CategoryGiftsDonations, CategoryHomeGarden,
		CategorySportsFitness, CategoryTechnology, CategoryInsurance,
		CategoryInvestments, CategoryOther,
	}
}

func (c ExpenseCategory) Validate() error {
	for _, v := range ExpenseCategories() {
		if c == v {
			return nil
		}
	}
	return ErrInvalidCategory
}

// PaymentMethod is how an expense was paid.
type PaymentMethod string

const (
	PayCash         PaymentMethod = "cash"
	PayDebitCard    PaymentMethod = "debit_card"
	PayCreditCard   PaymentMethod = "credit_card"
	PayBankTransfer PaymentMethod = "bank_transfer"
	PayEWallet      PaymentMethod = "e_wallet"
	PayOther        PaymentMethod = "other"
)

func (p PaymentMethod) Validate() error {
	switch p {
	case PayCash, PayDebitCard, PayCreditCard, PayBankTransfer, PayEWallet, PayOther:
		return nil
	}
	return ErrInvalidCategory
}

type (
	// Expense is a single spend event. CoupleID empty means personal.
	// SharedPercentage is meaningful only while IsShared is true.
	Expense struct {
		ID               string
		OwnerID          string
		CoupleID         string
		Title            string
		Description      string
		Amount           Money
		Category         ExpenseCategory
		ExpenseDate      time.Time
		PaymentMethod    PaymentMethod
		IsShared         bool
		SharedPercentage Percent
		CreatedAt        time.Time
	}

	// ExpensePatch is the allow-listed update surface for an expense.
	// Owner, couple linkage, and timestamps are deliberately not patchable.
	ExpensePatch struct {
		Title            *string
		Description      *string
		Amount           *Money
		Category         *ExpenseCategory
		ExpenseDate      *time.Time
		PaymentMethod    *PaymentMethod
		IsShared         *bool
		SharedPercentage *Percent
	}
)

// Validate checks the expense invariants. The active-couple requirement for
// shared expenses is checked by the service, which can see the couple.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return ErrEmptyTitle
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Category.Validate(); err != nil {
		return err
	}
	if err := e.PaymentMethod.Validate(); err != nil {
		return err
	}
	if e.ExpenseDate.IsZero() {
		return ErrInvalidCategory
	}
	if e.IsShared {
		if e.SharedPercentage < 0 || e.SharedPercentage > HundredPercent {
			return ErrInvalidPercentage
		}
	}
	return nil
}

// ApplyPatch merges the patch and re-validates the result.
func (e *Expense) ApplyPatch(p ExpensePatch) error {
	next := *e
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Amount != nil {
		next.Amount = *p.Amount
	}
	if p.Category != nil {
		next.Category = *p.Category
	}
	if p.ExpenseDate != nil {
		next.ExpenseDate = *p.ExpenseDate
	}
	if p.PaymentMethod != nil {
		next.PaymentMethod = *p.PaymentMethod
	}
	if p.IsShared != nil {
		next.IsShared = *p.IsShared
		if !next.IsShared {
			next.SharedPercentage = 0
		}
	}
	if p.SharedPercentage != nil {
		next.SharedPercentage = *p.SharedPercentage
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*e = next
	return nil
}
