package domain

import (
	"time"

	"github.com/google/uuid"
)

type ItemType string

const (
	ItemTypeIncome      ItemType = "INCOME"
	ItemTypeRent        ItemType = "RENT"
	ItemTypeCreditCard  ItemType = "CREDIT_CARD"
	ItemTypeLoanPayment ItemType = "LOAN_PAYMENT"
	ItemTypeUtility     ItemType = "UTILITY"
	ItemTypeOther       ItemType = "OTHER"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeIncome, ItemTypeRent, ItemTypeCreditCard, ItemTypeLoanPayment, ItemTypeUtility, ItemTypeOther:
		return true
	}
	return false
}

// IsIncome reports whether the item adds to the balance. Every other type is a payment.
func (t ItemType) IsIncome() bool {
	return t == ItemTypeIncome
}

type Permission string

const (
	PermissionOwner  Permission = "OWNER"
	PermissionMember Permission = "MEMBER"
	PermissionViewer Permission = "VIEWER"
)

func (p Permission) Valid() bool {
	return p == PermissionOwner || p == PermissionMember || p == PermissionViewer
}

func (p Permission) CanEdit() bool {
	return p == PermissionOwner || p == PermissionMember
}

func (p Permission) CanShare() bool {
	return p == PermissionOwner
}

// Workspace holds the real bank balance and the cached cycle boundaries
// derived from its items. Amounts are in minor units.
type Workspace struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Balance       int64     `json:"balance"`
	CycleStartDay *int      `json:"cycleStartDay"`
	CycleEndDay   *int      `json:"cycleEndDay"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (w *Workspace) HasCycle() bool {
	return w.CycleStartDay != nil && w.CycleEndDay != nil
}

type Membership struct {
	Workspace  Workspace  `json:"workspace"`
	Permission Permission `json:"permission"`
}

type Item struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	Type        ItemType  `json:"type"`
	Label       string    `json:"label"`
	Amount      int64     `json:"amount"`
	DayOfMonth  int       `json:"dayOfMonth"`
	IsPaid      bool      `json:"isPaid"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ItemSnapshot is the frozen copy of an item stored with a completed cycle.
type ItemSnapshot struct {
	ID         uuid.UUID `json:"id"`
	Type       ItemType  `json:"type"`
	Label      string    `json:"label"`
	Amount     int64     `json:"amount"`
	DayOfMonth int       `json:"dayOfMonth"`
	IsPaid     bool      `json:"isPaid"`
}

type CompletedCycle struct {
	ID            uuid.UUID      `json:"id"`
	WorkspaceID   uuid.UUID      `json:"workspaceId"`
	CycleLabel    string         `json:"cycleLabel"`
	FinalBalance  int64          `json:"finalBalance"`
	ItemsSnapshot []ItemSnapshot `json:"itemsSnapshot"`
	CompletedAt   time.Time      `json:"completedAt"`
}
