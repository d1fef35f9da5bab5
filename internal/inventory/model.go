package inventory

import "time"

type Reason string

const (
	ReasonInitial    Reason = "initial"
	ReasonRestock    Reason = "restock"
	ReasonSale       Reason = "sale"
	ReasonRefund     Reason = "refund"
	ReasonAdjustment Reason = "adjustment"
	ReasonDamage     Reason = "damage"
	ReasonReturn     Reason = "return"
	ReasonTransfer   Reason = "transfer"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonInitial, ReasonRestock, ReasonSale, ReasonRefund,
		ReasonAdjustment, ReasonDamage, ReasonReturn, ReasonTransfer:
		return true
	}
	return false
}

// Reference types used by the commerce core when it writes movements.
const (
	RefTypeOrder  = "order"
	RefTypeManual = "manual"
)

// Movement is one signed change in stock. Rows are never updated or deleted.
type Movement struct {
	ID            string    `json:"id"`
	VariantID     string    `json:"variant_id"`
	DeltaQty      int       `json:"delta_qty"`
	Reason        Reason    `json:"reason"`
	ReferenceType *string   `json:"reference_type,omitempty"`
	ReferenceID   *string   `json:"reference_id,omitempty"`
	Note          *string   `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type MovementInput struct {
	VariantID     string
	DeltaQty      int
	Reason        Reason
	ReferenceType string
	ReferenceID   string
	Note          string
}

// Level is the materialized stock counter of a variant.
type Level struct {
	VariantID string    `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Reconciliation struct {
	VariantID string `json:"variant_id"`
	Counter   int    `json:"counter"`
	LedgerSum int    `json:"ledger_sum"`
	Drift     int    `json:"drift"`
	InSync    bool   `json:"in_sync"`
}

// Guard controls whether a movement may take the counter below zero.
type Guard int

const (
	GuardNone Guard = iota
	// GuardNonNegative rejects the movement with OUT_OF_STOCK when the
	// resulting quantity would be negative.
	GuardNonNegative
)
