package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Combo struct {
	ID        int
	Name      string
	Items     []ComboItem
	UnitPrice decimal.Decimal
	Active    bool
}

type ComboItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ComboSelection is the normalized form of a client's combo choice.
type ComboSelection struct {
	ComboID  int
	Quantity int
}

// ComboLine is a priced combo selection.
type ComboLine struct {
	ComboID   int
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

type ComboRepository interface {
	GetByID(ctx context.Context, id int) (*Combo, error)
	ListActive(ctx context.Context) ([]Combo, error)
}
