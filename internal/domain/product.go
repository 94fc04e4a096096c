package domain

type Product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

const (
	// FreeGiftThreshold is the subtotal at which the free gift is granted.
	FreeGiftThreshold int64 = 1000

	FreeGiftID   int64 = 5
	FreeGiftName       = "Wireless Mouse"
)

// FreeGiftLine returns the synthesized promotion line. It is never part of the catalog.
func FreeGiftLine() CartLine {
	return CartLine{
		ID:         FreeGiftID,
		Name:       FreeGiftName,
		Price:      0,
		Quantity:   1,
		IsFreeGift: true,
	}
}
