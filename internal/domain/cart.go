package domain

import "time"

// CartLine is one distinct product in the cart
type CartLine struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Quantity   int    `json:"quantity"`
	IsFreeGift bool   `json:"is_free_gift"`
}

// LineTotal returns price x quantity for the line
func (l CartLine) LineTotal() int64 {
	return l.Price * int64(l.Quantity)
}

// Session is what the session store keeps. Derived values are rebuilt from Lines on load.
type Session struct {
	ID        string     `json:"id"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Cart is the read model rendered to clients.
type Cart struct {
	SessionID        string     `json:"session_id"`
	Lines            []LineView `json:"lines"`
	Subtotal         int64      `json:"subtotal"`
	FreeGiftApplied  bool       `json:"free_gift_applied"`
	FreeGiftName     string     `json:"free_gift_name"`
	AmountToFreeGift int64      `json:"amount_to_free_gift"`
	ProgressPercent  float64    `json:"progress_percent"`
	ShowProgress     bool       `json:"show_progress"`
	Empty            bool       `json:"empty"`
}

type LineView struct {
	CartLine
	LineTotal int64 `json:"line_total"`
}
