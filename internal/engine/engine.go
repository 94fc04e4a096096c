// Package engine holds the cart lines of one session and applies the free-gift rule.
// An Engine is not safe for concurrent use.
package engine

import (
	"errors"
	"math"

	"github.com/fjod/go_cart/giftcart-service/internal/domain"
)

var (
	ErrFreeGiftLocked   = errors.New("free gift line cannot be changed directly")
	ErrQuantityOverflow = errors.New("quantity overflows the cart subtotal")
)

// Transition reports what the free-gift rule did after a mutation
type Transition int

const (
	NoChange Transition = iota
	GiftGranted
	GiftRevoked
)

func (t Transition) String() string {
	switch t {
	case GiftGranted:
		return "gift_granted"
	case GiftRevoked:
		return "gift_revoked"
	default:
		return "no_change"
	}
}

type Engine struct {
	lines []domain.CartLine
}

func New() *Engine {
	return &Engine{}
}

// Restore rebuilds an engine from stored lines. The gift rule is re-run, so
// a stored gift line that no longer matches the subtotal is fixed up here.
func Restore(lines []domain.CartLine) *Engine {
	e := &Engine{lines: make([]domain.CartLine, 0, len(lines))}
	seenGift := false
	for _, l := range lines {
		if l.IsFreeGift {
			if seenGift {
				continue
			}
			seenGift = true
			l = domain.FreeGiftLine()
		}
		if l.Quantity <= 0 {
			continue
		}
		e.lines = append(e.lines, l)
	}
	e.recompute()
	return e
}

// AddToCart increments the quantity of an existing line for the product or appends a new one.
func (e *Engine) AddToCart(p domain.Product) (Transition, error) {
	if p.ID == domain.FreeGiftID {
		return NoChange, ErrFreeGiftLocked
	}

	if i := e.indexOf(p.ID, false); i >= 0 {
		if e.lines[i].Quantity == math.MaxInt || !e.fits(i, e.lines[i].Price, e.lines[i].Quantity+1) {
			return NoChange, ErrQuantityOverflow
		}
		e.lines[i].Quantity++
	} else {
		if !e.fits(-1, p.Price, 1) {
			return NoChange, ErrQuantityOverflow
		}
		e.lines = append(e.lines, domain.CartLine{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: 1,
		})
	}

	return e.recompute(), nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line. Unknown ids are ignored. A quantity whose line total
// would overflow the subtotal is refused with ErrQuantityOverflow.
func (e *Engine) UpdateQuantity(id int64, quantity int) (Transition, error) {
	if e.indexOf(id, true) >= 0 {
		return NoChange, ErrFreeGiftLocked
	}

	i := e.indexOf(id, false)
	if i < 0 {
		return NoChange, nil
	}

	if quantity <= 0 {
		e.lines = append(e.lines[:i], e.lines[i+1:]...)
	} else {
		if !e.fits(i, e.lines[i].Price, quantity) {
			return NoChange, ErrQuantityOverflow
		}
		e.lines[i].Quantity = quantity
	}

	return e.recompute(), nil
}

// Subtotal is the sum of price x quantity over the paid lines.
func (e *Engine) Subtotal() int64 {
	var total int64
	for _, l := range e.lines {
		if l.IsFreeGift {
			continue
		}
		total += l.LineTotal()
	}
	return total
}

func (e *Engine) FreeGiftApplied() bool {
	return e.giftIndex() >= 0
}

// Lines returns a copy of the cart lines in insertion order.
func (e *Engine) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(e.lines))
	copy(out, e.lines)
	return out
}

// Snapshot projects the engine state into the cart read model.
func (e *Engine) Snapshot(sessionID string) domain.Cart {
	subtotal := e.Subtotal()
	applied := e.FreeGiftApplied()

	views := make([]domain.LineView, 0, len(e.lines))
	for _, l := range e.lines {
		views = append(views, domain.LineView{CartLine: l, LineTotal: l.LineTotal()})
	}

	var remaining int64
	if subtotal < domain.FreeGiftThreshold {
		remaining = domain.FreeGiftThreshold - subtotal
	}

	return domain.Cart{
		SessionID:        sessionID,
		Lines:            views,
		Subtotal:         subtotal,
		FreeGiftApplied:  applied,
		FreeGiftName:     domain.FreeGiftName,
		AmountToFreeGift: remaining,
		ProgressPercent:  math.Min(100, float64(subtotal)/float64(domain.FreeGiftThreshold)*100),
		ShowProgress:     !applied && subtotal > 0,
		Empty:            len(e.lines) == 0,
	}
}

func (e *Engine) recompute() Transition {
	subtotal := e.Subtotal()
	gift := e.giftIndex()

	switch {
	case subtotal >= domain.FreeGiftThreshold && gift < 0:
		e.lines = append(e.lines, domain.FreeGiftLine())
		return GiftGranted
	case subtotal < domain.FreeGiftThreshold && gift >= 0:
		e.lines = append(e.lines[:gift], e.lines[gift+1:]...)
		return GiftRevoked
	}
	return NoChange
}

// fits reports whether the paid subtotal stays within int64 with line i
// (or a new line when i < 0) at the given price and quantity.
func (e *Engine) fits(i int, price int64, quantity int) bool {
	if price > 0 && int64(quantity) > math.MaxInt64/price {
		return false
	}
	total := price * int64(quantity)
	for j, l := range e.lines {
		if j == i || l.IsFreeGift {
			continue
		}
		lt := l.LineTotal()
		if total > math.MaxInt64-lt {
			return false
		}
		total += lt
	}
	return true
}

func (e *Engine) indexOf(id int64, gift bool) int {
	for i, l := range e.lines {
		if l.ID == id && l.IsFreeGift == gift {
			return i
		}
	}
	return -1
}

func (e *Engine) giftIndex() int {
	for i, l := range e.lines {
		if l.IsFreeGift {
			return i
		}
	}
	return -1
}
