package pricing

import (
	"math"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
)

const DefaultBasePrice = 100.0

var roomMultipliers = map[domain.RoomType]float64{
	domain.RoomTypeStandard: 1.0,
	domain.RoomTypeDeluxe:   1.5,
	domain.RoomTypeSuite:    2.5,
}

// Engine prices a stay. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	basePrice float64
}

func NewEngine(basePrice float64) *Engine {
	if basePrice <= 0 {
		basePrice = DefaultBasePrice
	}
	return &Engine{basePrice: basePrice}
}

func (e *Engine) BasePrice() float64 {
	return e.basePrice
}

// Multiplier returns the price factor for a room type.
func Multiplier(room domain.RoomType) (float64, bool) {
	m, ok := roomMultipliers[room]
	return m, ok
}

// Nights counts billable nights. Partial days round up and the result is
// never below one, so same-day or reversed spans price as a single night.
func Nights(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// ComputeTotalPrice returns basePrice * nights * travelers * multiplier in
// major units, rounded to cents. An unknown room type is the only error.
func (e *Engine) ComputeTotalPrice(start, end time.Time, travelers int, room domain.RoomType) (float64, error) {
	m, ok := Multiplier(room)
	if !ok {
		return 0, domain.NewValidationError("room_type", "unknown room type "+string(room))
	}
	total := e.basePrice * float64(Nights(start, end)) * float64(travelers) * m
	return domain.RoundMajor(total), nil
}
