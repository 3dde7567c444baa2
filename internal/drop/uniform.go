package drop

import "math/rand"

// Uniform — потери Бернулли с фиксированной вероятностью. Зерно задается
// явно: одинаковое зерно — одинаковая последовательность решений.
type Uniform struct {
	rng  *rand.Rand
	rate float64
}

// NewUniform создает оракул с вероятностью потери rate и зерном seed.
func NewUniform(rate float64, seed int64) *Uniform {
	return &Uniform{
		rng:  rand.New(rand.NewSource(seed)),
		rate: rate,
	}
}

// ShouldDrop бросает монету с вероятностью rate.
func (u *Uniform) ShouldDrop() bool {
	return u.rng.Float64() < u.rate
}
