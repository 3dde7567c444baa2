package drop

import "math/rand"

type geState uint8

const (
	stateKeep geState = iota
	stateDrop
)

// GilbertElliott — двухсостоянная марковская модель пачечных потерь:
// хорошее состояние почти без потерь, плохое — почти сплошные потери.
type GilbertElliott struct {
	state geState

	// Вероятность перехода Keep -> Drop.
	g2b float64

	// Вероятность перехода Drop -> Keep.
	b2g float64

	// Вероятность потери в состоянии Keep.
	dg float64

	// Вероятность потери в состоянии Drop.
	db float64

	rng *rand.Rand
}

// NewGilbertElliott создает модель с вероятностями переходов g2b/b2g и
// зерном seed. Потери в хорошем состоянии нет, в плохом — всегда.
func NewGilbertElliott(g2b, b2g float64, seed int64) *GilbertElliott {
	return &GilbertElliott{
		state: stateKeep,
		g2b:   g2b,
		b2g:   b2g,
		dg:    0.0,
		db:    1.0,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// ShouldDrop делает шаг цепи и бросает монету текущего состояния.
func (g *GilbertElliott) ShouldDrop() bool {
	var probaChange, probaDrop float64
	switch g.state {
	case stateKeep:
		probaChange, probaDrop = g.g2b, g.dg
	case stateDrop:
		probaChange, probaDrop = g.b2g, g.db
	}
	if g.rng.Float64() < probaChange {
		g.changeState()
	}
	return g.rng.Float64() < probaDrop
}

func (g *GilbertElliott) changeState() {
	if g.state == stateKeep {
		g.state = stateDrop
	} else {
		g.state = stateKeep
	}
}
