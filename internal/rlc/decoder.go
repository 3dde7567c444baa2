package rlc

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnusedRepairSymbol сигнализирует, что repair-символ не добавил новой
// информации: все покрытые им символы уже известны или линейно зависимы.
var ErrUnusedRepairSymbol = errors.New("unused repair symbol")

// equation — приведенное уравнение системы: остаточные коэффициенты по
// неизвестным символам плюс свернутая правая часть. Инвариант системы:
// коэффициент при пивоте равен единице, и ни одно уравнение не содержит
// чужого пивота.
type equation struct {
	coefs   map[uint64]byte
	payload []byte
	pivot   uint64
}

func (eq *equation) lowestUnknown() (uint64, bool) {
	found := false
	var low uint64
	for id := range eq.coefs {
		if !found || id < low {
			low = id
			found = true
		}
	}
	return low, found
}

// Decoder — декодер скользящего окна: накапливает известные символы и
// систему уравнений от repair-символов, поддерживая ее в приведенном
// ступенчатом виде. Каждое поступление (source или repair) запускает
// подстановку и каскадное восстановление всего, что стало разрешимым.
type Decoder struct {
	symbolSize int
	maxSymbols int

	// Известные символы: полученные и восстановленные.
	known map[uint64][]byte

	// Уравнения по ID их пивота.
	pivots map[uint64]*equation
}

// NewDecoder создает декодер для символов длиной symbolSize байт и емкости
// maxSymbols символов.
func NewDecoder(symbolSize, maxSymbols int) *Decoder {
	return &Decoder{
		symbolSize: symbolSize,
		maxSymbols: maxSymbols,
		known:      make(map[uint64][]byte),
		pivots:     make(map[uint64]*equation),
	}
}

// NKnownSymbols возвращает число известных декодеру символов.
func (d *Decoder) NKnownSymbols() int {
	return len(d.known)
}

// NPendingEquations возвращает число уравнений, ждущих недостающих символов.
func (d *Decoder) NPendingEquations() int {
	return len(d.pivots)
}

// ReceiveSourceSymbol подставляет полученный символ во все уравнения и
// возвращает символы, восстановленные каскадом. Параметр now не влияет на
// исход (симуляция детерминирована) и принят ради симметрии интерфейса.
func (d *Decoder) ReceiveSourceSymbol(sym SourceSymbol, now time.Time) ([]SourceSymbol, error) {
	_ = now
	if len(sym.Get()) != d.symbolSize {
		return nil, fmt.Errorf("symbol length %d, decoder expects %d", len(sym.Get()), d.symbolSize)
	}
	id := MetadataToU64(sym.Metadata)
	if _, ok := d.known[id]; ok {
		return nil, nil
	}
	d.learn(id, append([]byte(nil), sym.Get()...))
	return d.drain(), nil
}

// ReceiveAndDeserializeRepairSymbol разбирает repair-символ, включает его в
// систему и возвращает восстановленные символы.
func (d *Decoder) ReceiveAndDeserializeRepairSymbol(data []byte) (*RepairSymbol, []SourceSymbol, error) {
	r, err := parseRepairSymbol(data, d.symbolSize)
	if err != nil {
		return nil, nil, err
	}

	eq := &equation{
		coefs:   make(map[uint64]byte, r.Count),
		payload: append([]byte(nil), r.Payload...),
	}
	for off := 0; off < int(r.Count); off++ {
		id := r.First + uint64(off)
		c := coefficient(r.Key, off)
		if data, ok := d.known[id]; ok {
			mulAddInto(eq.payload, data, c)
			continue
		}
		eq.coefs[id] = c
	}

	if !d.insert(eq) {
		return r, nil, ErrUnusedRepairSymbol
	}
	return r, d.drain(), nil
}

// insert приводит уравнение относительно существующих пивотов и встраивает
// его в систему. Возвращает false, если уравнение выродилось (линейно
// зависимо от уже известного).
func (d *Decoder) insert(eq *equation) bool {
	// Прямой ход: исключаем все занятые пивоты. Каждая итерация убирает
	// один пивот и добавляет только не-пивотные ID, так что цикл конечен.
	for {
		var hit *equation
		var hitC byte
		for id, c := range eq.coefs {
			if other, ok := d.pivots[id]; ok {
				hit, hitC = other, c
				break
			}
		}
		if hit == nil {
			break
		}
		eliminate(eq, hit, hitC)
	}

	low, ok := eq.lowestUnknown()
	if !ok {
		return false
	}

	// Нормализуем пивот к единице.
	scale := inv(eq.coefs[low])
	scaleInto(eq.payload, scale)
	for id, c := range eq.coefs {
		eq.coefs[id] = mul(c, scale)
	}
	eq.pivot = low

	// Обратный ход: исключаем новый пивот из остальных уравнений. Их
	// собственные пивоты не задеваются — eq чужих пивотов не содержит.
	for _, prev := range d.pivots {
		if c, has := prev.coefs[low]; has {
			eliminate(prev, eq, c)
		}
	}
	d.pivots[low] = eq
	return true
}

// eliminate выполняет dst -= c*src над коэффициентами и правой частью.
func eliminate(dst, src *equation, c byte) {
	mulAddInto(dst.payload, src.payload, c)
	for id, sc := range src.coefs {
		nc := dst.coefs[id] ^ mul(c, sc)
		if nc == 0 {
			delete(dst.coefs, id)
		} else {
			dst.coefs[id] = nc
		}
	}
}

// learn фиксирует символ как известный и подставляет его в систему.
func (d *Decoder) learn(id uint64, data []byte) {
	d.known[id] = data

	for _, eq := range d.pivots {
		if c, has := eq.coefs[id]; has {
			mulAddInto(eq.payload, data, c)
			delete(eq.coefs, id)
		}
	}

	// Уравнение, пивот которого только что стал известен, потеряло пивот
	// в общем цикле выше; остаток возвращается в систему обычной вставкой.
	if eq, ok := d.pivots[id]; ok {
		delete(d.pivots, id)
		if len(eq.coefs) > 0 {
			d.insert(eq)
		}
	}
}

// drain восстанавливает все уравнения, сведенные к одной неизвестной,
// каскадно, пока система не перестанет давать новые символы.
func (d *Decoder) drain() []SourceSymbol {
	var out []SourceSymbol
	for {
		var solved *equation
		for _, eq := range d.pivots {
			if len(eq.coefs) == 1 {
				solved = eq
				break
			}
		}
		if solved == nil {
			return out
		}
		// Единственный оставшийся коэффициент — пивот, и он уже равен
		// единице, так что правая часть и есть символ.
		id := solved.pivot
		data := append([]byte(nil), solved.payload...)
		delete(d.pivots, id)
		d.learn(id, data)
		out = append(out, NewSourceSymbol(MetadataFromU64(id), data))
	}
}
