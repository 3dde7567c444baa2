package rlc

import (
	"errors"
	"fmt"
)

// ErrNoSymbolToGenerate возвращается, когда окно кодера пусто и repair
// генерировать не из чего.
var ErrNoSymbolToGenerate = errors.New("no symbol to generate")

// Encoder — кодер скользящего окна. Держит защищаемые символы в окне
// [first, next) и сворачивает их в repair-символы со строками Вандермонда.
type Encoder struct {
	symbolSize int
	maxSymbols int

	// Окно защищаемых символов, ключ — ID.
	window map[uint64][]byte

	// Граница окна: минимальный еще не удаленный ID.
	first uint64

	// Метаданные следующего защищаемого символа.
	next uint64

	// Ключ строки коэффициентов следующего repair-символа.
	repairKey uint32
}

// NewEncoder создает кодер для символов длиной symbolSize байт и окна не
// больше maxSymbols символов.
func NewEncoder(symbolSize, maxSymbols int) *Encoder {
	return &Encoder{
		symbolSize: symbolSize,
		maxSymbols: maxSymbols,
		window:     make(map[uint64][]byte),
	}
}

// NextMetadata возвращает метаданные, которые получит следующий символ.
func (e *Encoder) NextMetadata() SourceSymbolMetadata {
	return MetadataFromU64(e.next)
}

// ProtectData добавляет символ в окно и записывает выданные метаданные в md.
func (e *Encoder) ProtectData(data []byte, md *SourceSymbolMetadata) error {
	if len(data) != e.symbolSize {
		return fmt.Errorf("symbol length %d, encoder expects %d", len(data), e.symbolSize)
	}
	if len(e.window) >= e.maxSymbols {
		return fmt.Errorf("window full: %d symbols", len(e.window))
	}
	*md = MetadataFromU64(e.next)
	e.window[e.next] = append([]byte(nil), data...)
	e.next++
	return nil
}

// NProtectedSymbols возвращает число символов в окне.
func (e *Encoder) NProtectedSymbols() int {
	return len(e.window)
}

// RemoveUpTo выводит из окна все символы с ID строго меньше md.
func (e *Encoder) RemoveUpTo(md SourceSymbolMetadata) {
	upTo := MetadataToU64(md)
	for id := e.first; id < upTo; id++ {
		delete(e.window, id)
	}
	if upTo > e.first {
		e.first = upTo
	}
}

// GenerateAndSerializeRepairSymbol сворачивает текущее окно в один
// repair-символ и возвращает его сериализованную форму.
func (e *Encoder) GenerateAndSerializeRepairSymbol() ([]byte, error) {
	if len(e.window) == 0 {
		return nil, ErrNoSymbolToGenerate
	}

	r := &RepairSymbol{
		First:   e.first,
		Count:   uint32(e.next - e.first),
		Key:     e.repairKey,
		Payload: make([]byte, e.symbolSize),
	}
	for id := e.first; id < e.next; id++ {
		data, ok := e.window[id]
		if !ok {
			continue
		}
		mulAddInto(r.Payload, data, coefficient(r.Key, int(id-e.first)))
	}
	e.repairKey++

	return r.Serialize(), nil
}
