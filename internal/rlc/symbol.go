package rlc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SourceSymbolMetadata — непрозрачные 8-байтовые метаданные source-символа.
// Преобразования в uint64 и обратно бит-точные (big-endian).
type SourceSymbolMetadata [8]byte

// MetadataFromU64 кодирует ID символа в метаданные (big-endian).
func MetadataFromU64(id uint64) SourceSymbolMetadata {
	var md SourceSymbolMetadata
	binary.BigEndian.PutUint64(md[:], id)
	return md
}

// MetadataToU64 декодирует метаданные обратно в ID символа.
func MetadataToU64(md SourceSymbolMetadata) uint64 {
	return binary.BigEndian.Uint64(md[:])
}

// SourceSymbol — защищаемый или восстановленный символ окна.
type SourceSymbol struct {
	Metadata SourceSymbolMetadata
	data     []byte
}

// NewSourceSymbol создает символ из метаданных и данных.
func NewSourceSymbol(md SourceSymbolMetadata, data []byte) SourceSymbol {
	return SourceSymbol{Metadata: md, data: data}
}

// Get возвращает данные символа.
func (s SourceSymbol) Get() []byte {
	return s.data
}

// RepairSymbol — repair-символ в разобранном виде: окно [First, First+Count),
// ключ строки коэффициентов и свернутая линейная комбинация данных.
type RepairSymbol struct {
	First   uint64
	Count   uint32
	Key     uint32
	Payload []byte
}

const repairHeaderLen = 8 + 4 + 4

var errRepairTooShort = errors.New("repair symbol shorter than header")

// Serialize упаковывает repair-символ: [first u64][count u32][key u32][payload].
// Все числа big-endian.
func (r *RepairSymbol) Serialize() []byte {
	out := make([]byte, repairHeaderLen+len(r.Payload))
	binary.BigEndian.PutUint64(out[0:8], r.First)
	binary.BigEndian.PutUint32(out[8:12], r.Count)
	binary.BigEndian.PutUint32(out[12:16], r.Key)
	copy(out[repairHeaderLen:], r.Payload)
	return out
}

func parseRepairSymbol(data []byte, symbolSize int) (*RepairSymbol, error) {
	if len(data) < repairHeaderLen {
		return nil, errRepairTooShort
	}
	r := &RepairSymbol{
		First:   binary.BigEndian.Uint64(data[0:8]),
		Count:   binary.BigEndian.Uint32(data[8:12]),
		Key:     binary.BigEndian.Uint32(data[12:16]),
		Payload: append([]byte(nil), data[repairHeaderLen:]...),
	}
	if len(r.Payload) != symbolSize {
		return nil, fmt.Errorf("repair payload length %d, symbol size %d", len(r.Payload), symbolSize)
	}
	if r.Count == 0 {
		return nil, errors.New("repair symbol covers empty window")
	}
	return r, nil
}
