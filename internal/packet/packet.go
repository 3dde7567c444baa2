package packet

import (
	"bytes"
	"encoding/binary"
)

// Packet представляет один пакет симуляции. Несет уникальный ID,
// полезную нагрузку и FEC-метаданные конкретной схемы.
//
// Payload для source-пакетов — big-endian кодировка ID (8 байт), чтобы
// XOR-восстановление было проверяемым: id == payload на всем пути.
type Packet struct {
	// Уникальный монотонный ID, выданный источником.
	ID uint64

	// Полезная нагрузка (для source-пакетов — big-endian ID).
	Payload []byte

	// FEC-метаданные. nil, пока кодер не защитил пакет.
	FEC *Metadata

	// Дистанция восстановления: если пакет был восстановлен декодером,
	// RecoveredFrom = trigger_id - ID, где trigger_id — ID символа,
	// прибытие которого завершило восстановление.
	RecoveredFrom *uint64
}

// New создает новый пакет с payload = big-endian(id).
func New(id uint64) *Packet {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, id)
	return &Packet{ID: id, Payload: payload}
}

// NewRecovered создает восстановленный пакет. from — ID символа,
// прибытие которого завершило восстановление.
func NewRecovered(id, from uint64) *Packet {
	pkt := New(id)
	dist := from - min(from, id)
	pkt.RecoveredFrom = &dist
	return pkt
}

// IsRecovered сообщает, был ли пакет восстановлен декодером.
func (p *Packet) IsRecovered() bool {
	return p.RecoveredFrom != nil
}

// Equal сравнивает пакеты по (ID, Payload) — метаданные и флаг
// восстановления в идентичность не входят.
func (p *Packet) Equal(other *Packet) bool {
	return p.ID == other.ID && bytes.Equal(p.Payload, other.Payload)
}

// PayloadID интерпретирует payload как big-endian uint64.
// Для source-пакетов симуляции это совпадает с ID.
func (p *Packet) PayloadID() uint64 {
	return binary.BigEndian.Uint64(p.Payload)
}

// Clone возвращает глубокую копию пакета.
func (p *Packet) Clone() *Packet {
	cp := *p
	cp.Payload = append([]byte(nil), p.Payload...)
	if p.FEC != nil {
		fec := p.FEC.clone()
		cp.FEC = &fec
	}
	if p.RecoveredFrom != nil {
		dist := *p.RecoveredFrom
		cp.RecoveredFrom = &dist
	}
	return &cp
}

// AddFECMetadata прикрепляет FEC-метаданные. Повторное прикрепление —
// нарушение контракта кодера.
func (p *Packet) AddFECMetadata(md Metadata) error {
	if p.FEC != nil {
		return ErrFecDoubleMetadata
	}
	p.FEC = &md
	return nil
}
