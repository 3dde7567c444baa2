package fec

import (
	"fmt"

	"fec-sim/internal/packet"
)

// Scheme перечисляет FEC-алгоритмы конвейера. Закрытый набор вариантов:
// диспетчеризация через switch, без виртуальных вызовов на горячем пути.
type Scheme uint8

const (
	SchemeNone Scheme = iota
	SchemeMaelstrom
	SchemeTart
)

// Encoder — кодирующая сторона выбранной FEC-схемы.
type Encoder struct {
	scheme    Scheme
	maelstrom *MaelstromEncoder
	tart      *TartEncoder
}

// NewNoneEncoder создает кодер-пустышку: пакеты проходят без защиты.
func NewNoneEncoder() *Encoder {
	return &Encoder{scheme: SchemeNone}
}

// NewMaelstromFecEncoder оборачивает кодер Maelstrom.
func NewMaelstromFecEncoder(enc *MaelstromEncoder) *Encoder {
	return &Encoder{scheme: SchemeMaelstrom, maelstrom: enc}
}

// NewTartFecEncoder оборачивает кодер Tart.
func NewTartFecEncoder(enc *TartEncoder) *Encoder {
	return &Encoder{scheme: SchemeTart, tart: enc}
}

// ProtectSymbol прикрепляет FEC-метаданные к пакету и берет его под защиту.
func (e *Encoder) ProtectSymbol(pkt *packet.Packet) error {
	switch e.scheme {
	case SchemeMaelstrom:
		return e.maelstrom.ProtectSymbol(pkt)
	case SchemeTart:
		return e.tart.ProtectSymbol(pkt)
	default:
		return nil
	}
}

// ShouldGenerateRepairs сообщает, должен ли кодер сгенерировать repair-символы.
func (e *Encoder) ShouldGenerateRepairs() bool {
	switch e.scheme {
	case SchemeMaelstrom:
		return e.maelstrom.ShouldGenerateRepairs()
	case SchemeTart:
		return e.tart.ShouldGenerateRepairs()
	default:
		return false
	}
}

// GenerateRepairs генерирует все назревшие repair-символы.
func (e *Encoder) GenerateRepairs() ([]*packet.Packet, error) {
	switch e.scheme {
	case SchemeMaelstrom:
		return e.maelstrom.GenerateRepairs()
	case SchemeTart:
		return e.tart.GenerateRepairs()
	default:
		return nil, nil
	}
}

// RecvFeedback передает запись обратной связи декодера. Схемы без
// обратной связи ее игнорируют.
func (e *Encoder) RecvFeedback(nbLost, nbElems uint64) {
	if e.scheme == SchemeTart {
		e.tart.RecvFeedback(nbLost, nbElems)
	}
}

// Name возвращает имя конфигурации кодера для отчетов и имен файлов.
func (e *Encoder) Name() string {
	switch e.scheme {
	case SchemeMaelstrom:
		return e.maelstrom.Name()
	case SchemeTart:
		return e.tart.Name()
	default:
		return "none"
	}
}

// Decoder — декодирующая сторона выбранной FEC-схемы.
type Decoder struct {
	scheme    Scheme
	maelstrom *MaelstromDecoder
	tart      *TartDecoder
}

// NewNoneDecoder создает декодер-пустышку.
func NewNoneDecoder() *Decoder {
	return &Decoder{scheme: SchemeNone}
}

// NewMaelstromFecDecoder оборачивает декодер Maelstrom.
func NewMaelstromFecDecoder(dec *MaelstromDecoder) *Decoder {
	return &Decoder{scheme: SchemeMaelstrom, maelstrom: dec}
}

// NewTartFecDecoder оборачивает декодер Tart.
func NewTartFecDecoder(dec *TartDecoder) *Decoder {
	return &Decoder{scheme: SchemeTart, tart: dec}
}

// RecvSourceSymbol принимает source-символ. Возвращает восстановленные пакеты.
func (d *Decoder) RecvSourceSymbol(pkt *packet.Packet) ([]*packet.Packet, error) {
	switch d.scheme {
	case SchemeMaelstrom:
		return d.maelstrom.RecvSourceSymbol(pkt)
	case SchemeTart:
		return d.tart.RecvSourceSymbol(pkt)
	default:
		return nil, nil
	}
}

// RecvRepairSymbol принимает repair-символ. Возвращает восстановленные пакеты.
func (d *Decoder) RecvRepairSymbol(pkt *packet.Packet) ([]*packet.Packet, error) {
	switch d.scheme {
	case SchemeMaelstrom:
		return d.maelstrom.RecvRepairSymbol(pkt)
	case SchemeTart:
		return d.tart.RecvRepairSymbol(pkt)
	default:
		return nil, nil
	}
}

func wrapEncoderErr(err error) error {
	return fmt.Errorf("%w: %w", packet.ErrFecEncoder, err)
}

func wrapDecoderErr(err error) error {
	return fmt.Errorf("%w: %w", packet.ErrFecDecoder, err)
}
