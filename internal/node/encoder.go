package node

import (
	"errors"

	"fec-sim/internal/fec"
	"fec-sim/internal/packet"
)

// Encoder — узел FEC-кодера: защищает каждый проходящий пакет и вставляет
// сгенерированные repair-символы сразу за пакетом, который их вызвал.
type Encoder struct {
	// Число принятых source-пакетов.
	nbSS uint64

	// Число сгенерированных repair-пакетов.
	nbRS uint64

	// Буфер пакетов, ждущих обработки (в порядке поступления).
	pkts []*packet.Packet

	// FEC-алгоритм кодирующей стороны.
	fec *fec.Encoder
}

// NewEncoder создает узел с заданным FEC-кодером.
func NewEncoder(f *fec.Encoder) *Encoder {
	return &Encoder{fec: f}
}

// NewSimpleEncoder создает узел без FEC-защиты.
func NewSimpleEncoder() *Encoder {
	return &Encoder{fec: fec.NewNoneEncoder()}
}

// Recv копит пакеты в буфере.
func (e *Encoder) Recv(pkts []*packet.Packet) error {
	e.pkts = append(e.pkts, pkts...)
	return nil
}

// Forward защищает буфер и отдает его вместе с repair-символами.
func (e *Encoder) Forward() ([]*packet.Packet, error) {
	out := make([]*packet.Packet, 0, len(e.pkts))
	e.nbSS += uint64(len(e.pkts))

	for _, pkt := range e.pkts {
		if err := e.fec.ProtectSymbol(pkt); err != nil {
			return nil, err
		}
		out = append(out, pkt)

		if e.fec.ShouldGenerateRepairs() {
			repairs, err := e.fec.GenerateRepairs()
			if err != nil {
				if !errors.Is(err, fec.ErrNoSymbolToGenerate) {
					return nil, err
				}
				repairs = nil
			}
			e.nbRS += uint64(len(repairs))
			out = append(out, repairs...)
		}
	}

	e.pkts = e.pkts[:0]
	return out, nil
}

// NbRS возвращает число сгенерированных repair-пакетов.
func (e *Encoder) NbRS() uint64 {
	return e.nbRS
}

// NbSS возвращает число принятых source-пакетов.
func (e *Encoder) NbSS() uint64 {
	return e.nbSS
}

// RecvFeedback передает записи обратной связи декодера FEC-кодеру.
func (e *Encoder) RecvFeedback(feedback []FeedbackRecord) {
	for _, fb := range feedback {
		e.fec.RecvFeedback(fb.NbLost, fb.NbElems)
	}
}

// Fec возвращает FEC-кодер узла.
func (e *Encoder) Fec() *fec.Encoder {
	return e.fec
}
