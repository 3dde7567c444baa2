package fec

import (
	"encoding/binary"
	"errors"
	"time"

	"fec-sim/internal/packet"
	"fec-sim/internal/rlc"
)

// Tart — код скользящего окна поверх линейного ядра. Обертка отвечает за
// метаданные пакетов и за расписание выдачи repair-символов; линейная
// алгебра целиком живет в ядре.

// Ядро держит до maxWindowFactor окон, чтобы декодер успевал дорешивать
// уравнения по символам, уже вышедшим из окна кодера.
const maxWindowFactor = 500

// Размер символа: в симуляции payload — big-endian uint64.
const tartSymbolSize = 8

// ErrNoSymbolToGenerate пробрасывается из ядра: окно пусто, repair
// генерировать не из чего.
var ErrNoSymbolToGenerate = rlc.ErrNoSymbolToGenerate

// TartEncoder защищает каждый исходящий символ в ядре и выдает
// repair-символы в такт планировщику.
type TartEncoder struct {
	kernel    *rlc.Encoder
	scheduler RepairScheduler
	maxWnd    int
}

// NewTartEncoder создает кодер с планировщиком scheduler и окном maxWnd.
func NewTartEncoder(scheduler RepairScheduler, maxWnd uint64) *TartEncoder {
	return &TartEncoder{
		kernel:    rlc.NewEncoder(tartSymbolSize, int(maxWnd)*maxWindowFactor),
		scheduler: scheduler,
		maxWnd:    int(maxWnd),
	}
}

func (e *TartEncoder) nextID() uint64 {
	return rlc.MetadataToU64(e.kernel.NextMetadata())
}

// ProtectSymbol отдает payload ядру, прикрепляет выданные метаданные и при
// заполнении окна выводит из него устаревшие символы.
func (e *TartEncoder) ProtectSymbol(pkt *packet.Packet) error {
	var md rlc.SourceSymbolMetadata
	if err := e.kernel.ProtectData(pkt.Payload, &md); err != nil {
		return wrapEncoderErr(err)
	}
	if err := pkt.AddFECMetadata(packet.TartSourceMeta(md)); err != nil {
		return err
	}
	if e.kernel.NProtectedSymbols() >= e.maxWnd {
		e.retire()
	}
	return nil
}

// retire выводит из окна ядра символы с ID <= next - maxWnd. RemoveUpTo
// ядра границу не включает, поэтому ему передается next - maxWnd + 1.
func (e *TartEncoder) retire() {
	next := e.nextID()
	if next < uint64(e.maxWnd) {
		return
	}
	e.kernel.RemoveUpTo(rlc.MetadataFromU64(next - uint64(e.maxWnd) + 1))
}

// ShouldGenerateRepairs делегирует решение планировщику.
func (e *TartEncoder) ShouldGenerateRepairs() bool {
	return e.scheduler.ShouldGenerate(e.nextID())
}

// GenerateRepairs выдает repair-символы, пока планировщик не насытится.
// Repair-байты живут в метаданных; payload пакета пуст.
func (e *TartEncoder) GenerateRepairs() ([]*packet.Packet, error) {
	var out []*packet.Packet

	current := e.nextID()
	for e.scheduler.ShouldGenerate(current) {
		repair, err := e.kernel.GenerateAndSerializeRepairSymbol()
		if err != nil {
			return out, wrapEncoderErr(err)
		}
		md := packet.TartRepairMeta(repair)
		rs := &packet.Packet{ID: current, FEC: &md}
		out = append(out, rs)
		e.scheduler.OnSent(current)
	}

	return out, nil
}

// RecvFeedback передает запись обратной связи планировщику.
func (e *TartEncoder) RecvFeedback(nbLost, nbElems uint64) {
	e.scheduler.RecvFeedback(nbLost, nbElems)
}

// Name возвращает имя конфигурации вида tart_window_5.
func (e *TartEncoder) Name() string {
	return "tart_" + e.scheduler.Name()
}

// TartDecoder — зеркальная обертка декодера ядра.
type TartDecoder struct {
	kernel *rlc.Decoder
}

// NewTartDecoder создает декодер под окно maxWnd.
func NewTartDecoder(maxWnd uint64) *TartDecoder {
	return &TartDecoder{
		kernel: rlc.NewDecoder(tartSymbolSize, int(maxWnd)*maxWindowFactor),
	}
}

// RecvSourceSymbol передает source-символ ядру; все, что ядро дорешало,
// возвращается восстановленными пакетами.
func (d *TartDecoder) RecvSourceSymbol(pkt *packet.Packet) ([]*packet.Packet, error) {
	if pkt.FEC == nil || !pkt.FEC.IsSource() || pkt.FEC.Scheme != packet.SchemeTart {
		return nil, packet.ErrFecWrongMetadata
	}
	sym := rlc.NewSourceSymbol(rlc.SourceSymbolMetadata(pkt.FEC.TartSource), pkt.Payload)
	decoded, err := d.kernel.ReceiveSourceSymbol(sym, time.Now())
	if err != nil {
		return nil, wrapDecoderErr(err)
	}
	return recoveredPackets(decoded, pkt.ID), nil
}

// RecvRepairSymbol возвращает repair-байты ядру нетронутыми.
func (d *TartDecoder) RecvRepairSymbol(pkt *packet.Packet) ([]*packet.Packet, error) {
	if pkt.FEC == nil || !pkt.FEC.IsRepair() || pkt.FEC.Scheme != packet.SchemeTart {
		return nil, packet.ErrFecWrongMetadata
	}
	_, decoded, err := d.kernel.ReceiveAndDeserializeRepairSymbol(pkt.FEC.TartRepair)
	if err != nil {
		if errors.Is(err, rlc.ErrUnusedRepairSymbol) {
			return nil, packet.ErrUnusedRepair
		}
		return nil, wrapDecoderErr(err)
	}
	return recoveredPackets(decoded, pkt.ID), nil
}

// recoveredPackets превращает дорешанные символы ядра в пакеты с
// дистанцией восстановления от триггера.
func recoveredPackets(decoded []rlc.SourceSymbol, triggerID uint64) []*packet.Packet {
	if len(decoded) == 0 {
		return nil
	}
	out := make([]*packet.Packet, 0, len(decoded))
	for _, sym := range decoded {
		id := binary.BigEndian.Uint64(sym.Get())
		out = append(out, packet.NewRecovered(id, triggerID))
	}
	return out
}
