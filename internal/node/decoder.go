package node

import (
	"errors"
	"math/bits"

	"go.uber.org/zap"

	"fec-sim/internal/fec"
	"fec-sim/internal/packet"
)

// FeedbackRecord — одна запись обратной связи декодера: сколько символов
// потеряно из скольких за интервал с прошлой записи.
type FeedbackRecord struct {
	NbLost  uint64
	NbElems uint64
}

// Decoder — узел FEC-декодера: source-символы идут в окно декодера и
// дальше без метаданных, repair-символы поглощаются, восстановленные
// пакеты добавляются в выходной поток.
type Decoder struct {
	// Число принятых source-пакетов.
	nbSS uint64

	// Число принятых repair-пакетов.
	nbRS uint64

	// Число восстановленных пакетов.
	nbRecovered uint64

	pkts []*packet.Packet

	// FEC-алгоритм декодирующей стороны.
	fec *fec.Decoder

	// Планировщик обратной связи; nil, если схема ее не использует.
	feedback *Feedback

	// Трасса восстановленных ssid; nil, пока не включена.
	trace []uint64

	traceActive bool

	logger *zap.Logger
}

// NewDecoder создает узел с заданным FEC-декодером и, опционально,
// планировщиком обратной связи.
func NewDecoder(f *fec.Decoder, feedback *Feedback, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{fec: f, feedback: feedback, logger: logger}
}

// NewSimpleDecoder создает узел без FEC и без обратной связи.
func NewSimpleDecoder() *Decoder {
	return &Decoder{fec: fec.NewNoneDecoder(), logger: zap.NewNop()}
}

// Recv копит пакеты в буфере.
func (d *Decoder) Recv(pkts []*packet.Packet) error {
	d.pkts = append(d.pkts, pkts...)
	return nil
}

// Forward обрабатывает буфер. Возвращает пакеты для приемника и записи
// обратной связи, накопившиеся за проход.
func (d *Decoder) Forward() ([]*packet.Packet, []FeedbackRecord, error) {
	out := make([]*packet.Packet, 0, len(d.pkts))
	var feedbackRecords []FeedbackRecord

	for _, pkt := range d.pkts {
		switch {
		case pkt.FEC != nil && pkt.FEC.IsSource():
			d.nbSS++

			recovered, err := d.fec.RecvSourceSymbol(pkt)
			if err != nil {
				d.logger.Error("decoding source symbol", zap.Uint64("id", pkt.ID), zap.Error(err))
			} else if len(recovered) > 0 {
				d.logger.Debug("recovered from source symbol",
					zap.Uint64("trigger", pkt.ID), zap.Int("count", len(recovered)))
				d.noteRecovered(recovered)
				out = append(out, recovered...)
			}

			if d.feedback != nil {
				id := pkt.PayloadID()
				if err := d.feedback.RecvSS(id); err != nil {
					return nil, nil, err
				}
				if d.feedback.ShouldSendFeedback(id) {
					total := d.feedback.NbSinceLast(id)
					nbLost := total - min(total, d.feedback.NbRecv())
					feedbackRecords = append(feedbackRecords, FeedbackRecord{NbLost: nbLost, NbElems: total})
					d.feedback.Reset(id)
				}
			}

			// Метаданные сняты — дальше пакет идет как обычные данные.
			pkt.FEC = nil
			out = append(out, pkt)

		case pkt.FEC != nil && pkt.FEC.IsRepair():
			d.nbRS++

			recovered, err := d.fec.RecvRepairSymbol(pkt)
			switch {
			case errors.Is(err, packet.ErrTooOldEquation):
				d.logger.Debug("too old equation", zap.Uint64("id", pkt.ID))
			case errors.Is(err, packet.ErrUnusedRepair):
				d.logger.Debug("unused repair symbol", zap.Uint64("id", pkt.ID))
			case err != nil:
				d.logger.Error("decoding repair symbol", zap.Uint64("id", pkt.ID), zap.Error(err))
			case len(recovered) > 0:
				d.noteRecovered(recovered)
				out = append(out, recovered...)
			}
			// Repair-пакет дальше не идет.

		default:
			out = append(out, pkt)
		}
	}

	d.pkts = d.pkts[:0]
	return out, feedbackRecords, nil
}

func (d *Decoder) noteRecovered(recovered []*packet.Packet) {
	d.nbRecovered += uint64(len(recovered))
	if d.traceActive {
		for _, pkt := range recovered {
			d.trace = append(d.trace, pkt.ID)
		}
	}
}

// NbRecovered возвращает число восстановленных пакетов.
func (d *Decoder) NbRecovered() uint64 {
	return d.nbRecovered
}

// NbSS возвращает число принятых source-пакетов.
func (d *Decoder) NbSS() uint64 {
	return d.nbSS
}

// NbRS возвращает число принятых repair-пакетов.
func (d *Decoder) NbRS() uint64 {
	return d.nbRS
}

// ActivateTrace включает запись восстановленных ssid.
func (d *Decoder) ActivateTrace() {
	d.traceActive = true
}

// Trace возвращает восстановленные ssid, если трасса включена.
func (d *Decoder) Trace() []uint64 {
	return d.trace
}

// Число слотов битовой карты обратной связи.
const feedbackBitmapSlots = 1024

// Feedback отслеживает полученные source-символы и решает, когда слать
// запись обратной связи кодеру.
type Feedback struct {
	// Число source-символов между записями.
	frequency uint64

	// ssid-якорь последней записи.
	lastFeedback uint64

	// Битовая карта полученных символов относительно якоря.
	bitmap [feedbackBitmapSlots/64 + 1]uint64
}

// NewFeedback создает планировщик с частотой frequency.
func NewFeedback(frequency uint64) *Feedback {
	return &Feedback{frequency: frequency}
}

// RecvSS отмечает полученный source-символ. Разрыв больше емкости карты —
// жесткая ошибка.
func (f *Feedback) RecvSS(id uint64) error {
	relative := id - f.lastFeedback
	if relative > feedbackBitmapSlots {
		return packet.ErrFeedbackIDTooBig
	}
	f.bitmap[relative/64] |= 1 << (relative % 64)
	return nil
}

// NbRecv возвращает число отмеченных символов.
func (f *Feedback) NbRecv() uint64 {
	var count int
	for _, word := range f.bitmap {
		count += bits.OnesCount64(word)
	}
	return uint64(count)
}

// NbSinceLast возвращает длину интервала с прошлой записи.
func (f *Feedback) NbSinceLast(id uint64) uint64 {
	return id - f.lastFeedback
}

// Reset начинает новый интервал с якорем id.
func (f *Feedback) Reset(id uint64) {
	f.lastFeedback = id
	f.bitmap = [feedbackBitmapSlots/64 + 1]uint64{}
}

// ShouldSendFeedback сообщает, накопился ли полный интервал.
func (f *Feedback) ShouldSendFeedback(id uint64) bool {
	return id-f.lastFeedback >= f.frequency
}
