package node

import (
	"fec-sim/internal/drop"
	"fec-sim/internal/packet"
)

// TraceEntry — запись трассы дроппера: пакет, его тип и судьба.
type TraceEntry struct {
	ID       uint64
	IsRepair bool
	Dropped  bool
}

// Dropper — узел потерь: каждый проходящий пакет спрашивает у оракула,
// жить ему или нет.
type Dropper struct {
	oracle drop.Oracle

	// Число принятых пакетов.
	nbRecv uint64

	// Число потерянных пакетов.
	nbDrop uint64

	// Число потерянных source-пакетов.
	nbDropSS uint64

	pkts []*packet.Packet

	// Трасса решений; nil, пока не включена.
	trace []TraceEntry
}

// NewDropper создает узел с заданным оракулом потерь.
func NewDropper(oracle drop.Oracle) *Dropper {
	return &Dropper{oracle: oracle}
}

// NewSimpleDropper создает узел без потерь.
func NewSimpleDropper() *Dropper {
	return &Dropper{oracle: drop.None{}}
}

// Recv копит пакеты в буфере.
func (d *Dropper) Recv(pkts []*packet.Packet) error {
	d.nbRecv += uint64(len(pkts))
	d.pkts = append(d.pkts, pkts...)
	return nil
}

// Forward пропускает буфер через оракула.
func (d *Dropper) Forward() ([]*packet.Packet, error) {
	out := make([]*packet.Packet, 0, len(d.pkts))
	for _, pkt := range d.pkts {
		isRepair := pkt.FEC != nil && pkt.FEC.IsRepair()

		dropped := d.oracle.ShouldDrop()
		if dropped {
			d.nbDrop++
			if pkt.FEC != nil && pkt.FEC.IsSource() {
				d.nbDropSS++
			}
		} else {
			out = append(out, pkt)
		}

		if d.trace != nil {
			d.trace = append(d.trace, TraceEntry{ID: pkt.ID, IsRepair: isRepair, Dropped: dropped})
		}
	}
	d.pkts = d.pkts[:0]
	return out, nil
}

// NbDropped возвращает общее число потерянных пакетов.
func (d *Dropper) NbDropped() uint64 {
	return d.nbDrop
}

// NbSSDropped возвращает число потерянных source-пакетов.
func (d *Dropper) NbSSDropped() uint64 {
	return d.nbDropSS
}

// NbRecv возвращает число принятых пакетов.
func (d *Dropper) NbRecv() uint64 {
	return d.nbRecv
}

// DroppedRatio возвращает фактическую долю потерь.
func (d *Dropper) DroppedRatio() float64 {
	if d.nbRecv == 0 {
		return 0
	}
	return float64(d.nbDrop) / float64(d.nbRecv)
}

// ActivateTrace включает запись трассы решений.
func (d *Dropper) ActivateTrace() {
	if d.trace == nil {
		d.trace = []TraceEntry{}
	}
}

// Trace возвращает трассу решений, если она включена.
func (d *Dropper) Trace() []TraceEntry {
	return d.trace
}

// DroppedSS возвращает ID потерянных source-пакетов по трассе.
func (d *Dropper) DroppedSS() []uint64 {
	if d.trace == nil {
		return nil
	}
	var out []uint64
	for _, entry := range d.trace {
		if !entry.IsRepair && entry.Dropped {
			out = append(out, entry.ID)
		}
	}
	return out
}
