// Package node собирает узлы конвейера симуляции: источник, кодер,
// дроппер, декодер и приемник. Узлы работают в два такта — recv копит
// пакеты во внутреннем буфере, forward обрабатывает и отдает их дальше.
package node

import (
	"sort"

	"fec-sim/internal/packet"
)

// Node — узел, принимающий и пересылающий пакеты. Узел может отдать
// больше или меньше пакетов, чем принял.
type Node interface {
	// Recv добавляет пакеты во внутренний буфер узла.
	Recv(pkts []*packet.Packet) error

	// Forward обрабатывает буфер и возвращает исходящие пакеты.
	Forward() ([]*packet.Packet, error)
}

// Source генерирует пакеты с монотонными ID; payload — big-endian ID.
type Source struct {
	// ID следующего пакета.
	id uint64
}

// NewSource создает источник, начинающий с ID 0.
func NewSource() *Source {
	return &Source{}
}

// Gen выпускает очередной пакет.
func (s *Source) Gen() *packet.Packet {
	pkt := packet.New(s.id)
	s.id++
	return pkt
}

// Sink принимает пакеты на выходе конвейера. Хранит их списком, чтобы
// были видны дубликаты (source-копия плюс восстановленная).
type Sink struct {
	recv []*packet.Packet
}

// NewSink создает пустой приемник.
func NewSink() *Sink {
	return &Sink{}
}

// Recv принимает один пакет.
func (s *Sink) Recv(pkt *packet.Packet) {
	s.recv = append(s.recv, pkt)
}

// RecvMultiple принимает несколько пакетов.
func (s *Sink) RecvMultiple(pkts []*packet.Packet) {
	s.recv = append(s.recv, pkts...)
}

// NbReceived возвращает число принятых пакетов.
func (s *Sink) NbReceived() int {
	return len(s.recv)
}

// Recovered возвращает ID всех восстановленных пакетов.
func (s *Sink) Recovered() []uint64 {
	var out []uint64
	for _, pkt := range s.recv {
		if pkt.IsRecovered() {
			out = append(out, pkt.ID)
		}
	}
	return out
}

// RecoveryDelay — восстановленный пакет и его дистанция восстановления:
// сколько source-символов дошло до декодера, прежде чем пакет удалось
// восстановить.
type RecoveryDelay struct {
	ID       uint64
	Distance uint64
}

// RecoveryDelays возвращает дистанции восстановления всех восстановленных
// пакетов.
func (s *Sink) RecoveryDelays() []RecoveryDelay {
	var out []RecoveryDelay
	for _, pkt := range s.recv {
		if pkt.IsRecovered() {
			out = append(out, RecoveryDelay{ID: pkt.ID, Distance: *pkt.RecoveredFrom})
		}
	}
	return out
}

// Lost возвращает отсортированный список ID из [0, maxID), не дошедших до
// приемника ни в каком виде.
func (s *Sink) Lost(maxID uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(s.recv))
	for _, pkt := range s.recv {
		seen[pkt.ID] = struct{}{}
	}
	var out []uint64
	for id := uint64(0); id < maxID; id++ {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Duplicates возвращает ID, пришедшие больше одного раза.
func (s *Sink) Duplicates() []uint64 {
	uniques := make(map[uint64]struct{}, len(s.recv))
	var out []uint64
	for _, pkt := range s.recv {
		if _, ok := uniques[pkt.ID]; ok {
			out = append(out, pkt.ID)
		} else {
			uniques[pkt.ID] = struct{}{}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
