package fec

import (
	"errors"
	"testing"

	"fec-sim/internal/packet"
	"fec-sim/internal/rlc"
)

// TestTartProtectAttachesMetadata: кодер выдает метаданные ядра по порядку.
func TestTartProtectAttachesMetadata(t *testing.T) {
	enc := NewTartEncoder(NewWindowStepScheduler(100, 5), 100)

	for i := uint64(0); i < 3; i++ {
		pkt := packet.New(i)
		if err := enc.ProtectSymbol(pkt); err != nil {
			t.Fatalf("ProtectSymbol(%d): %v", i, err)
		}
		if pkt.FEC == nil || !pkt.FEC.IsSource() || pkt.FEC.Scheme != packet.SchemeTart {
			t.Fatalf("packet %d has wrong metadata", i)
		}
		md := rlc.SourceSymbolMetadata(pkt.FEC.TartSource)
		if got := rlc.MetadataToU64(md); got != i {
			t.Errorf("packet %d got kernel metadata %d", i, got)
		}
	}

	pkt := packet.New(99)
	if err := enc.ProtectSymbol(pkt); err != nil {
		t.Fatal(err)
	}
	if err := enc.ProtectSymbol(pkt); !errors.Is(err, packet.ErrFecDoubleMetadata) {
		t.Errorf("expected ErrFecDoubleMetadata, got %v", err)
	}
}

// TestTartRepairCadence: WindowStep с шагом 5 дает repair каждые пять
// source-символов; repair несет байты в метаданных и пустой payload.
func TestTartRepairCadence(t *testing.T) {
	enc := NewTartEncoder(NewWindowStepScheduler(100, 5), 100)

	var repairs []*packet.Packet
	for i := uint64(0); i < 20; i++ {
		pkt := packet.New(i)
		if err := enc.ProtectSymbol(pkt); err != nil {
			t.Fatal(err)
		}
		if enc.ShouldGenerateRepairs() {
			out, err := enc.GenerateRepairs()
			if err != nil {
				t.Fatal(err)
			}
			repairs = append(repairs, out...)
		}
	}

	if len(repairs) != 4 {
		t.Fatalf("got %d repairs for 20 symbols, want 4", len(repairs))
	}
	for _, rs := range repairs {
		if rs.FEC == nil || !rs.FEC.IsRepair() || rs.FEC.Scheme != packet.SchemeTart {
			t.Fatal("repair packet has wrong metadata")
		}
		if len(rs.FEC.TartRepair) == 0 {
			t.Error("repair packet carries no kernel bytes")
		}
		if len(rs.Payload) != 0 {
			t.Error("repair payload must be empty, bytes live in the metadata")
		}
	}
}

// TestTartRoundTripRecovery: потерянный символ восстанавливается repair-ом
// и несет дистанцию восстановления от триггера.
func TestTartRoundTripRecovery(t *testing.T) {
	enc := NewTartEncoder(NewWindowStepScheduler(100, 5), 100)
	dec := NewTartDecoder(100)

	const lostID = 2
	var recovered []*packet.Packet
	for i := uint64(0); i < 10; i++ {
		pkt := packet.New(i)
		if err := enc.ProtectSymbol(pkt); err != nil {
			t.Fatal(err)
		}

		if pkt.ID != lostID {
			out, err := dec.RecvSourceSymbol(pkt)
			if err != nil {
				t.Fatal(err)
			}
			recovered = append(recovered, out...)
		}

		if enc.ShouldGenerateRepairs() {
			repairs, err := enc.GenerateRepairs()
			if err != nil {
				t.Fatal(err)
			}
			for _, rs := range repairs {
				out, err := dec.RecvRepairSymbol(rs)
				if err != nil && !errors.Is(err, packet.ErrUnusedRepair) {
					t.Fatal(err)
				}
				recovered = append(recovered, out...)
			}
		}
	}

	if len(recovered) != 1 {
		t.Fatalf("recovered %d packets, want 1", len(recovered))
	}
	rec := recovered[0]
	if rec.ID != lostID {
		t.Errorf("recovered id %d, want %d", rec.ID, lostID)
	}
	if rec.PayloadID() != lostID {
		t.Errorf("recovered payload %d, want %d", rec.PayloadID(), lostID)
	}
	if !rec.IsRecovered() {
		t.Fatal("recovered packet has no recovery distance")
	}
	// Триггер — repair с ID 5 (момент выдачи), дистанция 5-2.
	if *rec.RecoveredFrom != 3 {
		t.Errorf("recovery distance %d, want 3", *rec.RecoveredFrom)
	}
}

// TestTartUnusedRepair: без потерь repair не несет новой информации.
func TestTartUnusedRepair(t *testing.T) {
	enc := NewTartEncoder(NewWindowStepScheduler(100, 5), 100)
	dec := NewTartDecoder(100)

	for i := uint64(0); i < 5; i++ {
		pkt := packet.New(i)
		if err := enc.ProtectSymbol(pkt); err != nil {
			t.Fatal(err)
		}
		if _, err := dec.RecvSourceSymbol(pkt); err != nil {
			t.Fatal(err)
		}
	}

	repairs, err := enc.GenerateRepairs()
	if err != nil {
		t.Fatal(err)
	}
	if len(repairs) != 1 {
		t.Fatalf("got %d repairs, want 1", len(repairs))
	}
	if _, err := dec.RecvRepairSymbol(repairs[0]); !errors.Is(err, packet.ErrUnusedRepair) {
		t.Errorf("expected ErrUnusedRepair, got %v", err)
	}
}

// TestTartWrongMetadata: чужие метаданные — жесткая ошибка.
func TestTartWrongMetadata(t *testing.T) {
	dec := NewTartDecoder(100)

	bare := packet.New(0)
	if _, err := dec.RecvSourceSymbol(bare); !errors.Is(err, packet.ErrFecWrongMetadata) {
		t.Errorf("bare packet: expected ErrFecWrongMetadata, got %v", err)
	}

	mael := packet.New(1)
	md := packet.MaelstromSource(1)
	mael.FEC = &md
	if _, err := dec.RecvSourceSymbol(mael); !errors.Is(err, packet.ErrFecWrongMetadata) {
		t.Errorf("maelstrom metadata: expected ErrFecWrongMetadata, got %v", err)
	}
}

// TestTartWindowRetire: при заполнении окна старые символы выводятся.
func TestTartWindowRetire(t *testing.T) {
	enc := NewTartEncoder(NewWindowStepScheduler(4, 2), 4)

	for i := uint64(0); i < 10; i++ {
		pkt := packet.New(i)
		if err := enc.ProtectSymbol(pkt); err != nil {
			t.Fatal(err)
		}
	}
	// Окно не растет за пределы maxWnd.
	if got := enc.kernel.NProtectedSymbols(); got > 4 {
		t.Errorf("window holds %d symbols, want <= 4", got)
	}
}
