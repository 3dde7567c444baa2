package drop

import "testing"

// TestNoneNeverDrops.
func TestNoneNeverDrops(t *testing.T) {
	oracle := None{}
	for i := 0; i < 100; i++ {
		if oracle.ShouldDrop() {
			t.Fatal("None oracle dropped a packet")
		}
	}
}

// TestConstantPeriod: потеря ровно раз в step вызовов.
func TestConstantPeriod(t *testing.T) {
	oracle := NewConstant(3)
	want := []bool{false, false, true, false, false, true}
	for i, w := range want {
		if got := oracle.ShouldDrop(); got != w {
			t.Errorf("call %d: got %v, want %v", i, got, w)
		}
	}
}

// TestSpecificIndices: потери по индексам вызовов, с цикличностью.
func TestSpecificIndices(t *testing.T) {
	oracle := NewSpecific(4)
	oracle.AddToDrop([]uint64{1})

	want := []bool{false, true, false, false, false, true, false, false}
	for i, w := range want {
		if got := oracle.ShouldDrop(); got != w {
			t.Errorf("call %d: got %v, want %v", i, got, w)
		}
	}
}

// TestUniformDeterminism: одно зерно — одна последовательность решений.
func TestUniformDeterminism(t *testing.T) {
	a := NewUniform(0.3, 42)
	b := NewUniform(0.3, 42)
	for i := 0; i < 1000; i++ {
		if a.ShouldDrop() != b.ShouldDrop() {
			t.Fatalf("sequences diverge at call %d", i)
		}
	}
}

// TestUniformExtremes: границы вероятности.
func TestUniformExtremes(t *testing.T) {
	never := NewUniform(0.0, 1)
	always := NewUniform(1.0, 1)
	for i := 0; i < 100; i++ {
		if never.ShouldDrop() {
			t.Fatal("rate 0 dropped a packet")
		}
		if !always.ShouldDrop() {
			t.Fatal("rate 1 kept a packet")
		}
	}
}

// TestGilbertElliottStates: при вырожденных вероятностях модель ведет себя
// детерминированно — первый вызов еще в хорошем состоянии, дальше потери.
func TestGilbertElliottStates(t *testing.T) {
	// g2b=1: переход в плохое состояние на первом же вызове, но решение о
	// потере принимается по вероятности исходного состояния (0).
	oracle := NewGilbertElliott(1.0, 0.0, 7)
	if oracle.ShouldDrop() {
		t.Error("first call dropped while still in the keep state")
	}
	for i := 0; i < 50; i++ {
		if !oracle.ShouldDrop() {
			t.Fatalf("call %d kept a packet in the drop state", i)
		}
	}
}

// TestGilbertElliottDeterminism: одно зерно — одна последовательность.
func TestGilbertElliottDeterminism(t *testing.T) {
	a := NewGilbertElliott(0.05, 0.3, 11)
	b := NewGilbertElliott(0.05, 0.3, 11)
	for i := 0; i < 1000; i++ {
		if a.ShouldDrop() != b.ShouldDrop() {
			t.Fatalf("sequences diverge at call %d", i)
		}
	}
}
