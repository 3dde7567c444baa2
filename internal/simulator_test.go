package internal

import (
	"sort"
	"testing"

	"fec-sim/internal/drop"
	"fec-sim/internal/fec"
	"fec-sim/internal/node"
)

// TestSimNoNodes: конвейер из пустышек ничего не теряет и не восстанавливает.
func TestSimNoNodes(t *testing.T) {
	sim := NewSimulator()
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}
	if lost := sim.Sink().Lost(100); len(lost) != 0 {
		t.Errorf("lost = %v, want none", lost)
	}
	if recovered := sim.Sink().Recovered(); len(recovered) != 0 {
		t.Errorf("recovered = %v, want none", recovered)
	}
}

func newMaelstromSim(window int, interleaves []uint64, oracle drop.Oracle, trace bool) *Simulator {
	sim := NewSimulator()

	enc := fec.NewMaelstromEncoder(window, interleaves)
	sim.SetEncoder(node.NewEncoder(fec.NewMaelstromFecEncoder(enc)))

	dropper := node.NewDropper(oracle)
	if trace {
		dropper.ActivateTrace()
	}
	sim.SetDropper(dropper)

	dec := fec.NewMaelstromDecoder(window * capacityFactor)
	sim.SetDecoder(node.NewDecoder(fec.NewMaelstromFecDecoder(dec), nil, nil))

	return sim
}

// TestMaelstromNoLoss: без потерь repair-символы есть, восстановлений нет.
func TestMaelstromNoLoss(t *testing.T) {
	sim := newMaelstromSim(8, []uint64{1, 4, 8}, drop.None{}, false)
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}

	if lost := sim.Sink().Lost(100); len(lost) != 0 {
		t.Errorf("lost = %v, want none", lost)
	}
	if recovered := sim.Sink().Recovered(); len(recovered) != 0 {
		t.Errorf("recovered = %v, want none", recovered)
	}
	if sim.Encoder().NbRS() == 0 {
		t.Error("no repair symbols generated")
	}
}

// TestMaelstromConstantLoss: теряется каждый двадцатый пакет; все
// потерянные source-символы восстанавливаются интерливированными слоями.
func TestMaelstromConstantLoss(t *testing.T) {
	sim := newMaelstromSim(8, []uint64{1, 4, 8}, drop.NewConstant(20), false)
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}

	recovered := sim.Sink().Recovered()
	if uint64(len(recovered)) != sim.Dropper().NbSSDropped() {
		t.Errorf("recovered %d packets, dropped %d source symbols",
			len(recovered), sim.Dropper().NbSSDropped())
	}
	if len(recovered) == 0 {
		t.Error("no packet recovered")
	}
}

// TestMaelstromBurstTwo: потеря индексов {3,4,5,6} при W=5, L=[1,2] —
// между потерянными source-символами уходит repair, восстановимы {3,4,5}.
func TestMaelstromBurstTwo(t *testing.T) {
	oracle := drop.NewSpecific(100)
	oracle.AddToDrop([]uint64{3, 4, 5, 6})
	sim := newMaelstromSim(5, []uint64{1, 2}, oracle, true)
	if err := sim.Run(10); err != nil {
		t.Fatal(err)
	}

	recovered := sim.Sink().Recovered()
	if uint64(len(recovered)) != sim.Dropper().NbSSDropped() {
		t.Errorf("recovered %d, dropped %d source symbols",
			len(recovered), sim.Dropper().NbSSDropped())
	}
	sort.Slice(recovered, func(i, j int) bool { return recovered[i] < recovered[j] })
	want := []uint64{3, 4, 5}
	if len(recovered) != len(want) {
		t.Fatalf("recovered = %v, want %v", recovered, want)
	}
	for i := range want {
		if recovered[i] != want[i] {
			t.Fatalf("recovered = %v, want %v", recovered, want)
		}
	}
}

// TestMaelstromBurstThree: пачка {3,4,5} при W=10, L=[1,3].
func TestMaelstromBurstThree(t *testing.T) {
	oracle := drop.NewSpecific(30)
	oracle.AddToDrop([]uint64{3, 4, 5})
	sim := newMaelstromSim(10, []uint64{1, 3}, oracle, true)
	if err := sim.Run(29); err != nil {
		t.Fatal(err)
	}

	recovered := sim.Sink().Recovered()
	if uint64(len(recovered)) != sim.Dropper().NbSSDropped() {
		t.Errorf("recovered %d, dropped %d source symbols",
			len(recovered), sim.Dropper().NbSSDropped())
	}
	if len(recovered) == 0 {
		t.Error("no packet recovered")
	}
}

// TestMaelstromBurstTen: одиннадцать подряд потерянных индексов полностью
// рассеиваются десятью корзинами второго слоя.
func TestMaelstromBurstTen(t *testing.T) {
	oracle := drop.NewSpecific(100000)
	drops := make([]uint64, 0, 11)
	for i := uint64(0); i < 11; i++ {
		drops = append(drops, i+4)
	}
	oracle.AddToDrop(drops)
	sim := newMaelstromSim(10, []uint64{1, 10}, oracle, true)
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}

	recovered := sim.Sink().Recovered()
	if uint64(len(recovered)) != sim.Dropper().NbSSDropped() {
		t.Errorf("recovered %d, dropped %d source symbols",
			len(recovered), sim.Dropper().NbSSDropped())
	}
	if len(recovered) == 0 {
		t.Error("no packet recovered")
	}
}

// TestMaelstromBurstGilbertElliott: пачечные потери; каждый потерянный
// source-символ либо восстановлен, либо числится потерянным — третьего не
// дано.
func TestMaelstromBurstGilbertElliott(t *testing.T) {
	oracle := drop.NewGilbertElliott(0.01, 0.2, 1)
	sim := newMaelstromSim(10, []uint64{1, 10}, oracle, true)
	if err := sim.Run(1000); err != nil {
		t.Fatal(err)
	}

	recovered := uint64(len(sim.Sink().Recovered()))
	lost := uint64(len(sim.Sink().Lost(1000)))
	dropped := sim.Dropper().NbSSDropped()

	if recovered+lost != dropped {
		t.Errorf("recovered %d + lost %d != dropped source %d", recovered, lost, dropped)
	}
	if dropped == 0 {
		t.Error("oracle produced no loss")
	}
	if recovered == 0 {
		t.Error("no packet recovered")
	}
}

func newTartSim(scheduler fec.RepairScheduler, maxWnd, feedbackFreq uint64, oracle drop.Oracle) *Simulator {
	sim := NewSimulator()

	enc := fec.NewTartEncoder(scheduler, maxWnd)
	sim.SetEncoder(node.NewEncoder(fec.NewTartFecEncoder(enc)))

	sim.SetDropper(node.NewDropper(oracle))

	dec := fec.NewTartDecoder(maxWnd)
	sim.SetDecoder(node.NewDecoder(fec.NewTartFecDecoder(dec), node.NewFeedback(feedbackFreq), nil))

	return sim
}

// TestTartWindowStepDeterministic: три одиночные потери с WindowStep-
// планировщиком; все счетчики предсказуемы точно.
func TestTartWindowStepDeterministic(t *testing.T) {
	oracle := drop.NewSpecific(100000)
	// Индексы 3, 27 и 51 потока через дроппер — source-символы 3, 23 и 43.
	oracle.AddToDrop([]uint64{3, 27, 51})

	scheduler := fec.NewWindowStepScheduler(100, 5)
	sim := newTartSim(scheduler, 100, 500, oracle)
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}

	if got := sim.Encoder().NbSS(); got != 100 {
		t.Errorf("NbSS = %d, want 100", got)
	}
	if got := sim.Encoder().NbRS(); got != 20 {
		t.Errorf("NbRS = %d, want 20", got)
	}
	if got := sim.Dropper().NbDropped(); got != 3 {
		t.Errorf("NbDropped = %d, want 3", got)
	}
	if got := sim.Decoder().NbRecovered(); got != 3 {
		t.Errorf("NbRecovered = %d, want 3", got)
	}
	if lost := sim.Sink().Lost(100); len(lost) != 0 {
		t.Errorf("lost = %v, want none", lost)
	}
	if dups := sim.Sink().Duplicates(); len(dups) != 0 {
		t.Errorf("duplicates = %v, want none", dups)
	}

	recovered := sim.Sink().Recovered()
	sort.Slice(recovered, func(i, j int) bool { return recovered[i] < recovered[j] })
	want := []uint64{3, 23, 43}
	for i := range want {
		if recovered[i] != want[i] {
			t.Fatalf("recovered = %v, want %v", recovered, want)
		}
	}
}

// TestTartWindowStepUniform: открытый цикл при равномерных потерях;
// кадность repair-символов не зависит от потерь, баланс
// восстановленное+потерянное сходится с потерянными source-символами.
func TestTartWindowStepUniform(t *testing.T) {
	scheduler := fec.NewWindowStepScheduler(100, 5)
	sim := newTartSim(scheduler, 100, 500, drop.NewUniform(0.1, 1))
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}

	if got := sim.Encoder().NbSS(); got != 100 {
		t.Errorf("NbSS = %d, want 100", got)
	}
	if got := sim.Encoder().NbRS(); got != 20 {
		t.Errorf("NbRS = %d, want 20", got)
	}
	if sim.Dropper().NbDropped() == 0 {
		t.Error("oracle produced no loss")
	}

	recovered := sim.Decoder().NbRecovered()
	lost := uint64(len(sim.Sink().Lost(100)))
	if recovered+lost != sim.Dropper().NbSSDropped() {
		t.Errorf("recovered %d + lost %d != dropped source %d",
			recovered, lost, sim.Dropper().NbSSDropped())
	}
	if dups := sim.Sink().Duplicates(); len(dups) != 0 {
		t.Errorf("duplicates = %v, want none", dups)
	}
}

// TestTartAdaptiveDeterministic: адаптивный планировщик с начальной
// оценкой 0.2 выдает repair каждые пять символов — как WindowStep с шагом 5.
func TestTartAdaptiveDeterministic(t *testing.T) {
	oracle := drop.NewSpecific(100000)
	oracle.AddToDrop([]uint64{3, 27, 51})

	scheduler := fec.NewAdaptiveScheduler(0.5, 100, nil)
	scheduler.SetInitialLossEstimation(0.2)
	sim := newTartSim(scheduler, 100, 500, oracle)
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}

	if got := sim.Encoder().NbSS(); got != 100 {
		t.Errorf("NbSS = %d, want 100", got)
	}
	if got := sim.Encoder().NbRS(); got != 20 {
		t.Errorf("NbRS = %d, want 20", got)
	}
	if got := sim.Decoder().NbRecovered(); got != 3 {
		t.Errorf("NbRecovered = %d, want 3", got)
	}
	if lost := sim.Sink().Lost(100); len(lost) != 0 {
		t.Errorf("lost = %v, want none", lost)
	}
}

// TestTartAdaptiveUniform: адаптивный планировщик при равномерных потерях.
// Обратная связь (частота 500) в прогоне из 100 пакетов не срабатывает,
// так что кадность определяется начальной оценкой.
func TestTartAdaptiveUniform(t *testing.T) {
	scheduler := fec.NewAdaptiveScheduler(0.5, 100, nil)
	scheduler.SetInitialLossEstimation(0.2)
	sim := newTartSim(scheduler, 100, 500, drop.NewUniform(0.1, 1))
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}

	if got := sim.Encoder().NbSS(); got != 100 {
		t.Errorf("NbSS = %d, want 100", got)
	}
	if got := sim.Encoder().NbRS(); got != 20 {
		t.Errorf("NbRS = %d, want 20", got)
	}

	recovered := sim.Decoder().NbRecovered()
	lost := uint64(len(sim.Sink().Lost(100)))
	if recovered+lost != sim.Dropper().NbSSDropped() {
		t.Errorf("recovered %d + lost %d != dropped source %d",
			recovered, lost, sim.Dropper().NbSSDropped())
	}
}

// TestTartAdaptiveFeedbackLoop: частая обратная связь без потерь понижает
// оценку и разрежает repair-символы относительно открытого цикла.
func TestTartAdaptiveFeedbackLoop(t *testing.T) {
	scheduler := fec.NewAdaptiveScheduler(0.5, 100, nil)
	scheduler.SetInitialLossEstimation(0.2)
	sim := newTartSim(scheduler, 100, 10, drop.None{})
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}

	nbRS := sim.Encoder().NbRS()
	if nbRS == 0 {
		t.Fatal("no repair symbols at all")
	}
	// Без обратной связи было бы 20 (каждые 5 символов).
	if nbRS >= 20 {
		t.Errorf("NbRS = %d, feedback did not slow the cadence", nbRS)
	}
	if lost := sim.Sink().Lost(100); len(lost) != 0 {
		t.Errorf("lost = %v, want none", lost)
	}
}

// TestBuildSimulatorRejectsUnknownConfig.
func TestBuildSimulatorRejectsUnknownConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fec = "raptor"
	if _, err := BuildSimulator(cfg, nil); err == nil {
		t.Error("expected error for unknown fec scheme")
	}

	cfg = DefaultConfig()
	cfg.DropScheduler = "lunar"
	if _, err := BuildSimulator(cfg, nil); err == nil {
		t.Error("expected error for unknown drop scheduler")
	}
}

// TestBuildSimulatorRuns: собранный по конфигурации симулятор проходит
// прогон без ошибок.
func TestBuildSimulatorRuns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NbPackets = 50
	cfg.Fec = "maelstrom"
	cfg.FecWindow = 8
	cfg.Layering = []uint64{1, 4}
	cfg.DropScheduler = "constant"
	cfg.ConstantDropStep = 10
	cfg.DropTrace = true

	sim, err := BuildSimulator(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.Run(cfg.NbPackets); err != nil {
		t.Fatal(err)
	}

	stats := CollectStats(sim, cfg)
	if stats.NbSS != 50 {
		t.Errorf("NbSS = %d, want 50", stats.NbSS)
	}
	if stats.NbDropped == 0 {
		t.Error("constant oracle produced no loss")
	}
	if len(stats.DropTrace) == 0 {
		t.Error("drop trace not recorded")
	}
}
