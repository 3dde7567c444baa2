package internal

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"fec-sim/internal/drop"
	"fec-sim/internal/fec"
	"fec-sim/internal/node"
	"fec-sim/internal/packet"
)

// Simulator держит все узлы конвейера и прогоняет пакеты по тактам.
// Один такт строго последователен: источник -> кодер -> дроппер ->
// декодер -> приемник, обратная связь доставляется кодеру в конце такта.
type Simulator struct {
	source  *node.Source
	encoder *node.Encoder
	dropper *node.Dropper
	decoder *node.Decoder
	sink    *node.Sink
}

// NewSimulator создает симулятор с узлами-пустышками: без FEC и без потерь.
func NewSimulator() *Simulator {
	return &Simulator{
		source:  node.NewSource(),
		encoder: node.NewSimpleEncoder(),
		dropper: node.NewSimpleDropper(),
		decoder: node.NewSimpleDecoder(),
		sink:    node.NewSink(),
	}
}

// Run прогоняет nbPackets тактов.
func (s *Simulator) Run(nbPackets uint64) error {
	for iter := uint64(0); iter < nbPackets; iter++ {
		pkts := []*packet.Packet{s.source.Gen()}

		if err := s.encoder.Recv(pkts); err != nil {
			return err
		}
		pkts, err := s.encoder.Forward()
		if err != nil {
			return err
		}

		if err := s.dropper.Recv(pkts); err != nil {
			return err
		}
		pkts, err = s.dropper.Forward()
		if err != nil {
			return err
		}

		if err := s.decoder.Recv(pkts); err != nil {
			return err
		}
		pkts, feedback, err := s.decoder.Forward()
		if err != nil {
			return err
		}

		if len(feedback) > 0 {
			s.encoder.RecvFeedback(feedback)
		}

		s.sink.RecvMultiple(pkts)
	}
	return nil
}

// SetEncoder заменяет узел кодера.
func (s *Simulator) SetEncoder(encoder *node.Encoder) {
	s.encoder = encoder
}

// SetDropper заменяет узел потерь.
func (s *Simulator) SetDropper(dropper *node.Dropper) {
	s.dropper = dropper
}

// SetDecoder заменяет узел декодера.
func (s *Simulator) SetDecoder(decoder *node.Decoder) {
	s.decoder = decoder
}

// Encoder возвращает узел кодера.
func (s *Simulator) Encoder() *node.Encoder {
	return s.encoder
}

// Dropper возвращает узел потерь.
func (s *Simulator) Dropper() *node.Dropper {
	return s.dropper
}

// Decoder возвращает узел декодера.
func (s *Simulator) Decoder() *node.Decoder {
	return s.decoder
}

// Sink возвращает приемник.
func (s *Simulator) Sink() *node.Sink {
	return s.sink
}

// BuildSimulator собирает симулятор по конфигурации.
func BuildSimulator(cfg SimConfig, logger *zap.Logger) (*Simulator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sim := NewSimulator()

	oracle, err := buildOracle(cfg)
	if err != nil {
		return nil, err
	}
	dropper := node.NewDropper(oracle)
	if cfg.DropTrace {
		dropper.ActivateTrace()
	}
	sim.SetDropper(dropper)

	encoder, decoder, err := buildFec(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.RecTrace {
		decoder.ActivateTrace()
	}
	sim.SetEncoder(encoder)
	sim.SetDecoder(decoder)

	logger.Info("simulator built",
		zap.String("fec", encoder.Fec().Name()),
		zap.String("drop", cfg.DropScheduler),
		zap.Uint64("packets", cfg.NbPackets))
	return sim, nil
}

func buildOracle(cfg SimConfig) (drop.Oracle, error) {
	switch cfg.DropScheduler {
	case "", "none":
		return drop.None{}, nil
	case "constant":
		return drop.NewConstant(cfg.ConstantDropStep), nil
	case "uniform":
		return drop.NewUniform(cfg.ULossRatio, cfg.DropSeed), nil
	case "ge":
		return drop.NewGilbertElliott(cfg.ULossRatio, cfg.RGe, cfg.DropSeed), nil
	case "specific":
		oracle := drop.NewSpecific(cfg.SpecificCycle)
		oracle.AddToDrop(cfg.SpecificDrops)
		return oracle, nil
	default:
		return nil, fmt.Errorf("%w: unknown drop scheduler %q", packet.ErrForward, cfg.DropScheduler)
	}
}

func buildFec(cfg SimConfig, logger *zap.Logger) (*node.Encoder, *node.Decoder, error) {
	switch cfg.Fec {
	case "", "none":
		return node.NewSimpleEncoder(), node.NewSimpleDecoder(), nil

	case "maelstrom":
		enc := fec.NewMaelstromEncoder(int(cfg.FecWindow), cfg.Layering)
		dec := fec.NewMaelstromDecoder(int(cfg.FecWindow) * capacityFactor)
		encoder := node.NewEncoder(fec.NewMaelstromFecEncoder(enc))
		decoder := node.NewDecoder(fec.NewMaelstromFecDecoder(dec), nil, logger)
		return encoder, decoder, nil

	case "tart":
		var scheduler fec.RepairScheduler
		if cfg.TartWindowStep {
			scheduler = fec.NewWindowStepScheduler(cfg.FecWindow, cfg.TartStep)
		} else {
			adaptive := fec.NewAdaptiveScheduler(cfg.AlphaFec, cfg.FecWindow, logger)
			if cfg.SetInitialLoss {
				adaptive.SetInitialLossEstimation(math.Max(cfg.ULossRatio, 1.0/float64(cfg.FecWindow)))
			}
			adaptive.SetBeta(cfg.BetaFec)
			adaptive.SetAlpha(cfg.AlphaFec)
			scheduler = adaptive
		}
		enc := fec.NewTartEncoder(scheduler, cfg.FecWindow)
		dec := fec.NewTartDecoder(cfg.FecWindow)
		encoder := node.NewEncoder(fec.NewTartFecEncoder(enc))
		decoder := node.NewDecoder(fec.NewTartFecDecoder(dec), node.NewFeedback(cfg.FeedbackFreq), logger)
		return encoder, decoder, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown fec scheme %q", packet.ErrForward, cfg.Fec)
	}
}
