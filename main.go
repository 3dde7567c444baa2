package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"fec-sim/internal"
	"fec-sim/internal/metrics"
)

func main() {
	version := flag.Bool("version", false, "Показать версию программы")

	nbPackets := flag.Uint64("n", 100, "Число пакетов одного прогона симуляции")
	dropScheduler := flag.String("drop", "none", "Оракул потерь: none | uniform | constant | ge | specific")
	uLoss := flag.Float64("u-loss", 0.0, "Вероятность потери [0,1]; также 'p' модели Гилберта-Эллиотта")
	rGe := flag.Float64("r", 1.0, "'r' модели Гилберта-Эллиотта")
	constantStep := flag.Uint64("constant-drop-step", 100, "Период потерь константного оракула")
	specificDrops := flag.String("specific-drops", "20,21", "Индексы потерь специфичного оракула (через запятую)")
	specificCycle := flag.Uint64("specific-cycle", 100, "Период повторения набора индексов")
	dropSeed := flag.Int64("s", 1, "Зерно оракула потерь")

	fecScheme := flag.String("fec", "tart", "FEC-схема: none | tart | maelstrom")
	fecWindow := flag.Uint64("window", 100, "Окно FEC")
	tartWindowStep := flag.Bool("w", false, "Для TART: открытый WindowStep-планировщик вместо адаптивного")
	tartStep := flag.Uint64("step", 10, "Шаг WindowStep-планировщика")
	alphaFec := flag.Float64("alpha", 0.9, "Альфа адаптивного планировщика")
	betaFec := flag.Float64("beta", 1.0, "Бета адаптивного планировщика")
	setInitialLoss := flag.Bool("set-initial-loss", false, "Инициализировать оценку потерь долей потерь канала")
	feedbackFreq := flag.Uint64("feedback", 500, "Число source-символов между записями обратной связи")
	layering := flag.String("layering", "1,20,40", "Факторы интерливинга слоев Maelstrom (через запятую)")

	reportPath := flag.String("report", "", "Путь к файлу отчета (опционально)")
	reportFormat := flag.String("report-format", "csv", "Формат отчета: csv | md")
	prometheus := flag.Bool("prometheus", false, "Экспортировать метрики Prometheus на /metrics")
	promAddr := flag.String("prometheus-addr", ":2112", "Адрес экспортера Prometheus")
	dropTrace := flag.Bool("dtrace", false, "Включить трассу дроппера")
	recTrace := flag.Bool("rtrace", false, "Включить трассу восстановлений")
	verbose := flag.Bool("verbose", false, "Подробное логирование")

	flag.Parse()

	if *version {
		internal.PrintVersion()
		os.Exit(0)
	}

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	layers, err := parseUint64List(*layering)
	if err != nil {
		logger.Fatal("parsing -layering", zap.Error(err))
	}
	drops, err := parseUint64List(*specificDrops)
	if err != nil {
		logger.Fatal("parsing -specific-drops", zap.Error(err))
	}

	cfg := internal.SimConfig{
		NbPackets:        *nbPackets,
		DropScheduler:    *dropScheduler,
		ULossRatio:       *uLoss,
		RGe:              *rGe,
		ConstantDropStep: *constantStep,
		SpecificDrops:    drops,
		SpecificCycle:    *specificCycle,
		DropSeed:         *dropSeed,
		Fec:              *fecScheme,
		FecWindow:        *fecWindow,
		TartWindowStep:   *tartWindowStep,
		TartStep:         *tartStep,
		AlphaFec:         *alphaFec,
		BetaFec:          *betaFec,
		SetInitialLoss:   *setInitialLoss,
		FeedbackFreq:     *feedbackFreq,
		Layering:         layers,
		ReportPath:       *reportPath,
		ReportFormat:     *reportFormat,
		Prometheus:       *prometheus,
		PromAddr:         *promAddr,
		DropTrace:        *dropTrace,
		RecTrace:         *recTrace,
		Verbose:          *verbose,
	}

	sim, err := internal.BuildSimulator(cfg, logger)
	if err != nil {
		logger.Fatal("building simulator", zap.Error(err))
	}

	if err := sim.Run(cfg.NbPackets); err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}

	stats := internal.CollectStats(sim, cfg)
	internal.PrintReport(stats)

	if cfg.ReportPath != "" || cfg.ReportFormat != "" {
		if err := internal.SaveReport(cfg, stats); err != nil {
			logger.Error("saving report", zap.Error(err))
		}
	}

	if cfg.Prometheus {
		simMetrics := metrics.NewSimMetrics()
		simMetrics.Observe(stats.NbSS, stats.NbRS, stats.NbDropped, stats.NbSSDropped,
			stats.NbRecovered, uint64(len(stats.Lost)), stats.DropRatio)

		http.Handle("/metrics", simMetrics.Handler())
		go func() {
			logger.Info("prometheus exporter listening", zap.String("addr", cfg.PromAddr))
			if err := http.ListenAndServe(cfg.PromAddr, nil); err != nil {
				logger.Error("prometheus exporter", zap.Error(err))
			}
		}()

		// Держим экспортер живым до сигнала завершения.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		fmt.Println("shutting down")
	}
}

// parseUint64List разбирает список чисел через запятую.
func parseUint64List(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid list element %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}
