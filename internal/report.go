package internal

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/fatih/color"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"

	"fec-sim/internal/node"
)

// RunStats — итоги одного прогона, собранные со всех узлов.
type RunStats struct {
	FecName     string
	NbSS        uint64
	NbRS        uint64
	NbDropped   uint64
	NbSSDropped uint64
	DropRatio   float64
	NbRecovered uint64
	Lost        []uint64
	Duplicates  []uint64
	Delays      []node.RecoveryDelay
	DropTrace   []node.TraceEntry
}

// CollectStats снимает итоговые счетчики с узлов симулятора.
func CollectStats(sim *Simulator, cfg SimConfig) RunStats {
	return RunStats{
		FecName:     sim.Encoder().Fec().Name(),
		NbSS:        sim.Encoder().NbSS(),
		NbRS:        sim.Encoder().NbRS(),
		NbDropped:   sim.Dropper().NbDropped(),
		NbSSDropped: sim.Dropper().NbSSDropped(),
		DropRatio:   sim.Dropper().DroppedRatio(),
		NbRecovered: sim.Decoder().NbRecovered(),
		Lost:        sim.Sink().Lost(cfg.NbPackets),
		Duplicates:  sim.Sink().Duplicates(),
		Delays:      sim.Sink().RecoveryDelays(),
		DropTrace:   sim.Dropper().Trace(),
	}
}

// PrintReport печатает сводку прогона: таблица счетчиков, перцентили
// дистанции восстановления и ASCII-график накопленных потерь.
func PrintReport(stats RunStats) {
	color.Cyan("=== FEC simulation: %s ===", stats.FecName)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("metric", "value")
	rows := [][]any{
		{"source symbols", fmt.Sprintf("%d", stats.NbSS)},
		{"repair symbols", fmt.Sprintf("%d", stats.NbRS)},
		{"dropped", fmt.Sprintf("%d", stats.NbDropped)},
		{"dropped source", fmt.Sprintf("%d", stats.NbSSDropped)},
		{"drop ratio (post)", fmt.Sprintf("%.4f", stats.DropRatio)},
		{"recovered", fmt.Sprintf("%d", stats.NbRecovered)},
		{"lost", fmt.Sprintf("%d", len(stats.Lost))},
		{"duplicates", fmt.Sprintf("%d", len(stats.Duplicates))},
	}
	for _, row := range rows {
		if err := table.Append(row...); err != nil {
			fmt.Printf("Warning: failed to append row: %v\n", err)
		}
	}
	if err := table.Render(); err != nil {
		fmt.Printf("Warning: failed to render table: %v\n", err)
	}

	if p50, p95, p99, maxDist, ok := recoveryPercentiles(stats.Delays); ok {
		fmt.Printf("recovery distance: p50=%d p95=%d p99=%d max=%d (in source symbols)\n",
			p50, p95, p99, maxDist)
	}

	if graph := cumulativeDropGraph(stats.DropTrace); graph != "" {
		fmt.Println("\ncumulative drops over the packet stream:")
		fmt.Println(graph)
	}

	if len(stats.Lost) == 0 {
		color.Green("✓ no packet lost")
	} else {
		color.Red("✗ lost ids: %v", stats.Lost)
	}
}

// recoveryPercentiles сводит дистанции восстановления в HDR-гистограмму.
func recoveryPercentiles(delays []node.RecoveryDelay) (p50, p95, p99, maxDist int64, ok bool) {
	if len(delays) == 0 {
		return 0, 0, 0, 0, false
	}
	// Дистанция ограничена окном декодера; 1..1e6 с запасом.
	hist := hdrhistogram.New(1, 1_000_000, 3)
	for _, d := range delays {
		// Нулевую дистанцию гистограмма с нижней границей 1 не принимает.
		v := int64(d.Distance)
		if v < 1 {
			v = 1
		}
		if err := hist.RecordValue(v); err != nil {
			continue
		}
	}
	return hist.ValueAtQuantile(50), hist.ValueAtQuantile(95), hist.ValueAtQuantile(99), hist.Max(), true
}

// cumulativeDropGraph строит ASCII-график накопленных потерь по трассе
// дроппера. Пустая строка, если трасса не велась.
func cumulativeDropGraph(trace []node.TraceEntry) string {
	if len(trace) < 2 {
		return ""
	}
	data := make([]float64, 0, len(trace))
	total := 0.0
	for _, entry := range trace {
		if entry.Dropped {
			total++
		}
		data = append(data, total)
	}
	// Прореживание до читаемой ширины.
	maxPoints := 80
	step := 1
	if len(data) > maxPoints {
		step = len(data) / maxPoints
	}
	sampled := make([]float64, 0, maxPoints)
	for i := 0; i < len(data); i += step {
		sampled = append(sampled, data[i])
	}
	return asciigraph.Plot(sampled,
		asciigraph.Height(10),
		asciigraph.Width(70),
		asciigraph.Caption("dropped packets (cumulative)"),
	)
}

// SaveReport сохраняет отчет в файл в выбранном формате.
func SaveReport(cfg SimConfig, stats RunStats) error {
	format := strings.ToLower(cfg.ReportFormat)
	if format == "" {
		format = "csv"
	}
	filename := cfg.ReportPath
	if filename == "" {
		filename = fmt.Sprintf("%s-%s-%v-%d-%d.%s",
			stats.FecName, cfg.DropScheduler, cfg.ULossRatio, cfg.NbPackets, cfg.DropSeed, format)
	}

	var err error
	switch format {
	case "csv":
		err = saveCSV(filename, makeReportCSV(stats))
	case "md":
		err = os.WriteFile(filename, []byte(makeReportMarkdown(cfg, stats)), 0600)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}

	color.Green("✓ report saved: %s", filename)
	return nil
}

func makeReportCSV(stats RunStats) [][]string {
	// Восстановленные дубликаты (source-копия дошла вместе с
	// восстановленной) в итог не идут.
	recovered := stats.NbRecovered - min(stats.NbRecovered, uint64(len(stats.Duplicates)))
	return [][]string{
		{"n-repair", "n-lost", "n-recovered", "n-ss-drop", "n-drop", "ratio-post"},
		{
			fmt.Sprintf("%d", stats.NbRS),
			fmt.Sprintf("%d", len(stats.Lost)),
			fmt.Sprintf("%d", recovered),
			fmt.Sprintf("%d", stats.NbSSDropped),
			fmt.Sprintf("%d", stats.NbDropped),
			fmt.Sprintf("%f", stats.DropRatio),
		},
	}
}

func saveCSV(filename string, rows [][]string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, err)
		}
	}()

	w := csv.NewWriter(f)
	defer w.Flush()
	return w.WriteAll(rows)
}

func makeReportMarkdown(cfg SimConfig, stats RunStats) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("# FEC simulation report: %s\n\n", stats.FecName))
	buf.WriteString(fmt.Sprintf("**Параметры:** %+v\n\n", cfg))
	buf.WriteString("| metric | value |\n|---|---|\n")
	buf.WriteString(fmt.Sprintf("| source symbols | %d |\n", stats.NbSS))
	buf.WriteString(fmt.Sprintf("| repair symbols | %d |\n", stats.NbRS))
	buf.WriteString(fmt.Sprintf("| dropped | %d |\n", stats.NbDropped))
	buf.WriteString(fmt.Sprintf("| dropped source | %d |\n", stats.NbSSDropped))
	buf.WriteString(fmt.Sprintf("| drop ratio (post) | %.4f |\n", stats.DropRatio))
	buf.WriteString(fmt.Sprintf("| recovered | %d |\n", stats.NbRecovered))
	buf.WriteString(fmt.Sprintf("| lost | %d |\n", len(stats.Lost)))
	buf.WriteString(fmt.Sprintf("| duplicates | %d |\n", len(stats.Duplicates)))

	if p50, p95, p99, maxDist, ok := recoveryPercentiles(stats.Delays); ok {
		buf.WriteString("\n## Recovery distance\n\n")
		buf.WriteString(fmt.Sprintf("- p50: %d\n- p95: %d\n- p99: %d\n- max: %d\n",
			p50, p95, p99, maxDist))
	}

	if graph := cumulativeDropGraph(stats.DropTrace); graph != "" {
		buf.WriteString("\n## Drops\n\n```\n" + graph + "\n```\n")
	}
	return buf.String()
}
