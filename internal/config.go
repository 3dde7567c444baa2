package internal

// SimConfig описывает параметры одного прогона симуляции.
type SimConfig struct {
	NbPackets uint64 // Число пакетов, выпускаемых источником

	// --- Модель потерь ---
	DropScheduler    string   // Оракул потерь: none | uniform | constant | ge | specific
	ULossRatio       float64  // Вероятность потери (uniform) и 'p' модели Гилберта-Эллиотта
	RGe              float64  // 'r' модели Гилберта-Эллиотта (возврат в хорошее состояние)
	ConstantDropStep uint64   // Период потерь константного оракула
	SpecificDrops    []uint64 // Индексы потерь специфичного оракула
	SpecificCycle    uint64   // Период повторения набора индексов
	DropSeed         int64    // Зерно RNG оракула

	// --- FEC ---
	Fec            string   // Схема: none | tart | maelstrom
	FecWindow      uint64   // Окно FEC (и емкость корзины Maelstrom)
	TartWindowStep bool     // Для TART: открытый WindowStep вместо адаптивного
	TartStep       uint64   // Шаг WindowStep-планировщика
	AlphaFec       float64  // Альфа адаптивного планировщика (сглаживание EWMA)
	BetaFec        float64  // Бета адаптивного планировщика (завышение избыточности)
	SetInitialLoss bool     // Инициализировать оценку потерь долей потерь канала
	FeedbackFreq   uint64   // Число source-символов между записями обратной связи
	Layering       []uint64 // Факторы интерливинга слоев Maelstrom

	// --- Вывод ---
	ReportPath   string // Путь к файлу отчета (пусто — имя строится из параметров прогона)
	ReportFormat string // Формат отчета: csv | md
	Prometheus   bool   // Экспортировать метрики Prometheus на /metrics
	PromAddr     string // Адрес экспортера Prometheus
	DropTrace    bool   // Включить трассу дроппера
	RecTrace     bool   // Включить трассу восстановлений декодера
	Verbose      bool   // Подробное логирование
}

// DefaultConfig возвращает конфигурацию по умолчанию: TART с адаптивным
// планировщиком, без потерь.
func DefaultConfig() SimConfig {
	return SimConfig{
		NbPackets:        100,
		DropScheduler:    "none",
		RGe:              1.0,
		ConstantDropStep: 100,
		SpecificDrops:    []uint64{20, 21},
		SpecificCycle:    100,
		DropSeed:         1,
		Fec:              "tart",
		FecWindow:        100,
		TartStep:         10,
		AlphaFec:         0.9,
		BetaFec:          1.0,
		FeedbackFreq:     500,
		Layering:         []uint64{1, 20, 40},
		ReportFormat:     "csv",
		PromAddr:         ":2112",
	}
}

// Емкость декодера Maelstrom относительно окна кодера: repair старше
// capacityFactor окон отбрасывается как безнадежный.
const capacityFactor = 20
