package fec

import (
	"fmt"
	"sort"
	"strings"

	"fec-sim/internal/packet"
)

// Maelstrom — интерливированный XOR-код: несколько параллельных слоев, в
// каждом ssid раскладываются по корзинам остатком от деления на фактор
// интерливинга слоя. Полная корзина сворачивается XOR в repair-символ.
// Слой с фактором L рассеивает пачку потерь длиной до L по разным
// корзинам, оставляя каждую корзину решаемой одним XOR.

// MaelstromEncoder раздает монотонные ssid и копит символы в корзинах слоев.
type MaelstromEncoder struct {
	// Следующий source symbol ID.
	ssid uint64

	// Слои корзин. Число корзин слоя равно его фактору интерливинга.
	layers [][]*bin

	// Защищенные пакеты, еще не вышедшие из окна. Ключ — ID пакета.
	live map[uint64]*packet.Packet

	// Размер окна: емкость корзины и граница отсечения live-набора.
	maxWnd int
}

// NewMaelstromEncoder создает кодер с окном window и факторами интерливинга
// interleaves (по одному слою на фактор, в заданном порядке).
func NewMaelstromEncoder(window int, interleaves []uint64) *MaelstromEncoder {
	layers := make([][]*bin, 0, len(interleaves))
	for _, interleave := range interleaves {
		layer := make([]*bin, interleave)
		for i := range layer {
			layer[i] = newBin(window)
		}
		layers = append(layers, layer)
	}
	return &MaelstromEncoder{
		layers: layers,
		live:   make(map[uint64]*packet.Packet),
		maxWnd: window,
	}
}

// ProtectSymbol назначает пакету ssid, кладет его в live-набор и в одну
// корзину каждого слоя.
func (e *MaelstromEncoder) ProtectSymbol(pkt *packet.Packet) error {
	if err := pkt.AddFECMetadata(packet.MaelstromSource(e.ssid)); err != nil {
		return err
	}

	// Отсечение старых пакетов по границе окна.
	idToRemove := e.ssid - min(e.ssid, uint64(e.maxWnd))
	for id := range e.live {
		if id <= idToRemove {
			delete(e.live, id)
		}
	}

	e.live[pkt.ID] = pkt.Clone()

	for _, layer := range e.layers {
		n := uint64(len(layer))
		layer[e.ssid%n].add(e.ssid)
	}

	e.ssid++
	return nil
}

// ShouldGenerateRepairs сообщает, дозрела ли хоть одна корзина.
func (e *MaelstromEncoder) ShouldGenerateRepairs() bool {
	for _, layer := range e.layers {
		for _, b := range layer {
			if b.full() {
				return true
			}
		}
	}
	return false
}

// GenerateRepairs обходит слои в заявленном порядке и корзины по индексу;
// каждая полная корзина дает один repair-символ и опустошается.
func (e *MaelstromEncoder) GenerateRepairs() ([]*packet.Packet, error) {
	var out []*packet.Packet
	for _, layer := range e.layers {
		for _, b := range layer {
			if rs := b.generate(e.live); rs != nil {
				out = append(out, rs)
			}
		}
	}
	return out, nil
}

// NbRepairs возвращает суммарное число сгенерированных repair-символов.
func (e *MaelstromEncoder) NbRepairs() uint64 {
	var total uint64
	for _, layer := range e.layers {
		for _, b := range layer {
			total += b.nbRepairs
		}
	}
	return total
}

// Name возвращает имя конфигурации вида maelstrom_1_4_8_8.
func (e *MaelstromEncoder) Name() string {
	parts := make([]string, 0, len(e.layers)+1)
	for _, layer := range e.layers {
		parts = append(parts, fmt.Sprintf("%d", len(layer)))
	}
	parts = append(parts, fmt.Sprintf("%d", e.maxWnd))
	return "maelstrom_" + strings.Join(parts, "_")
}

// bin — корзина слоя: накопленные ssid и счетчик выданных repair-символов.
type bin struct {
	symbols   map[uint64]struct{}
	nbRepairs uint64

	// Порог срабатывания: столько ssid корзина собирает перед выдачей.
	windowSize int
}

func newBin(windowSize int) *bin {
	return &bin{symbols: make(map[uint64]struct{}), windowSize: windowSize}
}

func (b *bin) add(ssid uint64) {
	b.symbols[ssid] = struct{}{}
}

func (b *bin) full() bool {
	return len(b.symbols) >= b.windowSize
}

// generate сворачивает корзину в repair-пакет. Payload — XOR полезных
// нагрузок тех участников корзины, что еще живы в окне кодера; список ssid
// repair-символа — вся корзина. ID repair-пакета — свертка XOR,
// переинтерпретированная как u64: непрозрачный артефакт, декодер по нему
// не соединяет.
func (b *bin) generate(live map[uint64]*packet.Packet) *packet.Packet {
	if !b.full() {
		return nil
	}

	ssids := make([]uint64, 0, len(b.symbols))
	for ssid := range b.symbols {
		ssids = append(ssids, ssid)
	}
	sort.Slice(ssids, func(i, j int) bool { return ssids[i] < ssids[j] })

	var fold uint64
	for _, ssid := range ssids {
		if pkt, ok := live[ssid]; ok {
			fold ^= pkt.PayloadID()
		}
	}

	rs := packet.New(fold)
	rs.FEC = &packet.Metadata{
		Role:           packet.RoleRepair,
		Scheme:         packet.SchemeMaelstrom,
		MaelstromSSIDs: ssids,
	}

	b.symbols = make(map[uint64]struct{})
	b.nbRepairs++
	return rs
}

// decoderAction классифицирует уравнение по числу недостающих символов.
type decoderAction uint8

const (
	// actionMissing — не хватает больше одного символа.
	actionMissing decoderAction = iota

	// actionRecover — не хватает ровно одного: можно восстановить.
	actionRecover

	// actionRedundant — все символы получены, уравнение можно удалить.
	actionRedundant
)

// equation — repair-символ плюс состояние его покрытия на стороне декодера.
type equation struct {
	// ssid, которые защищает уравнение.
	need map[uint64]struct{}

	// Подмножество need, уже полученное декодером.
	recv map[uint64]struct{}

	// Пакет-носитель XOR-свертки.
	repair *packet.Packet

	// Уникальный ID уравнения.
	id uint64
}

func newEquation(repair *packet.Packet, id uint64) (*equation, error) {
	if repair.FEC == nil || !repair.FEC.IsRepair() || repair.FEC.Scheme != packet.SchemeMaelstrom {
		return nil, packet.ErrFecWrongMetadata
	}
	need := make(map[uint64]struct{}, len(repair.FEC.MaelstromSSIDs))
	for _, ssid := range repair.FEC.MaelstromSSIDs {
		need[ssid] = struct{}{}
	}
	return &equation{
		need:   need,
		recv:   make(map[uint64]struct{}),
		repair: repair,
		id:     id,
	}, nil
}

func (eq *equation) action() decoderAction {
	switch len(eq.need) - len(eq.recv) {
	case 0:
		return actionRedundant
	case 1:
		return actionRecover
	default:
		return actionMissing
	}
}

// addSymbol отмечает полученный ssid. Возвращает новую классификацию.
func (eq *equation) addSymbol(ssid uint64) decoderAction {
	if _, ok := eq.need[ssid]; ok {
		eq.recv[ssid] = struct{}{}
	}
	return eq.action()
}

// populate отмечает все уже полученные декодером символы уравнения.
func (eq *equation) populate(pkts map[uint64]*packet.Packet) decoderAction {
	for id := range pkts {
		if _, ok := eq.need[id]; ok {
			eq.recv[id] = struct{}{}
		}
	}
	return eq.action()
}

// recover восстанавливает единственный недостающий символ: XOR свертки
// repair-символа с нагрузками полученных участников. Уравнение после этого
// становится избыточным.
func (eq *equation) recover(pkts map[uint64]*packet.Packet) *packet.Packet {
	if eq.action() != actionRecover {
		return nil
	}

	fold := eq.repair.PayloadID()
	for id := range eq.need {
		if pkt, ok := pkts[id]; ok {
			fold ^= pkt.PayloadID()
		}
	}

	var missing uint64
	for id := range eq.need {
		if _, ok := eq.recv[id]; !ok {
			missing = id
			break
		}
	}

	rec := packet.New(fold)
	rec.ID = missing
	md := packet.MaelstromSource(missing)
	rec.FEC = &md
	eq.recv[missing] = struct{}{}
	return rec
}

// minSSID возвращает минимальный ssid уравнения.
func (eq *equation) minSSID() (uint64, bool) {
	found := false
	var low uint64
	for id := range eq.need {
		if !found || id < low {
			low = id
			found = true
		}
	}
	return low, found
}

// MaelstromDecoder ведет систему уравнений с подстановкой: каждое
// поступление source- или repair-символа распространяется по живым
// уравнениям, пока восстановление не иссякнет.
type MaelstromDecoder struct {
	// Живые уравнения по их ID.
	equations map[uint64]*equation

	// Максимальный наблюдавшийся ssid; граница отбраковки старых repair.
	maxSSID uint64

	// ID следующего уравнения.
	eqID uint64

	// Полученные и восстановленные source-пакеты по ssid.
	pkts map[uint64]*packet.Packet

	// Емкость: repair старше maxSSID-capacity отвергается.
	capacity int
}

// NewMaelstromDecoder создает декодер с емкостью capacity source-символов.
func NewMaelstromDecoder(capacity int) *MaelstromDecoder {
	return &MaelstromDecoder{
		equations: make(map[uint64]*equation),
		pkts:      make(map[uint64]*packet.Packet),
		capacity:  capacity,
	}
}

// NbPendingEquations возвращает число живых уравнений.
func (d *MaelstromDecoder) NbPendingEquations() int {
	return len(d.equations)
}

// RecvSourceSymbol принимает source-символ и прогоняет цикл подстановки.
// Возвращает восстановленные пакеты.
//
// Отсечения старых уравнений и пакетов здесь нет: границу окна контролирует
// только проверка емкости на пути repair-символов.
func (d *MaelstromDecoder) RecvSourceSymbol(pkt *packet.Packet) ([]*packet.Packet, error) {
	if pkt.FEC == nil || !pkt.FEC.IsSource() || pkt.FEC.Scheme != packet.SchemeMaelstrom {
		return nil, packet.ErrFecWrongMetadata
	}

	d.pkts[pkt.ID] = pkt.Clone()
	d.maxSSID = max(d.maxSSID, pkt.FEC.MaelstromSSID)

	toRemove := make(map[uint64]struct{})
	var recovered []*packet.Packet

	// Цикл распространения: подставить символ во все уравнения, снять одно
	// решаемое, и начать заново — восстановленный символ играет роль только
	// что прибывшего.
	trigger := pkt.FEC.MaelstromSSID
	for {
		for _, id := range d.sortedEquationIDs() {
			if d.equations[id].addSymbol(trigger) == actionRedundant {
				toRemove[id] = struct{}{}
			}
		}

		atLeastOne := false
		for _, id := range d.sortedEquationIDs() {
			if _, marked := toRemove[id]; marked {
				continue
			}
			eq := d.equations[id]
			if eq.action() != actionRecover {
				continue
			}
			rec := eq.recover(d.pkts)
			if rec == nil {
				continue
			}
			rec.RecoveredFrom = distance(pkt.ID, rec.ID)
			trigger = rec.ID
			recovered = append(recovered, rec)
			d.pkts[rec.ID] = rec.Clone()
			atLeastOne = true
			break
		}

		if !atLeastOne {
			break
		}
	}

	for id := range toRemove {
		delete(d.equations, id)
	}
	return recovered, nil
}

// RecvRepairSymbol строит уравнение из repair-символа. Слишком старые
// уравнения отвергаются; сразу решаемые решаются и каскадируются через
// путь source-символа.
func (d *MaelstromDecoder) RecvRepairSymbol(pkt *packet.Packet) ([]*packet.Packet, error) {
	if pkt.FEC == nil || !pkt.FEC.IsRepair() || pkt.FEC.Scheme != packet.SchemeMaelstrom {
		return nil, packet.ErrFecWrongMetadata
	}

	eq, err := newEquation(pkt.Clone(), d.eqID)
	if err != nil {
		return nil, err
	}

	minSSID, ok := eq.minSSID()
	if !ok {
		return nil, packet.ErrFecWrongMetadata
	}
	if minSSID < d.maxSSID-min(d.maxSSID, uint64(d.capacity)) {
		// Часть символов уравнения уже покинула окно.
		return nil, packet.ErrTooOldEquation
	}

	d.eqID++

	var recovered []*packet.Packet
	switch eq.populate(d.pkts) {
	case actionRedundant:
		// Repair не несет новой информации.
	case actionMissing:
		d.equations[eq.id] = eq
	case actionRecover:
		// Решаем сразу, в систему не вставляем; восстановленный символ
		// каскадирует по остальным уравнениям как обычное поступление.
		rec := eq.recover(d.pkts)
		if rec != nil {
			rec.RecoveredFrom = distance(pkt.ID, rec.ID)
			more, err := d.RecvSourceSymbol(rec)
			if err != nil {
				return nil, err
			}
			recovered = append(recovered, rec)
			recovered = append(recovered, more...)
		}
	}
	return recovered, nil
}

func (d *MaelstromDecoder) sortedEquationIDs() []uint64 {
	ids := make([]uint64, 0, len(d.equations))
	for id := range d.equations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// distance вычисляет дистанцию восстановления trigger-rec с насыщением.
func distance(trigger, rec uint64) *uint64 {
	dist := trigger - min(trigger, rec)
	return &dist
}
