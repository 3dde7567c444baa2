package packet

// Role различает source- и repair-символы.
type Role uint8

const (
	RoleSource Role = iota
	RoleRepair
)

// Scheme идентифицирует FEC-схему, которой принадлежат метаданные.
type Scheme uint8

const (
	SchemeMaelstrom Scheme = iota
	SchemeTart
)

// Metadata — двухуровневые FEC-метаданные: роль символа плюс
// схемо-зависимая нагрузка. Ровно одно из полей нагрузки значимо,
// в зависимости от (Role, Scheme).
type Metadata struct {
	Role   Role
	Scheme Scheme

	// Maelstrom source: глобальный ID source-символа, выданный кодером.
	MaelstromSSID uint64

	// Maelstrom repair: список ssid, просуммированных XOR в этот символ.
	MaelstromSSIDs []uint64

	// Tart source: непрозрачные 8-байтовые метаданные ядра.
	TartSource [8]byte

	// Tart repair: сериализованный repair-символ ядра. Байты не
	// интерпретируются — возвращаются ядру как есть.
	TartRepair []byte
}

// MaelstromSource создает метаданные source-символа Maelstrom.
func MaelstromSource(ssid uint64) Metadata {
	return Metadata{Role: RoleSource, Scheme: SchemeMaelstrom, MaelstromSSID: ssid}
}

// MaelstromRepair создает метаданные repair-символа Maelstrom.
func MaelstromRepair(ssids []uint64) Metadata {
	return Metadata{Role: RoleRepair, Scheme: SchemeMaelstrom, MaelstromSSIDs: ssids}
}

// TartSourceMeta создает метаданные source-символа Tart.
func TartSourceMeta(md [8]byte) Metadata {
	return Metadata{Role: RoleSource, Scheme: SchemeTart, TartSource: md}
}

// TartRepairMeta создает метаданные repair-символа Tart.
func TartRepairMeta(repair []byte) Metadata {
	return Metadata{Role: RoleRepair, Scheme: SchemeTart, TartRepair: repair}
}

// IsSource сообщает, являются ли метаданные source-вариантом.
func (m *Metadata) IsSource() bool {
	return m.Role == RoleSource
}

// IsRepair сообщает, являются ли метаданные repair-вариантом.
func (m *Metadata) IsRepair() bool {
	return m.Role == RoleRepair
}

func (m Metadata) clone() Metadata {
	cp := m
	cp.MaelstromSSIDs = append([]uint64(nil), m.MaelstromSSIDs...)
	cp.TartRepair = append([]byte(nil), m.TartRepair...)
	return cp
}
