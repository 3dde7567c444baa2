// Package drop реализует модели потерь для узла-дроппера. Для конвейера
// модель — непрозрачный оракул: один вопрос на пакет, мутирующий
// собственное состояние (счетчики, RNG, переходы состояний).
package drop

// Oracle решает судьбу очередного пакета. Вызов на каждый пакет ровно
// один; реализациям разрешено менять внутреннее состояние.
type Oracle interface {
	ShouldDrop() bool
}

// None — оракул без потерь.
type None struct{}

// ShouldDrop всегда отвечает "не терять".
func (None) ShouldDrop() bool {
	return false
}
