package packet

import "errors"

// Виды ошибок, наблюдаемые на границах компонентов.
//
// Жесткие ошибки (нарушение контракта) прерывают тик симуляции; мягкие
// (ожидаемые при некоторых паттернах потерь) логируются и отбрасываются.
var (
	// ErrForward — некорректное использование конвейера узлов.
	ErrForward = errors.New("forward")

	// ErrFecEncoder — ошибка FEC-кодера; детали добавляются оберткой.
	ErrFecEncoder = errors.New("fec encoder")

	// ErrFecDecoder — ошибка FEC-декодера; детали добавляются оберткой.
	ErrFecDecoder = errors.New("fec decoder")

	// ErrFecDoubleMetadata — повторное прикрепление FEC-метаданных.
	ErrFecDoubleMetadata = errors.New("fec metadata already attached")

	// ErrFecWrongMetadata — пакет с отсутствующим или чужим вариантом метаданных.
	ErrFecWrongMetadata = errors.New("wrong fec metadata")

	// ErrUnusedRepair — repair-символ не добавил новой информации (мягкая).
	ErrUnusedRepair = errors.New("unused repair symbol")

	// ErrTooOldEquation — repair пришел после выхода его символов из окна (мягкая).
	ErrTooOldEquation = errors.New("too old equation")

	// ErrFeedbackIDTooBig — разрыв между source-символами превысил емкость
	// битовой карты обратной связи.
	ErrFeedbackIDTooBig = errors.New("feedback id gap exceeds bitmap capacity")
)
