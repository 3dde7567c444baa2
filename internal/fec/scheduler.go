package fec

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// RepairScheduler решает, когда кодеру Tart выдавать repair-символы.
// Реализации хранят собственное состояние; current — ID следующего
// source-символа кодера.
type RepairScheduler interface {
	// ShouldGenerate сообщает, пора ли выдать repair-символ.
	ShouldGenerate(current uint64) bool

	// OnSent отмечает выдачу repair-символа.
	OnSent(current uint64)

	// RecvFeedback принимает запись обратной связи (nbLost, nbElems).
	RecvFeedback(nbLost, nbElems uint64)

	// Name возвращает имя конфигурации для отчетов.
	Name() string
}

// WindowStepScheduler — открытый цикл: repair каждые step source-символов.
// Детерминирован, обратную связь игнорирует.
type WindowStepScheduler struct {
	// Максимальное число символов в окне.
	maxWnd uint64

	// Шаг между repair-символами.
	step uint64

	// ID на момент последнего выданного repair-символа.
	lastSent uint64
}

// NewWindowStepScheduler создает планировщик с окном maxWnd и шагом step.
func NewWindowStepScheduler(maxWnd, step uint64) *WindowStepScheduler {
	return &WindowStepScheduler{maxWnd: maxWnd, step: step}
}

// ShouldGenerate срабатывает, когда с последней выдачи прошло >= step символов.
func (s *WindowStepScheduler) ShouldGenerate(current uint64) bool {
	return current-min(current, s.lastSent) >= s.step
}

// OnSent запоминает точку выдачи.
func (s *WindowStepScheduler) OnSent(current uint64) {
	s.lastSent = current
}

// RecvFeedback — открытый цикл, обратная связь не используется.
func (s *WindowStepScheduler) RecvFeedback(nbLost, nbElems uint64) {}

// Name возвращает имя конфигурации.
func (s *WindowStepScheduler) Name() string {
	return fmt.Sprintf("window_%d", s.step)
}

// AdaptiveScheduler — замкнутый цикл: EWMA-оценки среднего и среднего
// абсолютного отклонения наблюдаемой доли потерь задают плотность
// repair-символов. beta умышленно входит в формулу дважды — и в поправку
// оценки, и внешним множителем; подбор эмпирический.
type AdaptiveScheduler struct {
	// EWMA-оценка доли потерь по обратной связи.
	lossEstimation float64

	// EWMA-оценка разброса доли потерь.
	lossVarianceEstimation float64

	// Коэффициент сглаживания скользящего среднего.
	alpha float64

	// Коэффициент завышения избыточности.
	beta float64

	// ID на момент последнего выданного repair-символа.
	lastSentSSID uint64

	// Размер окна.
	wsize uint64

	logger *zap.Logger
}

// NewAdaptiveScheduler создает планировщик со сглаживанием alpha и окном
// wsize. Начальная оценка потерь нулевая, beta = 1.
func NewAdaptiveScheduler(alpha float64, wsize uint64, logger *zap.Logger) *AdaptiveScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdaptiveScheduler{
		alpha:  alpha,
		beta:   1.0,
		wsize:  wsize,
		logger: logger,
	}
}

// SetInitialLossEstimation задает стартовую оценку потерь (bootstrap,
// например от известной конфигурации канала).
func (s *AdaptiveScheduler) SetInitialLossEstimation(loss float64) {
	s.lossEstimation = loss
}

// SetBeta задает коэффициент завышения избыточности.
func (s *AdaptiveScheduler) SetBeta(beta float64) {
	s.beta = beta
}

// SetAlpha задает коэффициент сглаживания.
func (s *AdaptiveScheduler) SetAlpha(alpha float64) {
	s.alpha = alpha
}

// ShouldGenerate: при нулевой оценке потерь repair-символы не выдаются;
// иначе выдача, как только разрыв достигает wsize, поделенного на ожидаемое
// число потерь в окне.
func (s *AdaptiveScheduler) ShouldGenerate(current uint64) bool {
	if s.lossEstimation == 0.0 {
		return false
	}

	nbLostPerWindow := (s.lossEstimation + s.beta*s.lossVarianceEstimation) *
		float64(s.wsize) * s.beta
	nextRS := float64(s.wsize) / nbLostPerWindow

	return float64(current-min(current, s.lastSentSSID)) >= nextRS
}

// OnSent запоминает точку выдачи.
func (s *AdaptiveScheduler) OnSent(current uint64) {
	s.lastSentSSID = current
}

// RecvFeedback обновляет EWMA-оценки. Пустая обратная связь (nbElems = 0)
// оценки не трогает.
func (s *AdaptiveScheduler) RecvFeedback(nbLost, nbElems uint64) {
	if nbElems == 0 {
		return
	}
	localLoss := float64(nbLost) / float64(nbElems)
	localVariance := math.Abs(s.lossEstimation - localLoss)
	s.lossEstimation = s.lossEstimation*s.alpha + (1.0-s.alpha)*localLoss
	s.lossVarianceEstimation = s.lossVarianceEstimation*s.alpha + (1.0-s.alpha)*localVariance

	s.logger.Info("new loss estimation",
		zap.Float64("estimation", s.lossEstimation),
		zap.Float64("local", localLoss))
	s.logger.Info("new loss variance estimation",
		zap.Float64("estimation", s.lossVarianceEstimation),
		zap.Float64("local", localVariance))
}

// Name возвращает имя конфигурации.
func (s *AdaptiveScheduler) Name() string {
	return fmt.Sprintf("adaptive_%v_%v_%d", s.alpha, s.beta, s.wsize)
}
