package worker

import (
	"sync/atomic"

	"github.com/attestate/extraction-worker/internal/telemetry"
)

// Tally — счётчики исходов обработки одного воркера.
//
// Отклонённые схемой сообщения считаются отдельно и не попадают
// ни в succeeded, ни в failed.
type Tally struct {
	succeeded atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64

	metrics *telemetry.Metrics
}

// TallySnapshot — значения счётчиков в момент чтения.
type TallySnapshot struct {
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
}

// Total возвращает число обработанных сообщений.
func (s TallySnapshot) Total() uint64 {
	return s.Succeeded + s.Failed + s.Rejected
}

// NewTally создаёт счётчики. metrics может быть nil.
func NewTally(metrics *telemetry.Metrics) *Tally {
	return &Tally{metrics: metrics}
}

// Succeed учитывает успешный task.
func (t *Tally) Succeed() {
	t.succeeded.Add(1)
	t.metrics.ObserveOutcome(telemetry.OutcomeSucceeded)
}

// Fail учитывает task, завершённый ошибкой.
func (t *Tally) Fail() {
	t.failed.Add(1)
	t.metrics.ObserveOutcome(telemetry.OutcomeFailed)
}

// Reject учитывает сообщение, отклонённое до постановки в очередь.
func (t *Tally) Reject() {
	t.rejected.Add(1)
	t.metrics.ObserveOutcome(telemetry.OutcomeRejected)
}

// Snapshot возвращает текущие значения.
func (t *Tally) Snapshot() TallySnapshot {
	return TallySnapshot{
		Succeeded: t.succeeded.Load(),
		Failed:    t.failed.Load(),
		Rejected:  t.rejected.Load(),
	}
}
