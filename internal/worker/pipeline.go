package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/schema"
)

// Outcome — итог обработки одного сообщения.
//
// Ровно один из вариантов:
//   - Terminate — получен сигнал завершения, Message пуст
//   - Message с results — успех
//   - Message с error — ошибка (Err несёт исходную причину)
type Outcome struct {
	Message   *domain.Message
	Err       error
	Terminate bool
}

// Pipeline — цепочка validate → dispatch → tally → contain.
//
// Приём (Admit) и ожидание результата (Finish) разделены: приём идёт
// в порядке поступления, ожидание параллельно.
type Pipeline struct {
	dispatcher *Dispatcher
	validator  *schema.Validator
	tally      *Tally
	logger     *slog.Logger
}

// NewPipeline создаёт Pipeline. validator и tally могут быть nil.
func NewPipeline(d *Dispatcher, validator *schema.Validator, tally *Tally, logger *slog.Logger) *Pipeline {
	if validator == nil {
		validator = schema.Default()
	}
	if tally == nil {
		tally = NewTally(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		dispatcher: d,
		validator:  validator,
		tally:      tally,
		logger:     logger,
	}
}

// Admission — принятое сообщение: либо task в очереди Dispatcher'а,
// либо уже готовый Outcome (отказ схемы, сигнал exit, ошибка Push).
type Admission struct {
	msg     *domain.Message
	task    *Task
	outcome Outcome
}

// Terminate возвращает true, если принятое сообщение — сигнал exit.
func (a Admission) Terminate() bool {
	return a.task == nil && a.outcome.Terminate
}

// AdmitJSON разбирает сырое сообщение и принимает его.
// Данные, которые не являются JSON-объектом, отклоняются как невалидные.
func (p *Pipeline) AdmitJSON(ctx context.Context, data []byte) Admission {
	msg, err := domain.ParseMessage(data)
	if err != nil {
		p.tally.Reject()
		return Admission{outcome: Outcome{Message: p.contain(err, &domain.Message{}), Err: err}}
	}
	return p.Admit(ctx, msg)
}

// Admit проверяет сообщение схемой и ставит его в очередь.
//
// Admit не ждёт Router и возвращается сразу. Tasks стартуют
// в порядке вызовов Admit, поэтому вызывающая сторона вызывает его
// последовательно, в порядке поступления сообщений.
func (p *Pipeline) Admit(ctx context.Context, msg *domain.Message) Admission {
	if err := p.validator.ValidateMessage(msg); err != nil {
		p.tally.Reject()
		p.logTally()
		return Admission{outcome: Outcome{Message: p.contain(err, msg), Err: err}}
	}

	if msg.IsTermination() {
		p.logger.Info("received exit signal; shutting down")
		return Admission{outcome: Outcome{Terminate: true}}
	}

	return Admission{msg: msg, task: p.dispatcher.Push(ctx, msg)}
}

// Finish ждёт task и превращает его итог в Outcome.
// Ошибки не возвращаются наружу, а становятся полем error сообщения.
func (p *Pipeline) Finish(a Admission) Outcome {
	if a.task == nil {
		return a.outcome
	}

	result, err := a.task.Result()
	if err != nil {
		if !errors.Is(err, ErrDispatcherClosed) {
			p.tally.Fail()
			p.logTally()
		}
		return Outcome{Message: p.contain(err, a.msg), Err: err}
	}

	normalize(result)
	if result.Failed() {
		p.tally.Fail()
	} else {
		p.tally.Succeed()
	}
	p.logTally()

	return Outcome{Message: result}
}

// ProcessJSON — AdmitJSON и Finish подряд.
func (p *Pipeline) ProcessJSON(ctx context.Context, data []byte) Outcome {
	return p.Finish(p.AdmitJSON(ctx, data))
}

// Process — Admit и Finish подряд.
func (p *Pipeline) Process(ctx context.Context, msg *domain.Message) Outcome {
	return p.Finish(p.Admit(ctx, msg))
}

// Tally возвращает счётчики Pipeline.
func (p *Pipeline) Tally() *Tally {
	return p.tally
}

// contain логирует ошибку вместе с сообщением и вызывает Contain.
func (p *Pipeline) contain(err error, msg *domain.Message) *domain.Message {
	task, _ := json.Marshal(msg)
	p.logger.Error("panic in queue",
		"task", string(task),
		"error", err,
	)
	return Contain(err, msg)
}

func (p *Pipeline) logTally() {
	s := p.tally.Snapshot()
	p.logger.Info("tally",
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"rejected", s.Rejected,
	)
}

// normalize поддерживает инвариант: ровно одно из results / error.
func normalize(msg *domain.Message) {
	switch {
	case msg.Failed():
		msg.SetError(msg.Error)
	case !msg.HasResults():
		msg.SetResults(nil)
	}
}
