package workflow

import (
	"errors"
	"fmt"

	"github.com/mbilous/printnet-system/internal/model"
)

// Step описывает шаг мастера оформления заказа. Шаги мастера не связаны
// со статусами заказа на сервере.
type Step string

const (
	StepMachineSelect Step = "machine"
	StepFileSelect    Step = "file"
	StepSettings      Step = "settings"
	StepReview        Step = "review"
	StepSuccess       Step = "success"
)

// Event описывает событие перехода мастера.
type Event string

const (
	// EventNext — переход к следующему шагу.
	EventNext Event = "next"
	// EventBack — возврат на предыдущий шаг.
	EventBack Event = "back"
	// EventSubmitted — успешное завершение отправки заказа; единственный путь к StepSuccess.
	EventSubmitted Event = "submitted"
)

// ErrInvalidTransition возвращается при недопустимом переходе мастера.
var ErrInvalidTransition = errors.New("invalid wizard transition")

// порядок шагов строго линейный
var stepOrder = []Step{StepMachineSelect, StepFileSelect, StepSettings, StepReview, StepSuccess}

func stepIndex(s Step) int {
	for i, st := range stepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Transition — чистая функция переходов мастера: (шаг, событие) → шаг.
//
// Вперёд мастер движется строго линейно; переход review → success возможен
// только по событию EventSubmitted. Назад можно с любого шага, кроме success.
func Transition(s Step, e Event) (Step, error) {
	i := stepIndex(s)
	if i < 0 {
		return s, fmt.Errorf("%w: unknown step %q", ErrInvalidTransition, s)
	}

	switch e {
	case EventNext:
		if s == StepReview || s == StepSuccess {
			return s, fmt.Errorf("%w: %s does not advance on %s", ErrInvalidTransition, s, e)
		}
		return stepOrder[i+1], nil

	case EventBack:
		if s == StepMachineSelect || s == StepSuccess {
			return s, fmt.Errorf("%w: cannot go back from %s", ErrInvalidTransition, s)
		}
		return stepOrder[i-1], nil

	case EventSubmitted:
		if s != StepReview {
			return s, fmt.Errorf("%w: %s is only valid on %s", ErrInvalidTransition, e, StepReview)
		}
		return StepSuccess, nil
	}

	return s, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, e)
}

// AdvanceFromSettings выполняет переход settings → review: параметры печати
// сначала проходят проверку границ. Параметры вне допустимых границ оставляют
// мастер на шаге настроек, шаг подтверждения для них недостижим.
func AdvanceFromSettings(s model.PrintSettings) (Step, error) {
	if err := ValidateSettings(s); err != nil {
		return StepSettings, err
	}
	return Transition(StepSettings, EventNext)
}

// CanReturnTo сообщает, допустим ли возврат с шага current на более ранний
// шаг target. С шага success возврат запрещён.
func CanReturnTo(current, target Step) bool {
	ci, ti := stepIndex(current), stepIndex(target)
	if ci < 0 || ti < 0 || current == StepSuccess {
		return false
	}
	return ti < ci
}
