// Package workflow реализует клиентский сценарий оформления заказа на 3D-печать:
// расчёт стоимости, проверку баланса кошелька, пошаговый мастер и
// последовательность отправки заказа с оплатой.
package workflow

import (
	"errors"
	"math"

	"github.com/mbilous/printnet-system/internal/model"
)

// BaseFee — фиксированная базовая ставка заказа.
const BaseFee = 5.0

// defaultUnitCost применяется для неизвестного материала (самый дешёвый).
const defaultUnitCost = 0.05

// materialUnitCosts — стоимость единицы материала. Таблица фиксированная,
// пользователем не настраивается.
var materialUnitCosts = map[string]float64{
	"PLA":  0.05,
	"ABS":  0.06,
	"PETG": 0.07,
	"TPU":  0.08,
}

// ErrIncompleteSettings возвращается, когда параметров недостаточно для расчёта стоимости.
var ErrIncompleteSettings = errors.New("print settings are incomplete")

// ErrSettingsOutOfRange возвращается при выходе параметров печати за допустимые границы.
var ErrSettingsOutOfRange = errors.New("print settings are out of range")

// Estimate вычисляет предварительную стоимость заказа по параметрам печати.
//
// Формула: (BaseFee + unitCost × 100 × (infill/100) × (1/layerHeight)) × quantity,
// результат округляется до копеек. Функция чистая: одинаковые параметры дают
// одинаковый результат. При неполных или неположительных параметрах расчёт
// не выполняется и возвращается ErrIncompleteSettings.
func Estimate(s model.PrintSettings) (float64, error) {
	if s.Material == "" || s.Infill <= 0 || s.LayerHeight <= 0 || s.Quantity <= 0 {
		return 0, ErrIncompleteSettings
	}

	unitCost, ok := materialUnitCosts[s.Material]
	if !ok {
		unitCost = defaultUnitCost
	}

	estimated := (BaseFee + unitCost*100*(s.Infill/100)*(1/s.LayerHeight)) * float64(s.Quantity)

	return math.Round(estimated*100) / 100, nil
}

// ValidateSettings проверяет параметры печати перед переходом к подтверждению:
// заполнение 5–100%, высота слоя 0.1–0.5 мм, количество не меньше 1.
func ValidateSettings(s model.PrintSettings) error {
	if s.Material == "" {
		return ErrIncompleteSettings
	}
	if s.Infill < 5 || s.Infill > 100 {
		return ErrSettingsOutOfRange
	}
	if s.LayerHeight < 0.1 || s.LayerHeight > 0.5 {
		return ErrSettingsOutOfRange
	}
	if s.Quantity < 1 {
		return ErrSettingsOutOfRange
	}
	return nil
}

// RunningEstimate хранит последнюю успешно рассчитанную оценку стоимости.
// Некорректные параметры не затирают прежнее значение: пользователю никогда
// не показывается оценка, вычисленная из неполного ввода.
type RunningEstimate struct {
	value float64
	valid bool
}

// Update пересчитывает оценку по новым параметрам. При неполных параметрах
// прежняя оценка (или её отсутствие) остаётся без изменений.
func (e *RunningEstimate) Update(s model.PrintSettings) {
	v, err := Estimate(s)
	if err != nil {
		return
	}
	e.value = v
	e.valid = true
}

// Value возвращает текущую оценку и признак её наличия.
func (e *RunningEstimate) Value() (float64, bool) {
	return e.value, e.valid
}
