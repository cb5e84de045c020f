package valueobject

import "fmt"

// RunState представляет состояние запуска сборщика (Value Object)
type RunState string

const (
	StateInit          RunState = "init"
	StateAuthenticated RunState = "authenticated"
	StateHealthChecked RunState = "health_checked"
	StateCollecting    RunState = "collecting"
	StateExporting     RunState = "exporting"
	StateReleased      RunState = "released"
	StateDone          RunState = "done"
)

// RunStatus представляет итог запуска
type RunStatus string

const (
	StatusPending RunStatus = "PENDING"
	StatusSuccess RunStatus = "SUCCESS"
	StatusFailure RunStatus = "FAILURE"
)

// Переходы вперед по конвейеру; Done достижим из любого состояния
var runTransitions = map[RunState][]RunState{
	StateInit:          {StateAuthenticated},
	StateAuthenticated: {StateHealthChecked, StateReleased},
	StateHealthChecked: {StateCollecting, StateReleased},
	StateCollecting:    {StateExporting, StateReleased},
	StateExporting:     {StateReleased},
	StateReleased:      {},
	StateDone:          {},
}

// CanTransition проверяет допустимость перехода
func (s RunState) CanTransition(to RunState) bool {
	if to == StateDone {
		return s != StateDone
	}
	for _, allowed := range runTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Validate проверяет, что состояние известно
func (s RunState) Validate() error {
	if _, ok := runTransitions[s]; !ok {
		return fmt.Errorf("invalid run state: %s", string(s))
	}
	return nil
}

// String возвращает строковое представление
func (s RunState) String() string {
	return string(s)
}

// String возвращает строковое представление
func (s RunStatus) String() string {
	return string(s)
}
