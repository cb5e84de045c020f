package valueobject

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const shortIDPrefix = "m"

// ShortID представляет короткий идентификатор метрики вида m<n> (Value Object)
type ShortID string

// NewShortID создает идентификатор из порядкового номера
func NewShortID(n int) (ShortID, error) {
	if n < 0 {
		return "", errors.New("short id index cannot be negative")
	}
	return ShortID(fmt.Sprintf("%s%d", shortIDPrefix, n)), nil
}

// ParseShortID разбирает строку вида m<n>
func ParseShortID(s string) (ShortID, error) {
	if _, err := ShortID(s).Index(); err != nil {
		return "", err
	}
	return ShortID(s), nil
}

// Index возвращает порядковый номер идентификатора
func (id ShortID) Index() (int, error) {
	raw, ok := strings.CutPrefix(string(id), shortIDPrefix)
	if !ok || raw == "" {
		return 0, fmt.Errorf("invalid short id %q", string(id))
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid short id %q", string(id))
	}

	return n, nil
}

// String возвращает строковое представление
func (id ShortID) String() string {
	return string(id)
}

// ShortIDCounter выдает идентификаторы в пределах одного запуска.
// Значение неизменяемо: Next возвращает новый счетчик вместо изменения текущего,
// поэтому владелец счетчика явно передает его дальше.
type ShortIDCounter struct {
	next int
}

// NewShortIDCounter создает счетчик, начинающий с m0
func NewShortIDCounter() ShortIDCounter {
	return ShortIDCounter{}
}

// Next возвращает очередной идентификатор и продвинутый счетчик
func (c ShortIDCounter) Next() (ShortID, ShortIDCounter) {
	id := ShortID(fmt.Sprintf("%s%d", shortIDPrefix, c.next))
	return id, ShortIDCounter{next: c.next + 1}
}

// Issued возвращает количество уже выданных идентификаторов
func (c ShortIDCounter) Issued() int {
	return c.next
}
