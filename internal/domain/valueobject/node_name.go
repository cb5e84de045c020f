package valueobject

import "strings"

// UndefinedNode подставляется, когда после очистки от имени узла ничего не осталось
const UndefinedNode NodeName = "UNDEFINED_NODE"

// NodeName представляет очищенное имя узла кластера (Value Object)
// Содержит только символы [A-Za-z0-9.,-] и никогда не бывает пустым
type NodeName string

// NewNodeName очищает сырое имя узла, полученное от платформы
func NewNodeName(raw string) NodeName {
	var b strings.Builder
	b.Grow(len(raw))

	for _, r := range raw {
		if isNodeNameRune(r) {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return UndefinedNode
	}

	return NodeName(b.String())
}

func isNodeNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == ',' || r == '-':
		return true
	default:
		return false
	}
}

// String возвращает строковое представление
func (n NodeName) String() string {
	return string(n)
}

// IsUndefined сообщает, было ли имя заменено на UndefinedNode
func (n NodeName) IsUndefined() bool {
	return n == UndefinedNode
}
