package entity

import (
	"fmt"
	"sort"

	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

// NodeTable хранит таблицы одного узла: ряды по коротким идентификаторам и таблицу имен.
// Каждому идентификатору в рядах соответствует ровно одна строка в таблице имен.
type NodeTable struct {
	node   valueobject.NodeName
	order  []valueobject.ShortID
	series map[valueobject.ShortID]valueobject.TimeSeries
	names  []NameDescriptor
}

func NewNodeTable(node valueobject.NodeName) *NodeTable {
	return &NodeTable{
		node:   node,
		series: make(map[valueobject.ShortID]valueobject.TimeSeries),
	}
}

func (t *NodeTable) Node() valueobject.NodeName {
	return t.node
}

// Append добавляет записи в порядке поступления
func (t *NodeTable) Append(records ...MetricRecord) error {
	for _, r := range records {
		if _, exists := t.series[r.ShortID]; exists {
			return fmt.Errorf("duplicate short id %s on node %s", r.ShortID, t.node)
		}
		t.order = append(t.order, r.ShortID)
		t.series[r.ShortID] = r.Series
		t.names = append(t.names, r.Descriptor())
	}
	return nil
}

// ShortIDs возвращает идентификаторы в порядке вставки
func (t *NodeTable) ShortIDs() []valueobject.ShortID {
	out := make([]valueobject.ShortID, len(t.order))
	copy(out, t.order)
	return out
}

func (t *NodeTable) Series(id valueobject.ShortID) (valueobject.TimeSeries, bool) {
	s, ok := t.series[id]
	return s, ok
}

// Names возвращает таблицу имен в порядке вставки
func (t *NodeTable) Names() []NameDescriptor {
	out := make([]NameDescriptor, len(t.names))
	copy(out, t.names)
	return out
}

func (t *NodeTable) Len() int {
	return len(t.order)
}

// FrameRow строка таблицы данных: метка времени и значения по колонкам
type FrameRow struct {
	Timestamp int64
	Values    []float64
	Present   []bool
}

// Frame таблица данных узла: строки по меткам времени, колонки по идентификаторам
type Frame struct {
	Columns []valueobject.ShortID
	Rows    []FrameRow
}

// Frame выравнивает ряды по объединению меток времени (по возрастанию).
// Если в одном ряду метка времени повторяется, в ячейку попадает последнее значение.
func (t *NodeTable) Frame() Frame {
	columns := t.ShortIDs()
	col := make(map[valueobject.ShortID]int, len(columns))
	for i, id := range columns {
		col[id] = i
	}

	rowsByTS := make(map[int64]*FrameRow)
	for _, id := range columns {
		for _, sample := range t.series[id] {
			row, ok := rowsByTS[sample.Timestamp]
			if !ok {
				row = &FrameRow{
					Timestamp: sample.Timestamp,
					Values:    make([]float64, len(columns)),
					Present:   make([]bool, len(columns)),
				}
				rowsByTS[sample.Timestamp] = row
			}
			row.Values[col[id]] = sample.Value
			row.Present[col[id]] = true
		}
	}

	rows := make([]FrameRow, 0, len(rowsByTS))
	for _, row := range rowsByTS {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })

	return Frame{Columns: columns, Rows: rows}
}

// SkippedObject объект, пропущенный из-за отсутствия данных
type SkippedObject struct {
	Service    string
	Identifier string
	Name       string
	Reason     string
}

// CollectionResult результат сбора: узлы в порядке первого появления
type CollectionResult struct {
	nodes   []*NodeTable
	index   map[valueobject.NodeName]*NodeTable
	objects int
	skipped []SkippedObject
}

func NewCollectionResult() *CollectionResult {
	return &CollectionResult{index: make(map[valueobject.NodeName]*NodeTable)}
}

// Table возвращает таблицу узла, создавая ее при первом обращении.
// Объекты с одинаковым именем узла накапливаются в одной таблице.
func (c *CollectionResult) Table(node valueobject.NodeName) *NodeTable {
	if t, ok := c.index[node]; ok {
		return t
	}
	t := NewNodeTable(node)
	c.index[node] = t
	c.nodes = append(c.nodes, t)
	return t
}

// Nodes возвращает таблицы в порядке первого появления узла
func (c *CollectionResult) Nodes() []*NodeTable {
	out := make([]*NodeTable, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// MarkCollected учитывает объект, по которому получены данные
func (c *CollectionResult) MarkCollected() {
	c.objects++
}

// MarkSkipped учитывает объект без данных
func (c *CollectionResult) MarkSkipped(obj SkippedObject) {
	c.skipped = append(c.skipped, obj)
}

func (c *CollectionResult) ObjectsCollected() int {
	return c.objects
}

func (c *CollectionResult) Skipped() []SkippedObject {
	out := make([]SkippedObject, len(c.skipped))
	copy(out, c.skipped)
	return out
}

// SeriesCount возвращает общее число рядов по всем узлам
func (c *CollectionResult) SeriesCount() int {
	total := 0
	for _, t := range c.nodes {
		total += t.Len()
	}
	return total
}
