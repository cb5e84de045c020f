package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

// Envelope нормализованный ответ платформы: статус, данные и сообщение.
// Transport выставляется, когда ответ не был получен и статус синтетический.
type Envelope[T any] struct {
	StatusCode int
	Data       T
	Message    string
	Transport  bool
}

// OK сообщает, что платформа вернула статус 200
func (e Envelope[T]) OK() bool {
	return e.StatusCode == 200
}

// AcquireTokenRequest тело запроса получения токена
type AcquireTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AcquireTokenResponse ответ на получение токена
type AcquireTokenResponse struct {
	Token     string `json:"token"`
	Validity  int64  `json:"validity,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// ReleaseTokenResponse тело ответа освобождения токена (обычно пустое)
type ReleaseTokenResponse struct{}

// ClusterStateResponse состояние кластера
type ClusterStateResponse struct {
	Snapshot string `json:"cluster_online_state_snapshot"`
	State    string `json:"cluster_online_state,omitempty"`
}

// ResourceQueryRequest тело запроса ресурсов по типу
type ResourceQueryRequest struct {
	ResourceKind []string `json:"resourceKind"`
}

// ResourceQueryResponse ответ запроса ресурсов.
// nil поля означают, что их не было в ответе.
type ResourceQueryResponse struct {
	PageInfo     *PageInfo            `json:"pageInfo"`
	ResourceList []ResourceDescriptor `json:"resourceList"`
}

// Validate проверяет обязательные поля ответа
func (r ResourceQueryResponse) Validate() error {
	if r.PageInfo == nil {
		return errors.New("pageInfo missing in response")
	}
	if r.ResourceList == nil {
		return errors.New("resourceList missing in response")
	}
	for i, descriptor := range r.ResourceList {
		if descriptor.Identifier == "" {
			return fmt.Errorf("resourceList[%d] has no identifier", i)
		}
	}
	return nil
}

type PageInfo struct {
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
}

type ResourceDescriptor struct {
	Identifier  string      `json:"identifier"`
	ResourceKey ResourceKey `json:"resourceKey"`
}

type ResourceKey struct {
	Name                string               `json:"name"`
	AdapterKindKey      string               `json:"adapterKindKey,omitempty"`
	ResourceKindKey     string               `json:"resourceKindKey,omitempty"`
	ResourceIdentifiers []ResourceIdentifier `json:"resourceIdentifiers"`
}

type ResourceIdentifier struct {
	Value string `json:"value"`
}

// FirstIdentifierValue возвращает первое значение идентификатора или пустую строку
func (k ResourceKey) FirstIdentifierValue() string {
	if len(k.ResourceIdentifiers) == 0 {
		return ""
	}
	return k.ResourceIdentifiers[0].Value
}

// StatsResponse ответ статистики ресурса
type StatsResponse struct {
	Values []StatsValue `json:"values"`
}

type StatsValue struct {
	ResourceID string    `json:"resourceId,omitempty"`
	StatList   *StatList `json:"stat-list"`
}

// StatList список метрик; Stat == nil означает отсутствие поля в ответе
type StatList struct {
	Stat []Stat `json:"stat"`
}

type Stat struct {
	StatKey    StatKey         `json:"statKey"`
	Timestamps []int64         `json:"timestamps,omitempty"`
	Data       json.RawMessage `json:"data"`
}

type StatKey struct {
	Key string `json:"key"`
}

// Entries возвращает метрики первого значения.
// ok == false, если values[0] или stat-list.stat отсутствуют.
func (r StatsResponse) Entries() ([]Stat, bool) {
	if len(r.Values) == 0 || r.Values[0].StatList == nil || r.Values[0].StatList.Stat == nil {
		return nil, false
	}
	return r.Values[0].StatList.Stat, true
}

// Series разбирает data в одном из двух форматов:
// пары [[ts, v], ...] или плоский массив значений с параллельным timestamps.
func (s Stat) Series() (valueobject.TimeSeries, error) {
	raw := bytes.TrimSpace(s.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return valueobject.TimeSeries{}, nil
	}

	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err == nil {
		return valueobject.NewTimeSeriesFromPairs(pairs), nil
	}

	var values []float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("unsupported data shape for %s: %w", s.StatKey.Key, err)
	}

	return valueobject.NewTimeSeriesFromColumns(s.Timestamps, values), nil
}
