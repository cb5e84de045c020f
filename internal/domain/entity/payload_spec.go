package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ServiceSpec описывает один сервис и набор его KPI
type ServiceSpec struct {
	name string
	kpis map[string]struct{}
}

// Name возвращает имя сервиса (resource kind)
func (s ServiceSpec) Name() string {
	return s.name
}

// IsKPI сообщает, входит ли ключ метрики в набор KPI сервиса
func (s ServiceSpec) IsKPI(key string) bool {
	_, ok := s.kpis[key]
	return ok
}

// KPICount возвращает размер набора KPI
func (s ServiceSpec) KPICount() int {
	return len(s.kpis)
}

// PayloadSpec хранит упорядоченный список сервисов для сбора.
// Порядок совпадает с порядком в исходном файле.
type PayloadSpec struct {
	services []ServiceSpec
	index    map[string]int
}

func NewPayloadSpec() *PayloadSpec {
	return &PayloadSpec{index: make(map[string]int)}
}

// AddService добавляет сервис; повторное имя считается ошибкой
func (p *PayloadSpec) AddService(name string, kpis []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("service name cannot be empty")
	}
	if _, exists := p.index[name]; exists {
		return fmt.Errorf("duplicate service %q", name)
	}

	set := make(map[string]struct{}, len(kpis))
	for _, k := range kpis {
		set[k] = struct{}{}
	}

	p.index[name] = len(p.services)
	p.services = append(p.services, ServiceSpec{name: name, kpis: set})
	return nil
}

// Services возвращает сервисы в порядке добавления
func (p *PayloadSpec) Services() []ServiceSpec {
	out := make([]ServiceSpec, len(p.services))
	copy(out, p.services)
	return out
}

// Service ищет сервис по имени
func (p *PayloadSpec) Service(name string) (ServiceSpec, bool) {
	i, ok := p.index[name]
	if !ok {
		return ServiceSpec{}, false
	}
	return p.services[i], true
}

func (p *PayloadSpec) Len() int {
	return len(p.services)
}
