package port

import "github.com/dreschagin/vrops-selfmon/internal/application/dto"

// RunNotifier определяет интерфейс для рассылки событий запуска (Port)
// Реализация будет в Infrastructure слое (WebSocket Hub)
type RunNotifier interface {
	// BroadcastRunEvent отправляет событие всем подключенным клиентам
	BroadcastRunEvent(event *dto.RunEventDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
