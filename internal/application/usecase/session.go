package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

const clusterOnline = "ONLINE"

// SessionUseCase управляет жизненным циклом токена и проверкой состояния кластера
type SessionUseCase struct {
	client port.PlatformClient
	logger *logger.Logger
}

// NewSessionUseCase создает новый use case
func NewSessionUseCase(client port.PlatformClient, log *logger.Logger) *SessionUseCase {
	return &SessionUseCase{
		client: client,
		logger: log,
	}
}

// Acquire получает токен и возвращает аутентифицированную сессию
func (uc *SessionUseCase) Acquire(ctx context.Context, credentials *entity.Credentials) (*entity.Session, error) {
	session, err := entity.NewSession(credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	env := uc.client.AcquireToken(ctx, credentials.Host(), dto.AcquireTokenRequest{
		Username: credentials.Username(),
		Password: credentials.Password(),
	})
	if !env.OK() {
		uc.logger.Error("Failed to acquire token", nil,
			"host", credentials.Host(),
			"status", env.StatusCode,
			"message", env.Message,
		)
		return nil, envelopeFailure(StageAcquire, env)
	}

	if err := session.Authenticate(env.Data.Token); err != nil {
		return nil, &EnvelopeError{
			Stage:      StageAcquire,
			Kind:       KindProtocol,
			StatusCode: env.StatusCode,
			Message:    "token missing in response",
			Err:        err,
		}
	}

	uc.logger.Info("Token acquired", "host", credentials.Host())
	return session, nil
}

// CheckClusterHealth проверяет, что снимок состояния кластера равен ONLINE
func (uc *SessionUseCase) CheckClusterHealth(ctx context.Context, session *entity.Session) (string, error) {
	env := uc.client.ClusterState(ctx, session)
	if !env.OK() {
		uc.logger.Error("Failed to read cluster state", nil,
			"status", env.StatusCode,
			"message", env.Message,
		)
		return "", envelopeFailure(StageHealth, env)
	}

	state := env.Data.Snapshot
	if state != clusterOnline {
		shown := state
		if shown == "" {
			shown = "UNKNOWN"
		}
		return state, &EnvelopeError{
			Stage:      StageHealth,
			Kind:       KindPrecondition,
			StatusCode: 503,
			Message:    fmt.Sprintf("vROps cluster: %s.", shown),
			Err:        ErrClusterNotOnline,
		}
	}

	uc.logger.Info("vROps cluster is online", "host", session.Host())
	return state, nil
}

// Release освобождает токен и возвращает статус ответа.
// Ошибка освобождения только логируется; токен очищается в любом случае.
func (uc *SessionUseCase) Release(ctx context.Context, session *entity.Session) int {
	if session == nil || !session.IsAuthenticated() {
		return 0
	}

	env := uc.client.ReleaseToken(ctx, session)
	session.Clear()

	if env.StatusCode != 200 {
		uc.logger.Warn("Failed to release token",
			"host", session.Host(),
			"status", env.StatusCode,
			"message", env.Message,
		)
		return env.StatusCode
	}

	uc.logger.Info("Token released", "host", session.Host())
	return env.StatusCode
}
