package usecase

import (
	"context"
	"net/http"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// ResolveObjectsUseCase находит объекты самомониторинга для сервиса
type ResolveObjectsUseCase struct {
	client port.PlatformClient
	logger *logger.Logger
}

// NewResolveObjectsUseCase создает новый use case
func NewResolveObjectsUseCase(client port.PlatformClient, log *logger.Logger) *ResolveObjectsUseCase {
	return &ResolveObjectsUseCase{
		client: client,
		logger: log,
	}
}

// Execute выполняет запрос ресурсов по типу сервиса.
// Обрабатывается min(totalCount, len(resourceList)) объектов в порядке ответа.
// Ответ 200 без pageInfo, resourceList или identifier считается ошибкой протокола.
func (uc *ResolveObjectsUseCase) Execute(
	ctx context.Context,
	session *entity.Session,
	service string,
) ([]entity.ResolvedObject, error) {
	env := uc.client.QueryResources(ctx, session, dto.ResourceQueryRequest{
		ResourceKind: []string{service},
	})
	if !env.OK() {
		uc.logger.Error("Failed to resolve service objects", nil,
			"service", service,
			"status", env.StatusCode,
			"message", env.Message,
		)
		return nil, envelopeFailure(StageResolve, env)
	}
	if err := env.Data.Validate(); err != nil {
		uc.logger.Error("Malformed resource query response", err, "service", service)
		return nil, &EnvelopeError{
			Stage:      StageResolve,
			Kind:       KindProtocol,
			StatusCode: http.StatusBadGateway,
			Message:    err.Error(),
			Err:        err,
		}
	}

	count := env.Data.PageInfo.TotalCount
	if count > len(env.Data.ResourceList) {
		uc.logger.Warn("Resource list shorter than reported total",
			"service", service,
			"total_count", count,
			"listed", len(env.Data.ResourceList),
		)
		count = len(env.Data.ResourceList)
	}
	if count < 0 {
		count = 0
	}

	objects := make([]entity.ResolvedObject, 0, count)
	for _, descriptor := range env.Data.ResourceList[:count] {
		obj := entity.NewResolvedObject(
			descriptor.Identifier,
			descriptor.ResourceKey.Name,
			descriptor.ResourceKey.FirstIdentifierValue(),
		)
		if obj.NodeName.IsUndefined() {
			uc.logger.Warn("Object has no usable node identifier",
				"service", service,
				"object", obj.DisplayName,
				"node", obj.NodeName.String(),
			)
		}
		objects = append(objects, obj)
	}

	uc.logger.Debug("Resolved service objects", "service", service, "count", len(objects))
	return objects, nil
}
