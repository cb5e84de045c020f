package port

import (
	"context"
	"net/url"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
)

// PlatformClient определяет транспорт к REST API платформы (Port)
// Каждый метод выполняет ровно один запрос и никогда не возвращает сырую ошибку:
// любая ошибка транспорта приводится к Envelope с синтетическим статусом.
type PlatformClient interface {
	AcquireToken(ctx context.Context, host string, req dto.AcquireTokenRequest) dto.Envelope[dto.AcquireTokenResponse]

	ReleaseToken(ctx context.Context, session *entity.Session) dto.Envelope[dto.ReleaseTokenResponse]

	ClusterState(ctx context.Context, session *entity.Session) dto.Envelope[dto.ClusterStateResponse]

	QueryResources(ctx context.Context, session *entity.Session, req dto.ResourceQueryRequest) dto.Envelope[dto.ResourceQueryResponse]

	ResourceStats(ctx context.Context, session *entity.Session, resourceID string, params url.Values) dto.Envelope[dto.StatsResponse]
}
