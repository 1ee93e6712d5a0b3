// Серверная часть синхронизации кассы.
//
//GET    /api/v1/health
//GET    /api/v1/entities/{kind}       # список записей владельца (X-Owner-ID)
//POST   /api/v1/entities/{kind}       # создать (Idempotency-Key)
//GET    /api/v1/entities/{kind}/{id}
//PUT    /api/v1/entities/{kind}/{id}
//DELETE /api/v1/entities/{kind}/{id}  # мягкое удаление

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	entityAPI "possync/internal/app/server/api/http/entity"
	healthAPI "possync/internal/app/server/api/http/health"
	"possync/internal/app/server/api/http/middleware"
	"possync/internal/app/server/api/http/middleware/logger"
	"possync/internal/app/server/api/http/middleware/owner"
	"possync/internal/domain/entity"
)

const Version = "1.0.0"

type Handlers struct {
	Health *healthAPI.Handler
	Entity *entityAPI.Handler
}

// New создает *chi.Mux со всеми операциями. cache может быть nil.
func New(repo entity.Repository, cache entity.IdempotencyCache, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("PosSync API", Version)
	API := humachi.New(mux, config)

	h := handlers(repo, cache, log)
	h.Health.SetupRoutes(API)
	h.Entity.SetupRoutes(API)

	return mux
}

func handlers(repo entity.Repository, cache entity.IdempotencyCache, log *slog.Logger) *Handlers {
	loggerMW := logger.New(log)
	ownerMW := owner.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear(), Version)

	entityService := entity.NewService(repo, cache, log)
	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(ownerMW.Middleware())
	entityHandler := entityAPI.NewHandler(entityService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Entity: entityHandler,
	}
}
