package entity

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{kind}",
		Summary:     "Список записей",
		Tags:        []string{"entities"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-find",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{kind}/{id}",
		Summary:     "Получить запись",
		Tags:        []string{"entities"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "entities-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/entities/{kind}",
		Summary:       "Создать запись",
		Description:   "Тело запроса - поля записи. Повтор запроса с тем же Idempotency-Key возвращает ранее созданную запись со статусом 200.",
		Tags:          []string{"entities"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-update",
		Method:      http.MethodPut,
		Path:        "/api/v1/entities/{kind}/{id}",
		Summary:     "Заменить поля записи",
		Tags:        []string{"entities"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID:   "entities-delete",
		Method:        http.MethodDelete,
		Path:          "/api/v1/entities/{kind}/{id}",
		Summary:       "Удалить запись",
		Description:   "Мягкое удаление. Единственного суперадминистратора удалить нельзя (409).",
		Tags:          []string{"entities"},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}
