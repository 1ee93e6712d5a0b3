package owner

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

const Header = "X-Owner-ID"

type contextKey string

const ownerIDKey contextKey = "ownerID"

// Owner кладет владельца данных из заголовка X-Owner-ID в контекст запроса.
type Owner struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Owner {
	return &Owner{
		log: log.With("component", "owner_middleware"),
	}
}

func (o *Owner) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ownerID := strings.TrimSpace(ctx.Header(Header))
		if ownerID == "" {
			o.log.Warn("request without owner", "path", ctx.URL().Path)
			ctx.SetStatus(http.StatusUnauthorized)
			ctx.SetHeader("Content-Type", "application/json")
			if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
				"error": "owner is not specified",
			}); err != nil {
				o.log.Error("failed to write response", "error", err)
			}
			return
		}

		next(huma.WithContext(ctx, WithOwnerID(ctx.Context(), ownerID)))
	}
}

func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

func GetOwnerID(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ownerIDKey).(string)
	return ownerID, ok && ownerID != ""
}
