package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopledger-backend/api/responses"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

const actorIDHeader = "X-Actor-Id"

// Actor reads the optional X-Actor-Id header set by the upstream gateway and
// records it for audit fields such as recorded_by. Authentication happens
// before requests reach this service.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(actorIDHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			actorID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+actorIDHeader+" header"))
				return
			}
			ctx := WithActorID(r.Context(), actorID)
			if logg != nil {
				ctx = logg.WithField(ctx, "actor_id", actorID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
