package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Rrens/oneonone-bot/internal/api/response"
	"github.com/Rrens/oneonone-bot/internal/botframework"
)

type contextKey string

const ActivityKey contextKey = "activity"

const maxActivityBytes = 1 << 20

var validate = validator.New()

// DecodeActivity reads the Bot Framework activity from the request body,
// validates it and stores it in the request context.
func DecodeActivity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var activity botframework.Activity
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActivityBytes)).Decode(&activity); err != nil {
			response.BadRequest(w, "invalid activity body")
			return
		}

		if err := validate.Struct(activity); err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), ActivityKey, &activity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActivity gets the decoded activity from context
func GetActivity(ctx context.Context) (*botframework.Activity, bool) {
	activity, ok := ctx.Value(ActivityKey).(*botframework.Activity)
	return activity, ok
}
