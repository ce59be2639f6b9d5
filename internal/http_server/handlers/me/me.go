package me

import (
	"net/http"

	"github.com/go-chi/render"

	"auth_gateway/internal/auth"
	resp "auth_gateway/internal/lib/api/response"
	"auth_gateway/internal/models"
)

type Response struct {
	resp.Response
	User models.Identity `json:"user"`
}

// New answers the "am I still signed in" question. The gateway middleware
// has already done the work; this only reports its result.
func New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authentication required"))
			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     id,
		})
	}
}
