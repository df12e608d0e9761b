// Package auth contiene los controllers que requieren identidad verificada.
package auth

import (
	"net/http"

	httperrors "github.com/slopeoasis/usergate/internal/http/errors"
	"github.com/slopeoasis/usergate/internal/http/helpers"
	mw "github.com/slopeoasis/usergate/internal/http/middlewares"
)

type meResponse struct {
	SubjectID string `json:"subject_id"`
	Wallet    string `json:"wallet,omitempty"`
}

// Me maneja GET /v1/me. Requiere RequireAuth antes.
func Me(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, meResponse{SubjectID: id.SubjectID, Wallet: id.Wallet})
}
