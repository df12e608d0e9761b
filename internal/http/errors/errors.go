// Package errors define los errores HTTP y cómo se serializan: {"error": "<mensaje>"}.
package errors

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

// WriteError escribe err como respuesta JSON. Errores que no son *AppError
// salen como 500 sin detalle.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: appErr.Message})
}
