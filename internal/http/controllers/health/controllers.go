// Package health contiene los controllers públicos de estado del servicio.
package health

import (
	"net/http"
	"os"

	"github.com/slopeoasis/usergate/internal/http/helpers"
)

// Controller responde /health y /whoami.
type Controller struct {
	hostname func() (string, error)
}

func NewController() *Controller {
	return &Controller{hostname: os.Hostname}
}

// Health maneja GET /health
func (c *Controller) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WhoAmI maneja GET /whoami: identifica la réplica que atendió el request.
func (c *Controller) WhoAmI(w http.ResponseWriter, r *http.Request) {
	host := os.Getenv("HOSTNAME")
	if host == "" {
		host, _ = c.hostname()
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"hostname": host})
}
