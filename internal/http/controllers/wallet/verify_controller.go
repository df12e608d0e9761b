// Package wallet expone la verificación de pruebas de wallet por HTTP.
package wallet

import (
	"net/http"

	httperrors "github.com/slopeoasis/usergate/internal/http/errors"
	"github.com/slopeoasis/usergate/internal/http/helpers"
	mw "github.com/slopeoasis/usergate/internal/http/middlewares"
	"github.com/slopeoasis/usergate/internal/observability/logger"
	"github.com/slopeoasis/usergate/internal/wallet"
)

// ProofVerifier es lo que necesita el controller de wallet.Verifier.
type ProofVerifier interface {
	VerifyProof(p wallet.Proof) bool
}

type verifyRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
}

type verifyResponse struct {
	Verified  bool   `json:"verified"`
	SubjectID string `json:"subject_id"`
	Wallet    string `json:"wallet,omitempty"`
}

// VerifyController maneja POST /v1/wallet/verify.
type VerifyController struct {
	verifier ProofVerifier
}

func NewVerifyController(v ProofVerifier) *VerifyController {
	return &VerifyController{verifier: v}
}

// Verify valida una firma personal_sign de la dirección declarada. Una firma
// que no corresponde es 200 con verified=false; sólo la entrada mal formada es 400.
func (c *VerifyController) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("VerifyController.Verify"))

	id, ok := mw.GetIdentity(ctx)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	var req verifyRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithMessage("message is required"))
		return
	}
	proof, err := wallet.ParseProof(req.Message, req.Signature, req.Address)
	if err != nil {
		httperrors.WriteError(w, httperrors.Wrap(err, http.StatusBadRequest, "INVALID_PROOF", err.Error()))
		return
	}

	resp := verifyResponse{SubjectID: id.SubjectID, Wallet: id.Wallet}
	if c.verifier.VerifyProof(proof) {
		id = id.WithVerifiedWallet(proof.ClaimedAddress)
		resp.Verified = true
		resp.Wallet = id.Wallet
		log.Info("wallet proof verified", logger.Wallet(id.Wallet))
	} else {
		log.Info("wallet proof rejected", logger.Wallet(proof.ClaimedAddress))
	}

	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, resp)
}
