package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/srrfarms/storefront-api/api/responses"
	"github.com/srrfarms/storefront-api/api/validators"
	"github.com/srrfarms/storefront-api/internal/payments"
	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
	"github.com/srrfarms/storefront-api/pkg/logger"
	"github.com/srrfarms/storefront-api/pkg/types"
)

// PaymentsCreateUPIOrder accepts the multipart UPI checkout: a screenshot file plus
// optional shippingAddress (JSON), transactionId and notes fields.
func PaymentsCreateUPIOrder(svc payments.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("payments"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+formOverhead)
		if err := r.ParseMultipartForm(multipartMem); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment screenshot is too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile(screenshotKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment screenshot is required"))
			return
		}
		defer func() { _ = file.Close() }()

		address, err := parseFormAddress(r.FormValue("shippingAddress"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var txnID *string
		if raw := validators.SanitizeString(r.FormValue("transactionId"), maxTxnIDLen); raw != "" {
			txnID = &raw
		}

		order, err := svc.CreateUPIOrder(r.Context(), payments.CreateUPIOrderInput{
			UserID: userID,
			Screenshot: payments.Screenshot{
				Body:     file,
				Filename: header.Filename,
				Size:     header.Size,
			},
			ShippingAddress: address,
			TransactionID:   txnID,
			Notes:           validators.SanitizeString(r.FormValue("notes"), maxNotesLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func parseFormAddress(raw string) (*types.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var address types.Address
	if err := json.Unmarshal([]byte(raw), &address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shippingAddress must be a JSON object")
	}
	return &address, nil
}
