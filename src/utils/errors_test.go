package utils_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"autoinvest/src/utils"

	"github.com/stretchr/testify/assert"
)

func TestPersistence(t *testing.T) {
	assert.NoError(t, utils.Persistence("op", nil))

	driverErr := errors.New("conn refused")
	err := utils.Persistence("read rule", driverErr)
	assert.ErrorIs(t, err, utils.ErrPersistence)
	assert.ErrorIs(t, err, driverErr)
	assert.Equal(t, "read rule: persistence error: conn refused", err.Error())

	assert.Same(t, err, utils.Persistence("outer", err))
	assert.Equal(t, utils.ErrNotFound, utils.Persistence("read rule", utils.ErrNotFound))
}

func TestToHTTPError(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{utils.NewValidationError("frequency", "unknown"), http.StatusBadRequest},
		{fmt.Errorf("rule: %w", utils.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("cancel: %w", utils.ErrTransactionNotPending), http.StatusConflict},
		{fmt.Errorf("sell: %w", utils.ErrInsufficientHoldings), http.StatusUnprocessableEntity},
		{&utils.PriceUnavailableError{AssetIDs: []string{"AAPL"}}, http.StatusUnprocessableEntity},
		{utils.ErrEmptyAllocation, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{utils.NotFound("nope"), http.StatusNotFound},
		{utils.Persistence("write", errors.New("boom")), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, utils.ToHTTPError(c.err).Code, c.err.Error())
	}

	assert.ErrorIs(t, utils.NewValidationError("f", "m"), utils.ErrValidation)
	assert.ErrorIs(t, &utils.PriceUnavailableError{}, utils.ErrPriceUnavailable)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	utils.WriteError(rec, utils.BadRequest(`bad "input"`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error": "bad \"input\""}`, rec.Body.String())
}
