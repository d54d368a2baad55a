package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, errors.New("cardPk is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ErrorResponse{Error: "Bad Request", Message: "cardPk is required", Code: 400}, body)
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]int{"id": 4})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"id":4}}`, rec.Body.String())
}

func TestAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	err := Attachment(rec, "text/csv", "collection.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "Set,Character\r\n")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="collection.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Set,Character\r\n", rec.Body.String())
}

func TestAttachment_RenderErrorWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	boom := errors.New("boom")
	err := Attachment(rec, "text/csv", "trade.csv", func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestHTML(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, HTML(rec, func(w io.Writer) error {
		_, err := io.WriteString(w, "<html></html>")
		return err
	}))
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<html></html>", rec.Body.String())
}
