package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordergenie-backend/pkg/errors"
)

type adjustBody struct {
	Amount int                  `json:"amount" validate:"gte=0"`
	Mode   enums.AdjustmentMode `json:"mode" validate:"required,enum"`
}

func decode(t *testing.T, body string, optional bool) (adjustBody, error) {
	t.Helper()
	var dest adjustBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	if optional {
		return dest, DecodeOptionalJSONBody(rec, req, &dest)
	}
	return dest, DecodeJSONBody(rec, req, &dest)
}

func TestDecodeJSONBodyAcceptsKnownEnum(t *testing.T) {
	got, err := decode(t, `{"amount":4,"mode":"ADD"}`, false)
	require.NoError(t, err)
	require.Equal(t, enums.AdjustmentMode("ADD"), got.Mode)
}

func TestDecodeJSONBodyRejectsUnknownEnum(t *testing.T) {
	_, err := decode(t, `{"amount":4,"mode":"MULTIPLY"}`, false)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Contains(t, details["mode"], "MULTIPLY")
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndEmptyBody(t *testing.T) {
	_, err := decode(t, `{"amount":4,"mode":"ADD","extra":true}`, false)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = decode(t, ``, false)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeOptionalJSONBodyStillValidates(t *testing.T) {
	_, err := decode(t, ``, true)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty body leaves required mode unset")
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	huge := `{"amount":1,"mode":"` + strings.Repeat("A", maxBodyBytes) + `"}`
	_, err := decode(t, huge, false)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "request body too large", pkgerrors.As(err).Message())
}
