package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/types"
)

func TestIsValidID(t *testing.T) {
	cases := map[string]bool{
		"abc123":                            true,
		"":                                  false,
		"has-dash":                          false,
		"0123456789abcdef0123456789abcdef":  true,
		"0123456789abcdef0123456789abcdef0": false,
	}
	for id, want := range cases {
		if got := isValidID(id); got != want {
			t.Errorf("isValidID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestWriteDomainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err       error
		code      int
		msg       string
		retryable bool
	}{
		{types.Errorf(types.ErrValidation, "bad seats"), http.StatusBadRequest, "bad seats", false},
		{types.Errorf(types.ErrNotFound, "no ride"), http.StatusNotFound, "no ride", false},
		{types.Errorf(types.ErrForbidden, "not yours"), http.StatusForbidden, "not yours", false},
		{types.Errorf(types.ErrState, "already started"), http.StatusConflict, "already started", false},
		{types.Errorf(types.ErrConflict, "seats taken"), http.StatusConflict, "seats taken", true},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal error", false},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeDomainError(c, tc.err)

		if w.Code != tc.code {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.code, w.Code)
			continue
		}
		var body errorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != tc.msg || body.Retryable != tc.retryable {
			t.Errorf("%v: unexpected body %+v", tc.err, body)
		}
	}
}

func TestParseStartTime(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	got, err := parseStartTime("2026-03-10T09:30", loc)
	if err != nil {
		t.Fatalf("local layout: %v", err)
	}
	if !got.Equal(time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected local parse: %v", got)
	}

	got, err = parseStartTime("2026-03-10T04:00:00Z", loc)
	if err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if got.Location() != loc || got.Hour() != 9 {
		t.Fatalf("expected conversion into loc, got %v", got)
	}

	if _, err := parseStartTime("next tuesday", loc); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
