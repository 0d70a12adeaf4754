package email

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/tribe-auth/pkg/auth"
	"github.com/tendant/tribe-auth/pkg/domain"
)

type fakeService struct {
	verifyErr error
	gotToken  string
	gotEmail  string
}

func (f *fakeService) VerifyEmail(_ context.Context, token string) error {
	f.gotToken = token
	return f.verifyErr
}

func (f *fakeService) ResendVerification(_ context.Context, email string) auth.Acknowledgement {
	f.gotEmail = email
	return auth.Acknowledgement{Message: "maybe sent"}
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))
	return rec
}

func TestVerifyEmail(t *testing.T) {
	svc := &fakeService{}
	rec := post(NewHandler(svc).VerifyEmail, `{"token":"v-token"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v-token", svc.gotToken)

	tests := map[string]struct {
		body string
		err  error
		want int
	}{
		"missing token": {body: `{}`, want: http.StatusBadRequest},
		"expired":       {body: `{"token":"t"}`, err: domain.ErrTokenExpired, want: http.StatusUnauthorized},
		"reused":        {body: `{"token":"t"}`, err: domain.ErrInvalidToken, want: http.StatusUnauthorized},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := post(NewHandler(&fakeService{verifyErr: tt.err}).VerifyEmail, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestResendVerification(t *testing.T) {
	svc := &fakeService{}
	rec := post(NewHandler(svc).ResendVerification, `{"email":"p@x.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p@x.com", svc.gotEmail)
	assert.JSONEq(t, `{"message":"maybe sent"}`, rec.Body.String())

	rec = post(NewHandler(svc).ResendVerification, `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
