package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"registra/internal/credential/hasher"
	"registra/internal/credential/history"
	credential "registra/internal/credential/service"
	identity "registra/internal/identity/service"
	"registra/internal/identity/store/user"
	"registra/internal/jwttoken"
	"registra/internal/transport/httpapi"
	"registra/pkg/platform/audit/publisher"
	auditmemory "registra/pkg/platform/audit/store/memory"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type HandlerSuite struct {
	suite.Suite
	server  *httptest.Server
	token   string
	healthy bool
}

func (s *HandlerSuite) SetupTest() {
	users := user.NewInMemory()
	h := hasher.NewBcrypt(bcrypt.MinCost)
	hist := history.New(history.NewInMemoryStore(), h)
	auditor := publisher.New(auditmemory.New())

	records := identity.New(users, hist, h, identity.WithAuditor(auditor))
	credentials := credential.New(users, hist, h, credential.WithAuditor(auditor))

	jwtSvc := jwttoken.NewJWTService("test-signing-key", "registra-test", "registra-admin")
	token, err := jwtSvc.GenerateAccessToken("admin@test", time.Hour)
	s.Require().NoError(err)
	s.token = token

	s.healthy = true
	health := map[string]httpapi.HealthChecker{
		"store": func(context.Context) error {
			if !s.healthy {
				return errors.New("store unreachable")
			}
			return nil
		},
	}

	handler := httpapi.NewHandler(records, credentials, httpapi.NewTokenValidator(jwtSvc), newTestLogger(), health)
	s.server = httptest.NewServer(handler.Routes())
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, body any, authed bool) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, raw
}

func (s *HandlerSuite) createUser(email, nationalID string) map[string]any {
	resp, raw := s.do(http.MethodPost, "/users", map[string]any{
		"email":       email,
		"national_id": nationalID,
		"first_name":  "Jane",
		"last_name":   "Doe",
		"role":        "member",
	}, true)
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(raw))

	var body map[string]any
	s.Require().NoError(json.Unmarshal(raw, &body))
	return body
}

func (s *HandlerSuite) TestCreateUser() {
	body := s.createUser("jane.doe@example.com", "123456")
	s.NotEmpty(body["id"])
	s.Equal("jane.doe", body["login"])
	s.Equal(true, body["active"])
}

func (s *HandlerSuite) TestMutationsRequireAuth() {
	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/users"},
		{http.MethodPatch, "/users/3a4f8a77-3a63-43a2-9d0c-ff2e0b1f3c11"},
		{http.MethodDelete, "/users/3a4f8a77-3a63-43a2-9d0c-ff2e0b1f3c11"},
		{http.MethodPost, "/users/3a4f8a77-3a63-43a2-9d0c-ff2e0b1f3c11/password-reset"},
	} {
		resp, _ := s.do(tc.method, tc.path, map[string]any{}, false)
		s.Equal(http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func (s *HandlerSuite) TestDuplicateEmailConflict() {
	s.createUser("jane.doe@example.com", "123456")

	resp, raw := s.do(http.MethodPost, "/users", map[string]any{
		"email":       "JANE.DOE@example.com",
		"national_id": "999999",
		"first_name":  "Other",
		"last_name":   "Person",
		"role":        "member",
	}, true)
	s.Require().Equal(http.StatusConflict, resp.StatusCode)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(raw, &body))
	s.Equal("conflict", body["error"])
	s.Contains(body["error_description"], "email")
}

func (s *HandlerSuite) TestGetAndList() {
	created := s.createUser("jane.doe@example.com", "123456")

	resp, raw := s.do(http.MethodGet, fmt.Sprintf("/users/%s", created["id"]), nil, false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var got map[string]any
	s.Require().NoError(json.Unmarshal(raw, &got))
	s.Equal(created["id"], got["id"])

	resp, raw = s.do(http.MethodGet, "/users", nil, false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var list map[string][]map[string]any
	s.Require().NoError(json.Unmarshal(raw, &list))
	s.Len(list["users"], 1)
}

func (s *HandlerSuite) TestGetRejectsMalformedID() {
	resp, raw := s.do(http.MethodGet, "/users/not-a-uuid", nil, false)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(raw, &body))
	s.Equal("bad_request", body["error"])
}

func (s *HandlerSuite) TestUpdateUser() {
	created := s.createUser("jane.doe@example.com", "123456")

	resp, raw := s.do(http.MethodPatch, fmt.Sprintf("/users/%s", created["id"]), map[string]any{
		"first_name": "Janet",
	}, true)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(raw))

	var body map[string]any
	s.Require().NoError(json.Unmarshal(raw, &body))
	s.Equal("Janet", body["first_name"])
	s.Equal("Doe", body["last_name"])
}

func (s *HandlerSuite) TestDeleteUser() {
	created := s.createUser("jane.doe@example.com", "123456")

	resp, _ := s.do(http.MethodDelete, fmt.Sprintf("/users/%s", created["id"]), nil, true)
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, fmt.Sprintf("/users/%s", created["id"]), nil, false)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestResetPassword() {
	created := s.createUser("jane.doe@example.com", "123456")
	path := fmt.Sprintf("/users/%s/password-reset", created["id"])

	s.Run("weak password reports failed rules", func() {
		resp, raw := s.do(http.MethodPost, path, map[string]any{"password": "weak"}, true)
		s.Require().Equal(http.StatusBadRequest, resp.StatusCode)

		var body map[string]any
		s.Require().NoError(json.Unmarshal(raw, &body))
		s.Equal("validation", body["error"])
		s.Contains(body["failed_rules"], "min_length")
	})

	s.Run("valid password succeeds with the token subject as actor", func() {
		resp, raw := s.do(http.MethodPost, path, map[string]any{"password": "Core@123"}, true)
		s.Require().Equal(http.StatusOK, resp.StatusCode, string(raw))

		var body map[string]any
		s.Require().NoError(json.Unmarshal(raw, &body))
		s.Equal("success", body["status"])
		s.Equal("admin@test", body["actor"])
	})

	s.Run("immediate reuse is a conflict", func() {
		resp, raw := s.do(http.MethodPost, path, map[string]any{"password": "Core@123"}, true)
		s.Require().Equal(http.StatusConflict, resp.StatusCode)

		var body map[string]any
		s.Require().NoError(json.Unmarshal(raw, &body))
		s.Equal("conflict", body["error"])
	})
}

func (s *HandlerSuite) TestHealthz() {
	resp, raw := s.do(http.MethodGet, "/healthz", nil, false)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(raw), `"store":"ok"`)

	s.healthy = false
	resp, raw = s.do(http.MethodGet, "/healthz", nil, false)
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	s.Contains(string(raw), `"store":"unreachable"`)
}
