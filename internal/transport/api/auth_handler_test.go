package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/logger"
	"github.com/fsdevblog/p2p-wallet/internal/service"
	"github.com/fsdevblog/p2p-wallet/internal/service/tokens"
	"github.com/fsdevblog/p2p-wallet/internal/transport/api/mocks"
	"github.com/fsdevblog/p2p-wallet/internal/transport/api/testutils"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type AuthHandlerTestSuite struct {
	suite.Suite
	mockCtrl        *gomock.Controller
	router          *gin.Engine
	mockUserService *mocks.MockUserServicer
	jwtSecret       []byte
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerTestSuite))
}

func (s *AuthHandlerTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUserService = mocks.NewMockUserServicer(s.mockCtrl)
	s.jwtSecret = []byte("super secret key")

	var err error
	s.router, err = New(RouterArgs{
		Logger:       logger.New(io.Discard),
		UserService:  s.mockUserService,
		JWTSecretKey: s.jwtSecret,
	})
	s.Require().NoError(err)
}

func (s *AuthHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func (s *AuthHandlerTestSuite) request(route string, payload any, token string) *http.Response {
	body, marshalErr := json.Marshal(payload)
	s.Require().NoError(marshalErr)

	res, err := testutils.MakeRequest(testutils.RequestArgs{
		Router: s.router,
		Method: http.MethodPost,
		URL:    RouteGroup + route,
		Body:   bytes.NewReader(body),
	}, testutils.WithHeader("Content-Type", "application/json"), testutils.WithBearer(token))
	s.Require().NoError(err)
	return res
}

func (s *AuthHandlerTestSuite) TestRegister() {
	validParams := UserRegisterParams{Username: gofakeit.LetterN(10), Password: gofakeit.Password(true, true, true, false, false, 12)}
	duplicateParams := UserRegisterParams{Username: "duplicate", Password: "password"}

	s.mockUserService.EXPECT().
		Register(gomock.Any(), service.RegisterUserArgs{Username: validParams.Username, Password: validParams.Password}).
		Return(&domain.Account{ID: 1, Username: validParams.Username}, "jwt-token", nil)
	s.mockUserService.EXPECT().
		Register(gomock.Any(), service.RegisterUserArgs{Username: duplicateParams.Username, Password: duplicateParams.Password}).
		Return(nil, "", fmt.Errorf("registering user: %w", domain.ErrDuplicateKey))

	authorized, tokenErr := tokens.GenerateUserJWT(1, time.Hour, s.jwtSecret)
	s.Require().NoError(tokenErr)

	cases := []struct {
		name       string
		params     UserRegisterParams
		token      string
		wantStatus int
		wantHeader string
	}{
		{name: "ok", params: validParams, wantStatus: http.StatusOK, wantHeader: "Bearer jwt-token"},
		{name: "duplicate", params: duplicateParams, wantStatus: http.StatusConflict},
		{name: "short password", params: UserRegisterParams{Username: "user", Password: "123"},
			wantStatus: http.StatusUnprocessableEntity},
		// меньше 72 байт в рунах, но больше в байтах.
		{name: "password over bcrypt limit", params: UserRegisterParams{
			Username: "user",
			Password: testutils.GenerateOverBytesUnderRunes(20),
		}, wantStatus: http.StatusUnprocessableEntity},
		{name: "already authorized", params: validParams, token: authorized, wantStatus: http.StatusUnauthorized},
	}

	for _, c := range cases {
		s.Run(c.name, func() {
			res := s.request(RegisterRoute, c.params, c.token)
			defer func() {
				s.Require().NoError(res.Body.Close())
			}()
			s.Equal(c.wantStatus, res.StatusCode)
			s.Equal(c.wantHeader, res.Header.Get("Authorization"))
		})
	}
}

func (s *AuthHandlerTestSuite) TestLogin() {
	account := &domain.Account{ID: 5, Username: "alice", Balance: decimal.NewFromInt(1000)}

	s.mockUserService.EXPECT().
		Login(gomock.Any(), service.LoginUserArgs{Username: "alice", Password: "password"}).
		Return(account, "jwt-token", nil)
	s.mockUserService.EXPECT().
		Login(gomock.Any(), service.LoginUserArgs{Username: "alice", Password: "wrong-password"}).
		Return(nil, "", fmt.Errorf("login user: %w", domain.ErrPasswordMissMatch))
	s.mockUserService.EXPECT().
		Login(gomock.Any(), service.LoginUserArgs{Username: "bob", Password: "password"}).
		Return(nil, "", fmt.Errorf("login user: %w", domain.ErrRecordNotFound))

	cases := []struct {
		name       string
		params     UserLoginParams
		wantStatus int
	}{
		{name: "ok", params: UserLoginParams{Username: "alice", Password: "password"}, wantStatus: http.StatusOK},
		{name: "wrong password", params: UserLoginParams{Username: "alice", Password: "wrong-password"},
			wantStatus: http.StatusUnauthorized},
		{name: "unknown user", params: UserLoginParams{Username: "bob", Password: "password"},
			wantStatus: http.StatusUnauthorized},
	}

	for _, c := range cases {
		s.Run(c.name, func() {
			res := s.request(LoginRoute, c.params, "")
			defer func() {
				s.Require().NoError(res.Body.Close())
			}()
			s.Require().Equal(c.wantStatus, res.StatusCode)

			if c.wantStatus == http.StatusOK {
				s.Equal("Bearer jwt-token", res.Header.Get("Authorization"))
				data, err := io.ReadAll(res.Body)
				s.Require().NoError(err)
				s.True(strings.Contains(string(data), `"balance":"1000.00"`))
			}
		})
	}
}
