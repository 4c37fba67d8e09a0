package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cosmossdk.io/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

type APITestSuite struct {
	suite.Suite

	session *session
	router  http.Handler
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	v := viper.New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addParamsFlags(flags)
	addSessionFlags(flags)
	s.Require().NoError(initConfig(v, flags))

	var err error
	s.session, err = newSession(v, log.NewNopLogger())
	s.Require().NoError(err)
	s.router = newRouter(s.session)
}

func (s *APITestSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *APITestSuite) decode(rec *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v))
}

func (s *APITestSuite) start(coins string) uint64 {
	rec := s.do(http.MethodPost, "/api/v1/workflows", StartRequest{Task: taskBuyBack, Coins: coins, OutDenom: "upaw"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp startResponse
	s.decode(rec, &resp)
	return resp.ID
}

func (s *APITestSuite) TestStartAndRunToCompletion() {
	id := s.start("1000uatom,2000uosmo")
	s.Require().Equal(uint64(1), id)

	rec := s.do(http.MethodGet, "/api/v1/workflows/1", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var info types.WorkflowInfo
	s.decode(rec, &info)
	s.Require().Equal("buy-back/upaw", info.Label)
	s.Require().False(info.Terminal)

	rec = s.do(http.MethodPost, "/api/v1/blocks?count=100", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var blocks blocksResponse
	s.decode(rec, &blocks)
	s.Require().Positive(blocks.Relayed)
	s.Require().Zero(blocks.Failed)
	s.Require().Equal(int64(101), blocks.Height)

	rec = s.do(http.MethodGet, "/api/v1/workflows/1", nil)
	s.decode(rec, &info)
	s.Require().True(info.Terminal)
	s.Require().Equal("done", info.Stage)
}

func (s *APITestSuite) TestListWorkflowsPaginates() {
	s.start("1000uatom")
	s.start("2000uosmo")
	s.start("10uatom")

	rec := s.do(http.MethodGet, "/api/v1/workflows?limit=2", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var page workflowsResponse
	s.decode(rec, &page)
	s.Require().Len(page.Workflows, 2)
	s.Require().NotNil(page.Pagination)
	s.Require().NotEmpty(page.Pagination.NextKey)

	next := base64.StdEncoding.EncodeToString(page.Pagination.NextKey)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	q := req.URL.Query()
	q.Set("key", next)
	req.URL.RawQuery = q.Encode()
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &page)
	s.Require().Len(page.Workflows, 1)
	s.Require().Equal(uint64(3), page.Workflows[0].ID)
}

func (s *APITestSuite) TestGetWorkflowErrors() {
	rec := s.do(http.MethodGet, "/api/v1/workflows/9", nil)
	s.Require().Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/workflows/0", nil)
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/workflows/abc", nil)
	s.Require().Equal(http.StatusNotFound, rec.Code)
}

func (s *APITestSuite) TestStartRejectsBadRequests() {
	rec := s.do(http.MethodPost, "/api/v1/workflows", StartRequest{Task: "lend", Coins: "10uatom", OutDenom: "upaw"})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Require().Contains(rec.Body.String(), `unknown task`)

	rec = s.do(http.MethodPost, "/api/v1/workflows", StartRequest{Task: taskBuyBack, Coins: "ten atoms", OutDenom: "upaw"})
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows", bytes.NewBufferString("{"))
	out := httptest.NewRecorder()
	s.router.ServeHTTP(out, req)
	s.Require().Equal(http.StatusBadRequest, out.Code)
}

func (s *APITestSuite) TestBlocksRejectsBadCount() {
	for _, count := range []string{"0", "-1", "x", "1001"} {
		rec := s.do(http.MethodPost, "/api/v1/blocks?count="+count, nil)
		s.Require().Equal(http.StatusBadRequest, rec.Code, count)
	}
}

func (s *APITestSuite) TestParamsAndAlarms() {
	rec := s.do(http.MethodGet, "/api/v1/params", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var params types.Params
	s.decode(rec, &params)
	s.Require().Equal(types.DefaultParams().RetryDelay, params.RetryDelay)

	rec = s.do(http.MethodGet, "/api/v1/alarms?limit=5", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().JSONEq(`{"alarms":[]}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/alarms?limit=-2", nil)
	s.Require().Equal(http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/api/v1/health", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().JSONEq(`{"status":"ok"}`, rec.Body.String())
}
