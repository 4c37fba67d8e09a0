package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cosmos/cosmos-sdk/types/query"
	"github.com/gorilla/mux"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/paw-chain/dexflow/x/dexflow/simulation"
	"github.com/paw-chain/dexflow/x/dexflow/types"
)

const maxBlocksPerRequest = 1000

// StartRequest starts a workflow funded by the simulated funder.
type StartRequest struct {
	Task     string `json:"task"`
	Coins    string `json:"coins"`
	OutDenom string `json:"out_denom"`
}

type startResponse struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

type workflowsResponse struct {
	Workflows  []types.WorkflowInfo `json:"workflows"`
	Pagination *query.PageResponse  `json:"pagination,omitempty"`
}

type blocksResponse struct {
	Height  int64  `json:"height"`
	Time    string `json:"time"`
	Relayed int    `json:"relayed"`
	Failed  int    `json:"failed_callbacks"`
}

type apiHandler struct {
	session *session
}

func newRouter(s *session) *mux.Router {
	h := &apiHandler{session: s}
	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/workflows", h.handleListWorkflows).Methods(http.MethodGet)
	v1.HandleFunc("/workflows", h.handleStartWorkflow).Methods(http.MethodPost)
	v1.HandleFunc("/workflows/{id:[0-9]+}", h.handleGetWorkflow).Methods(http.MethodGet)
	v1.HandleFunc("/alarms", h.handleAlarms).Methods(http.MethodGet)
	v1.HandleFunc("/params", h.handleParams).Methods(http.MethodGet)
	v1.HandleFunc("/blocks", h.handleBlocks).Methods(http.MethodPost)
	v1.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	return r
}

func (h *apiHandler) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	pageReq := &query.PageRequest{}
	q := r.URL.Query()
	if key := q.Get("key"); key != "" {
		raw, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("key: %w", err))
			return
		}
		pageReq.Key = raw
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.ParseUint(limit, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit: %w", err))
			return
		}
		pageReq.Limit = n
	}

	var resp workflowsResponse
	err := h.session.view(func(chain *simulation.Chain) error {
		infos, pageRes, err := chain.Keeper.Workflows(chain.Ctx, pageReq)
		resp = workflowsResponse{Workflows: infos, Pagination: pageRes}
		return err
	})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	if resp.Workflows == nil {
		resp.Workflows = []types.WorkflowInfo{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandler) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var info types.WorkflowInfo
	err = h.session.view(func(chain *simulation.Chain) error {
		info, err = chain.Keeper.Workflow(chain.Ctx, id)
		return err
	})
	if err != nil {
		writeGRPCError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *apiHandler) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	coins, err := parseCoins(req.Coins)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("coins: %w", err))
		return
	}
	id, task, err := h.session.start(req.Task, coins, req.OutDenom)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{ID: id, Label: task.Label()})
}

func (h *apiHandler) handleAlarms(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		limit = n
	}
	var alarms []types.AlarmRecord
	_ = h.session.view(func(chain *simulation.Chain) error {
		alarms = chain.Keeper.PendingAlarms(chain.Ctx, limit)
		return nil
	})
	if alarms == nil {
		alarms = []types.AlarmRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alarms": alarms})
}

func (h *apiHandler) handleParams(w http.ResponseWriter, _ *http.Request) {
	var params types.Params
	_ = h.session.view(func(chain *simulation.Chain) error {
		params = chain.Keeper.GetParams(chain.Ctx)
		return nil
	})
	writeJSON(w, http.StatusOK, params)
}

// handleBlocks relays and produces count blocks, one by default.
func (h *apiHandler) handleBlocks(w http.ResponseWriter, r *http.Request) {
	count := 1
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxBlocksPerRequest {
			writeError(w, http.StatusBadRequest, fmt.Errorf("count must be between 1 and %d", maxBlocksPerRequest))
			return
		}
		count = n
	}

	var resp blocksResponse
	for i := 0; i < count; i++ {
		relayed, err := h.session.step()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Relayed += len(relayed)
		for _, rel := range relayed {
			if rel.Err != nil {
				resp.Failed++
			}
		}
	}
	_ = h.session.view(func(chain *simulation.Chain) error {
		resp.Height = chain.Ctx.BlockHeight()
		resp.Time = chain.Ctx.BlockTime().Format("2006-01-02T15:04:05Z07:00")
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeGRPCError maps keeper query errors onto HTTP status codes.
func writeGRPCError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch status.Code(err) {
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.NotFound:
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]string{"error": status.Convert(err).Message()})
}
