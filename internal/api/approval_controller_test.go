package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/erp-approval/internal/api"
	"github.com/mautops/erp-approval/internal/auth"
	"github.com/mautops/erp-approval/internal/config"
	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/identity"
	"github.com/mautops/erp-approval/internal/repository"
	"github.com/mautops/erp-approval/internal/service"
	"github.com/mautops/erp-approval/internal/workflow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestRouter 基于内存仓储和 header 认证的完整路由
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Default()
	table, err := workflow.NewLevelTable(cfg.Approval)
	require.NoError(t, err)

	directory := identity.NewStaticDirectory(
		identity.User{ID: "rep-1", Name: "Rita Rep", Role: "medical_rep", ManagerID: "mgr-1"},
		identity.User{ID: "mgr-1", Name: "Mona Manager", Role: "manager"},
		identity.User{ID: "acct-1", Name: "Ada Accountant", Role: "accountant"},
	)
	engine := workflow.NewEngine(
		repository.NewMemoryApprovalRepository(),
		workflow.NewLevelTableHolder(table),
		directory,
		workflow.WithLogger(logger),
	)
	svc := service.NewApprovalService(engine, workflow.NewEnricher(directory, logger), nil, nil, logger)

	return api.SetupRouter(api.RouterOptions{
		Config:    cfg,
		Logger:    logger,
		Approvals: api.NewApprovalController(svc),
		Identity:  auth.HeaderAuthMiddleware(cfg.Auth.UserHeader, cfg.Auth.RoleHeader),
	})
}

func do(r *gin.Engine, method, path string, actor domain.Actor, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor.UserID != "" {
		req.Header.Set("X-User-ID", actor.UserID)
		req.Header.Set("X-User-Role", actor.Role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var (
	rep        = domain.Actor{UserID: "rep-1", Role: "medical_rep"}
	mgr        = domain.Actor{UserID: "mgr-1", Role: "manager"}
	acct       = domain.Actor{UserID: "acct-1", Role: "accountant"}
	generalMgr = domain.Actor{UserID: "gm-1", Role: "gm"}
)

func createRequest(t *testing.T, r *gin.Engine, actor domain.Actor) service.CreateApprovalResponse {
	t.Helper()
	w := do(r, http.MethodPost, "/api/v1/approvals/request", actor, map[string]interface{}{
		"type":        "order",
		"entity_id":   "order-1001",
		"entity_data": map[string]interface{}{"amount": 1000},
		"notes":       "please review",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created service.CreateApprovalResponse
	decodeData(t, w, &created)
	return created
}

// TestApprovalAPI_CreateAndApprove 测试创建请求并完成全部审批
func TestApprovalAPI_CreateAndApprove(t *testing.T) {
	r := setupTestRouter(t)

	created := createRequest(t, r, rep)
	assert.NotEmpty(t, created.RequestID)
	assert.Equal(t, []int{3, 4, 3, 3}, created.RequiredLevels)
	assert.Equal(t, 3, created.CurrentLevel)
	assert.Equal(t, domain.StatusPending, created.Status)

	path := "/api/v1/approvals/" + created.RequestID + "/action"
	steps := []struct {
		actor domain.Actor
		level int
	}{
		{mgr, 4}, {acct, 3}, {mgr, 3},
	}
	for _, step := range steps {
		w := do(r, http.MethodPost, path, step.actor, service.ActionRequest{Action: "approve"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp service.ActionResponse
		decodeData(t, w, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, domain.StatusPending, resp.Status)
		assert.Equal(t, step.level, resp.CurrentLevel)
	}

	w := do(r, http.MethodPost, path, generalMgr, service.ActionRequest{Action: "approve", Notes: "override"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp service.ActionResponse
	decodeData(t, w, &resp)
	assert.Equal(t, domain.StatusApproved, resp.Status)
	assert.True(t, resp.Override)

	w = do(r, http.MethodPost, path, mgr, service.ActionRequest{Action: "reject"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, "/api/v1/approvals/"+created.RequestID, rep, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		RequesterName string `json:"requester_name"`
		Approvals     []struct {
			Step         int    `json:"step"`
			ApproverName string `json:"approver_name"`
			Override     bool   `json:"override"`
		} `json:"approvals"`
	}
	decodeData(t, w, &detail)
	assert.Equal(t, "approved", detail.Status)
	assert.Equal(t, "Rita Rep", detail.RequesterName)
	require.Len(t, detail.Approvals, 4)
	assert.Equal(t, "Mona Manager", detail.Approvals[0].ApproverName)
	assert.Equal(t, workflow.UnknownUserName, detail.Approvals[3].ApproverName)
	assert.True(t, detail.Approvals[3].Override)
}

// TestApprovalAPI_ErrorMapping 测试领域错误到 HTTP 状态码的映射
func TestApprovalAPI_ErrorMapping(t *testing.T) {
	r := setupTestRouter(t)
	created := createRequest(t, r, rep)
	action := "/api/v1/approvals/" + created.RequestID + "/action"

	tests := []struct {
		name   string
		method string
		path   string
		actor  domain.Actor
		body   interface{}
		status int
	}{
		{"missing identity", http.MethodGet, "/api/v1/approvals/pending", domain.Actor{}, nil, http.StatusUnauthorized},
		{"unknown role", http.MethodPost, "/api/v1/approvals/request", domain.Actor{UserID: "i-1", Role: "intern"},
			map[string]string{"type": "order", "entity_id": "o-1"}, http.StatusUnprocessableEntity},
		{"missing type", http.MethodPost, "/api/v1/approvals/request", rep,
			map[string]string{"entity_id": "o-1"}, http.StatusBadRequest},
		{"invalid action", http.MethodPost, action, mgr, service.ActionRequest{Action: "escalate"}, http.StatusBadRequest},
		{"wrong level", http.MethodPost, action, acct, service.ActionRequest{Action: "approve"}, http.StatusForbidden},
		{"requester cannot approve", http.MethodPost, action, rep, service.ActionRequest{Action: "approve"}, http.StatusForbidden},
		{"missing request", http.MethodPost, "/api/v1/approvals/missing/action", mgr, service.ActionRequest{Action: "approve"}, http.StatusNotFound},
		{"hidden request", http.MethodGet, "/api/v1/approvals/" + created.RequestID, acct, nil, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/v2/anything", mgr, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.actor, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.status, decodeError(t, w).Code)
		})
	}
}

// TestApprovalAPI_MalformedBody 测试无法解析的请求体
func TestApprovalAPI_MalformedBody(t *testing.T) {
	r := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/request", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", rep.UserID)
	req.Header.Set("X-User-Role", rep.Role)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestApprovalAPI_Lists 测试我的请求、待审批和历史列表
func TestApprovalAPI_Lists(t *testing.T) {
	r := setupTestRouter(t)
	created := createRequest(t, r, rep)

	var list []map[string]interface{}
	w := do(r, http.MethodGet, "/api/v1/approvals/my-requests", rep, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, created.RequestID, list[0]["id"])

	w = do(r, http.MethodGet, "/api/v1/approvals/pending", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &list)
	assert.Len(t, list, 1)

	w = do(r, http.MethodGet, "/api/v1/approvals/pending", acct, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &list)
	assert.Empty(t, list)

	// 医药代表没有可审批的层级, 待审批列表为空而不是错误
	w = do(r, http.MethodGet, "/api/v1/approvals/pending", rep, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	// mgr-1 是 rep-1 的直属上级
	w = do(r, http.MethodGet, "/api/v1/approvals/history", mgr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Rita Rep", list[0]["requester_name"])

	w = do(r, http.MethodGet, "/api/v1/approvals/history", acct, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &list)
	assert.Empty(t, list)
}

// TestApprovalAPI_Levels 测试查询层级表
func TestApprovalAPI_Levels(t *testing.T) {
	r := setupTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/approvals/levels", rep, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var levels config.ApprovalConfig
	decodeData(t, w, &levels)
	assert.Len(t, levels.Chains, 7)
	assert.Len(t, levels.Levels, 4)
	assert.Equal(t, []string{"admin", "gm"}, levels.OverrideRoles)
}

// TestHealthAndRequestID 测试健康检查和请求 ID
func TestHealthAndRequestID(t *testing.T) {
	r := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(api.RequestIDHeader, "req-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-abc", w.Header().Get(api.RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"database":"not configured"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "api_requests_total")
}

// TestSwaggerDoc 测试 Swagger 文档端点
func TestSwaggerDoc(t *testing.T) {
	r := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ERP Approval API")
	assert.Contains(t, w.Body.String(), "/approvals/{id}/action")
}
