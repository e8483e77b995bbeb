package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mautops/erp-approval/internal/auth"
	"github.com/mautops/erp-approval/internal/domain"
	"github.com/mautops/erp-approval/internal/service"
)

// ApprovalController 审批控制器
type ApprovalController struct {
	approvalService service.ApprovalService
}

// NewApprovalController 创建审批控制器
func NewApprovalController(approvalService service.ApprovalService) *ApprovalController {
	return &ApprovalController{
		approvalService: approvalService,
	}
}

// actor 读取当前操作人, 缺失时写入 401
func (c *ApprovalController) actor(ctx *gin.Context) (domain.Actor, bool) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "unauthorized", "missing caller identity")
		return domain.Actor{}, false
	}
	return actor, true
}

// requestID 读取并校验路径中的请求 ID
func (c *ApprovalController) requestID(ctx *gin.Context) (string, bool) {
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" || len(id) > 64 {
		Error(ctx, http.StatusBadRequest, "invalid request ID", "request ID must be 1-64 characters")
		return "", false
	}
	return id, true
}

// Create 创建审批请求
// @Summary      创建审批请求
// @Description  根据发起人角色计算审批层级链并创建待审批请求
// @Tags         审批
// @Accept       json
// @Produce      json
// @Param        request body service.CreateApprovalRequest true "审批请求"
// @Success      201  {object}  Response{data=service.CreateApprovalResponse}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /approvals/request [post]
// @Security     BearerAuth
func (c *ApprovalController) Create(ctx *gin.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}

	var req service.CreateApprovalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	resp, err := c.approvalService.Create(ctx.Request.Context(), actor, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Created(ctx, resp)
}

// Act 审批或拒绝
// @Summary      审批或拒绝
// @Description  在当前层级审批或拒绝请求,拒绝立即终止审批链
// @Tags         审批
// @Accept       json
// @Produce      json
// @Param        id path string true "审批请求 ID"
// @Param        request body service.ActionRequest true "审批动作"
// @Success      200  {object}  Response{data=service.ActionResponse}
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /approvals/{id}/action [post]
// @Security     BearerAuth
func (c *ApprovalController) Act(ctx *gin.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}
	id, ok := c.requestID(ctx)
	if !ok {
		return
	}

	var req service.ActionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	resp, err := c.approvalService.Act(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, resp)
}

// Get 获取审批请求详情
// @Summary      获取审批请求详情
// @Description  仅返回调用方在历史或待审批视图中可见的请求
// @Tags         审批
// @Produce      json
// @Param        id path string true "审批请求 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /approvals/{id} [get]
// @Security     BearerAuth
func (c *ApprovalController) Get(ctx *gin.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}
	id, ok := c.requestID(ctx)
	if !ok {
		return
	}

	req, err := c.approvalService.Get(ctx.Request.Context(), actor, id)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, req)
}

// ListMine 我发起的请求
// @Summary      我发起的请求
// @Tags         审批
// @Produce      json
// @Success      200  {object}  Response
// @Router       /approvals/my-requests [get]
// @Security     BearerAuth
func (c *ApprovalController) ListMine(ctx *gin.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}

	list, err := c.approvalService.ListMine(ctx.Request.Context(), actor)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, list)
}

// ListPending 待我审批的请求
// @Summary      待我审批的请求
// @Description  全局视图角色返回全部待审批请求,其他角色只返回当前层级由其负责的请求
// @Tags         审批
// @Produce      json
// @Success      200  {object}  Response
// @Router       /approvals/pending [get]
// @Security     BearerAuth
func (c *ApprovalController) ListPending(ctx *gin.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}

	list, err := c.approvalService.ListPending(ctx.Request.Context(), actor)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, list)
}

// ListHistory 审批历史
// @Summary      审批历史
// @Description  返回调用方可见的请求,附带发起人和审批人姓名
// @Tags         审批
// @Produce      json
// @Success      200  {object}  Response
// @Router       /approvals/history [get]
// @Security     BearerAuth
func (c *ApprovalController) ListHistory(ctx *gin.Context) {
	actor, ok := c.actor(ctx)
	if !ok {
		return
	}

	list, err := c.approvalService.ListHistory(ctx.Request.Context(), actor)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, list)
}

// Levels 当前生效的审批层级表
// @Summary      审批层级表
// @Tags         审批
// @Produce      json
// @Success      200  {object}  Response
// @Router       /approvals/levels [get]
// @Security     BearerAuth
func (c *ApprovalController) Levels(ctx *gin.Context) {
	Success(ctx, c.approvalService.Levels())
}
