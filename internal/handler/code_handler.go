package handler

import (
	"analytics-ai/internal/dto"
	"analytics-ai/internal/service"
	"analytics-ai/internal/utils"

	"github.com/gin-gonic/gin"
)

// CodeHandler serves code generation and execution. Pipeline failures are
// reported in the body with status 200.
type CodeHandler struct {
	codeService *service.CodeService
}

// NewCodeHandler creates a CodeHandler.
func NewCodeHandler(codeService *service.CodeService) *CodeHandler {
	return &CodeHandler{codeService: codeService}
}

// GenerateCode asks the model for code answering a question.
// @Summary Generate code
// @Tags code
// @Accept json
// @Produce json
// @Param request body dto.GenerateCodeRequest true "question"
// @Success 200 {object} dto.GenerateCodeResponse
// @Router /api/code/generate-code [post]
func (h *CodeHandler) GenerateCode(c *gin.Context) {
	var req dto.GenerateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	utils.SuccessResponse(c, h.codeService.Generate(c.Request.Context(), &req))
}

// ExecuteCode runs code and returns the result as an HTML table.
// @Summary Execute code
// @Tags code
// @Accept json
// @Produce json
// @Param request body dto.ExecuteCodeRequest true "code"
// @Success 200 {object} dto.ExecuteCodeResponse
// @Router /api/code/execute [post]
func (h *CodeHandler) ExecuteCode(c *gin.Context) {
	var req dto.ExecuteCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	utils.SuccessResponse(c, h.codeService.Execute(c.Request.Context(), &req))
}
