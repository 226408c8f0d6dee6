package dto

import "analytics-ai/internal/codegen"

// GenerateCodeRequest is the body of POST /api/code/generate-code.
type GenerateCodeRequest struct {
	Question      string                 `json:"question" binding:"required"`
	Language      string                 `json:"language" binding:"required,oneof=python sql"`
	SelectedFiles []codegen.SelectedFile `json:"selected_files" binding:"dive"`
}

// GenerateCodeResponse carries generated code. Fallback marks code that only
// reports a model failure.
type GenerateCodeResponse struct {
	Code     string `json:"code"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// ExecuteCodeRequest is the body of POST /api/code/execute.
type ExecuteCodeRequest struct {
	Code          string                 `json:"code" binding:"required"`
	Language      string                 `json:"language" binding:"required,oneof=python sql"`
	SelectedFiles []codegen.SelectedFile `json:"selected_files" binding:"dive"`
}

// ExecuteCodeResponse carries the rendered table or a classified failure.
type ExecuteCodeResponse struct {
	Success   bool   `json:"success"`
	TableHTML string `json:"table_html,omitempty"`
	Error     string `json:"error,omitempty"`
	Cause     string `json:"cause,omitempty"`
	Warning   string `json:"warning,omitempty"`
}
