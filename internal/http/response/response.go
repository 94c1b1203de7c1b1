package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 管理端与下单入口的统一响应，HTTP 状态恒为 200，结果看 status_code
type Response struct {
	StatusCode int         `json:"status_code"`
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
}

// PageResponse 审计列表响应
type PageResponse struct {
	StatusCode int         `json:"status_code"`
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{StatusCode: CodeOK, Msg: "success", Data: data})
}

// SuccessWithPage 审计列表成功响应
func SuccessWithPage(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, PageResponse{
		StatusCode: CodeOK,
		Msg:        "success",
		Data:       data,
		Pagination: pagination,
	})
}

// Error 错误响应，data 只携带 request_id
func Error(c *gin.Context, statusCode int, msg string) {
	c.JSON(http.StatusOK, Response{
		StatusCode: statusCode,
		Msg:        msg,
		Data:       errorData(c, nil),
	})
}

// GatewayRejected 网关业务拒绝，原始结果放在 data.result 供排查 err_code
func GatewayRejected(c *gin.Context, msg string, result map[string]string) {
	c.JSON(http.StatusOK, Response{
		StatusCode: CodeBadGateway,
		Msg:        msg,
		Data:       errorData(c, gin.H{"result": result}),
	})
}

// Unauthorized 未登录或令牌失效
func Unauthorized(c *gin.Context, msg string) {
	Error(c, CodeUnauthorized, msg)
}

// Forbidden 角色无权访问
func Forbidden(c *gin.Context, msg string) {
	Error(c, CodeForbidden, msg)
}

func errorData(c *gin.Context, data gin.H) interface{} {
	requestID := ""
	if c != nil {
		requestID = c.GetString("request_id")
	}
	if requestID == "" {
		if data == nil {
			return nil
		}
		return data
	}
	if data == nil {
		data = gin.H{}
	}
	data["request_id"] = requestID
	return data
}
