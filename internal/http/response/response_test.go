package response

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return resp
}

func TestGatewayRejectedCarriesResultAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-502")

	GatewayRejected(c, "ORDERPAID", map[string]string{"err_code": "ORDERPAID"})

	resp := decodeResponse(t, w)
	if int(resp["status_code"].(float64)) != CodeBadGateway {
		t.Fatalf("status_code want %d got %v", CodeBadGateway, resp["status_code"])
	}
	data := resp["data"].(map[string]interface{})
	if data["request_id"] != "req-502" {
		t.Fatalf("request id missing: %v", data)
	}
	if result := data["result"].(map[string]interface{}); result["err_code"] != "ORDERPAID" {
		t.Fatalf("gateway result missing: %v", data)
	}
}

func TestErrorWithoutRequestIDHasNullData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Unauthorized(c, "未登录")

	resp := decodeResponse(t, w)
	if w.Code != 200 || int(resp["status_code"].(float64)) != CodeUnauthorized {
		t.Fatalf("unexpected response: %d %v", w.Code, resp)
	}
	if resp["data"] != nil {
		t.Fatalf("data should be null without request id, got %v", resp["data"])
	}
}

func TestAppErrorUpstream(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	upstream := NewAppError(CodeBadGateway, "支付网关请求失败", cause)
	if !upstream.Upstream() || !errors.Is(upstream, cause) {
		t.Fatalf("bad gateway error should be upstream and wrap its cause")
	}
	if upstream.Error() != "502 支付网关请求失败: dial tcp: timeout" {
		t.Fatalf("unexpected message %q", upstream.Error())
	}
	local := NewAppError(CodeServiceUnavailable, "未配置商户证书", nil)
	if local.Upstream() || local.Error() != "503 未配置商户证书" {
		t.Fatalf("unexpected local error %q upstream=%v", local.Error(), local.Upstream())
	}
}
