package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// エラーコード（レスポンスの "code"）
const (
	CodeValidation            = "VALIDATION"
	CodeCartEmpty             = "CART_EMPTY"
	CodeInvalidQuantity       = "INVALID_QUANTITY"
	CodeTemplateUnavailable   = "TEMPLATE_UNAVAILABLE"
	CodeQuantityLimitExceeded = "QUANTITY_LIMIT_EXCEEDED"
	CodeGatewayUnavailable    = "GATEWAY_UNAVAILABLE"
	CodeGatewayRejected       = "GATEWAY_REJECTED"
	CodeForgedNotification    = "FORGED_NOTIFICATION"
	CodeInvalidState          = "INVALID_STATE"
	CodeForbidden             = "FORBIDDEN"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInternal              = "INTERNAL"
)

// HTTPError はusecaseが返す唯一のエラー型。errors.Is はCodeで比較する
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %s: %v", e.Status, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

func (e *HTTPError) Is(target error) bool {
	t, ok := target.(*HTTPError)
	return ok && t.Code == e.Code
}

func NewHTTPError(status int, code, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// errors.Is の比較用
var (
	ErrValidation            = &HTTPError{Status: http.StatusBadRequest, Code: CodeValidation, Message: "invalid request"}
	ErrCartEmpty             = &HTTPError{Status: http.StatusBadRequest, Code: CodeCartEmpty, Message: "cart is empty"}
	ErrInvalidQuantity       = &HTTPError{Status: http.StatusBadRequest, Code: CodeInvalidQuantity, Message: "quantity must be >= 1"}
	ErrTemplateUnavailable   = &HTTPError{Status: http.StatusBadRequest, Code: CodeTemplateUnavailable, Message: "template is not available"}
	ErrQuantityLimitExceeded = &HTTPError{Status: http.StatusUnprocessableEntity, Code: CodeQuantityLimitExceeded, Message: "quantity limit exceeded"}
	ErrGatewayUnavailable    = &HTTPError{Status: http.StatusServiceUnavailable, Code: CodeGatewayUnavailable, Message: "payment gateway unavailable, retry later"}
	ErrGatewayRejected       = &HTTPError{Status: http.StatusBadGateway, Code: CodeGatewayRejected, Message: "payment gateway rejected the request"}
	ErrForgedNotification    = &HTTPError{Status: http.StatusBadRequest, Code: CodeForgedNotification, Message: "invalid signature"}
	ErrInvalidState          = &HTTPError{Status: http.StatusConflict, Code: CodeInvalidState, Message: "invalid state"}
	ErrForbidden             = &HTTPError{Status: http.StatusForbidden, Code: CodeForbidden, Message: "forbidden"}
	ErrNotFound              = &HTTPError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized          = &HTTPError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "unauthorized"}
	ErrInternal              = &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error"}
)

// withMessage は基準エラーをコピーしてメッセージ・原因を差し替える
func withMessage(base *HTTPError, message string, cause error) error {
	e := *base
	if message != "" {
		e.Message = message
	}
	e.Err = cause
	return &e
}

// DBなどの想定外エラー。原因はログ用に保持する
func internal(cause error) error {
	return withMessage(ErrInternal, "", cause)
}
