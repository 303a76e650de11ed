package http_utils

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type BaseResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type DataResponse struct {
	BaseResponse
	Data interface{} `json:"data"`
}

type ValidationErrorResponse struct {
	BaseResponse
	Errors []string `json:"errors"`
}

func NewBaseResponse(success bool, msg string) BaseResponse {
	status := StatusError
	if success {
		status = StatusSuccess
	}
	return BaseResponse{
		Status:  status,
		Message: msg,
	}
}

func NewDataResponse(msg string, data interface{}) DataResponse {
	return DataResponse{
		BaseResponse: NewBaseResponse(true, msg),
		Data:         data,
	}
}

func NewValidationErrorResponse(errs []string) ValidationErrorResponse {
	return ValidationErrorResponse{
		BaseResponse: NewBaseResponse(false, "invalid body, validation failed"),
		Errors:       errs,
	}
}
