package errno

import (
	"errors"
	"fmt"
)

const (
	SuccessCode            int64 = 0
	ServiceErrCode         int64 = 10001
	ParamErrCode           int64 = 10002
	NotFoundErrCode        int64 = 10003
	PermissionErrCode      int64 = 10004
	ModerationRejectedCode int64 = 10005
	TransientStoreErrCode  int64 = 10006
	EventDeliveryErrCode   int64 = 10007
	ConcurrencyAnomalyCode int64 = 10008
	RateLimitErrCode       int64 = 10009
	MysqlErrCode           int64 = 10010
	RedisErrCode           int64 = 10011
)

type ErrNo struct {
	ErrCode int64
	ErrMsg  string
}

func (e ErrNo) Error() string {
	return fmt.Sprintf("err_code=%d, err_msg=%s", e.ErrCode, e.ErrMsg)
}

func NewErrNo(code int64, msg string) ErrNo {
	return ErrNo{code, msg}
}

func (e ErrNo) WithMessage(msg string) ErrNo {
	e.ErrMsg = msg
	return e
}

var (
	Success            = NewErrNo(SuccessCode, "Success")
	ServiceErr         = NewErrNo(ServiceErrCode, "Service is unable to start successfully")
	ParamErr           = NewErrNo(ParamErrCode, "Wrong Parameter has been given")
	NotFoundErr        = NewErrNo(NotFoundErrCode, "Resource not found")
	PermissionErr      = NewErrNo(PermissionErrCode, "No permission to operate this resource")
	ModerationRejected = NewErrNo(ModerationRejectedCode, "Content rejected by moderation")
	TransientStoreErr  = NewErrNo(TransientStoreErrCode, "Temporary storage failure, please retry")
	EventDeliveryErr   = NewErrNo(EventDeliveryErrCode, "Event delivery failed")
	ConcurrencyAnomaly = NewErrNo(ConcurrencyAnomalyCode, "Concurrent modification detected")
	RateLimitErr       = NewErrNo(RateLimitErrCode, "Operation too frequent, please slow down")
	MysqlErr           = NewErrNo(MysqlErrCode, "Mysql operation failed")
	RedisErr           = NewErrNo(RedisErrCode, "Redis operation failed")
)

// ConvertErr 将任意error转换为ErrNo，保留已是ErrNo的错误码
func ConvertErr(err error) ErrNo {
	Err := ErrNo{}
	if errors.As(err, &Err) {
		return Err
	}
	s := ServiceErr
	s.ErrMsg = err.Error()
	return s
}
