package errcode

import "errors"

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（资源缺失、配额或频率限制）
// - 5xxx：系统错误（需要中断流程）
const (
	OK              = 0
	InvalidArgument = 4000
	ResourceMissing = 4004
	QuotaExceeded   = 4029
	RateLimited     = 4030
	SystemError     = 5000
)

// 哨兵错误：业务层用 errors.Is 区分错误类别，HTTP 层据此映射状态码。
var (
	// ErrNotFound 表示被引用的 Resume/ResumeDetail/GuestSession 不存在。
	ErrNotFound = errors.New("resource not found")

	// ErrQuotaExceeded 表示访客会话的简历配额已用尽（提示注册升级）。
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrRateLimited 表示来源 IP 的会话/简历创建频率超限。
	// 与 ErrQuotaExceeded 区分，前端提示语不同。
	ErrRateLimited = errors.New("rate limited")

	// ErrDependencyFailure 表示缩略图生成或翻译等外部能力失败。
	// 事务内发生时先回滚再向上传播。
	ErrDependencyFailure = errors.New("dependency failure")
)

// CodeOf 将哨兵错误映射为错误码，未识别的错误按系统错误处理。
func CodeOf(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrNotFound):
		return ResourceMissing
	case errors.Is(err, ErrQuotaExceeded):
		return QuotaExceeded
	case errors.Is(err, ErrRateLimited):
		return RateLimited
	default:
		return SystemError
	}
}
