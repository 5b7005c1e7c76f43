package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - Matcher 错误：NOT_FOUND（无法解析标题，附带候选建议）
//   - Store/Artifact 错误：DATA_LOAD（模型缺失、损坏或指纹不匹配）
//   - Trainer 错误：CONFIGURATION（训练参数非法，训练期抛出）
//   - Filter 错误：VALIDATION（过滤参数非法，由调用方提示用户）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "DATA_LOAD"）
	Message string // 错误消息
	Module  string // 模块名称（如 "matcher", "store", "trainer"）

	// Suggestions 可选的近似候选（标题解析失败时返回给调用方）
	Suggestions []string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError 创建新的领域错误。
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// GetDomainError 获取 DomainError（支持 wrap 链），如果不是则返回 nil。
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 标题/资源无法解析
	ErrorCodeDataLoad      = "DATA_LOAD"      // 模型工件缺失、损坏或指纹不匹配
	ErrorCodeConfiguration = "CONFIGURATION"  // 训练参数非法（训练期错误，不应出现在查询期）
	ErrorCodeValidation    = "VALIDATION"     // 查询过滤参数非法
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore   = "store"   // 存储/工件模块
	ModuleMatcher = "matcher" // 标题解析模块
	ModuleTrainer = "trainer" // 离线训练模块
	ModuleService = "service" // 推理服务模块
	ModuleModel   = "model"   // 向量化/降维模块
	ModuleFilter  = "filter"  // 结果过滤模块
	ModuleDataset = "dataset" // 数据集加载模块
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND。
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsDataLoad 检查错误是否为 DATA_LOAD。
func IsDataLoad(err error) bool { return hasCode(err, ErrorCodeDataLoad) }

// IsConfiguration 检查错误是否为 CONFIGURATION。
func IsConfiguration(err error) bool { return hasCode(err, ErrorCodeConfiguration) }

// IsValidation 检查错误是否为 VALIDATION。
func IsValidation(err error) bool { return hasCode(err, ErrorCodeValidation) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED。
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }
