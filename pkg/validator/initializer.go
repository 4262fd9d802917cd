package validator

// ObjectInitializer 验证前对目标对象做准备工作（如填充派生字段）
type ObjectInitializer interface {
	Initialize(obj any)
}

// ObjectInitializerFunc 函数形式的对象初始化器
type ObjectInitializerFunc func(obj any)

// Initialize 实现 ObjectInitializer
func (f ObjectInitializerFunc) Initialize(obj any) {
	f(obj)
}
