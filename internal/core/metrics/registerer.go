package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterCollectors 注册收集器，忽略重复注册
//
// 同一进程中多次构建应用（例如测试）会重复注册同一收集器，这不是错误。
// 其他注册错误说明指标定义有冲突，直接返回。
func RegisterCollectors(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// RegisterOrExisting 注册收集器；已注册过同样的收集器时返回已有的那个
//
// 用于按实例创建的 CounterVec 等：同一注册器上第二次创建时复用第一次的计数。
func RegisterOrExisting[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
