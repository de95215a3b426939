package circuitbreaker

import "context"

// CallWithResult 执行带返回值的调用
func (b *Breaker) CallWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	var result any
	err := b.Call(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = fn(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CallTyped 泛型版本，避免类型断言
func CallTyped[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := b.Call(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = fn(ctx)
		return callErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
