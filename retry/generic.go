package retry

import "context"

// DoWithResult 执行带返回值的函数并在失败时重试
func (r *Retryer) DoWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	var result any
	err := r.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = fn(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DoTyped 泛型版本，避免类型断言
func DoTyped[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
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
