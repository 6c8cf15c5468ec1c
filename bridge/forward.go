package bridge

import (
	"context"
	"fmt"
	"reflect"
)

// CallOption configures a single forwarded call.
type CallOption func(UserInfo)

// WithPath overrides the path the connection would compute for the call.
// The path may contain placeholders; the connection substitutes them with the object.
func WithPath(path string) CallOption {
	return func(u UserInfo) {
		if path != "" {
			u[URLOverrideKey] = path
		}
	}
}

// WithUserInfo merges extra metadata into the call's UserInfo.
func WithUserInfo(info UserInfo) CallOption {
	return func(u UserInfo) {
		for k, v := range info {
			u[k] = v
		}
	}
}

func userInfo(opts []CallOption) UserInfo {
	if len(opts) == 0 {
		return nil
	}
	u := UserInfo{}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Create creates obj through b and returns the stored object.
func Create[T Object](ctx context.Context, b Bridge, obj T, opts ...CallOption) (T, error) {
	result, err := b.Create(ctx, obj, userInfo(opts))
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](result)
}

// Reload refreshes obj from the backend.
func Reload[T Object](ctx context.Context, b Bridge, obj T, opts ...CallOption) (T, error) {
	result, err := b.Reload(ctx, obj, userInfo(opts))
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](result)
}

// Save updates obj on the backend and returns the stored object.
func Save[T Object](ctx context.Context, b Bridge, obj T, opts ...CallOption) (T, error) {
	result, err := b.Save(ctx, obj, userInfo(opts))
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](result)
}

// Delete deletes obj through b.
func Delete(ctx context.Context, b Bridge, obj Object, opts ...CallOption) error {
	return b.Delete(ctx, obj, userInfo(opts))
}

// FetchObjects fetches all objects of T's entity matching predicate.
// T names the entity through its zero value, so it must be a concrete type
// such as *Post; an interface type yields ErrUnknownEntity.
func FetchObjects[T Object](ctx context.Context, b Bridge, predicate *Predicate, opts ...CallOption) ([]T, error) {
	var zero T
	if any(zero) == nil {
		return nil, fmt.Errorf("%w: %s is an interface type, use a concrete object type", ErrUnknownEntity, reflect.TypeFor[T]())
	}
	results, err := b.FetchObjects(ctx, zero.EntityName(), predicate, userInfo(opts))
	if err != nil {
		return nil, err
	}
	return castAll[T](results)
}

// FetchObject fetches the first object of T's entity matching predicate.
// It returns ErrNotFound when nothing matches.
func FetchObject[T Object](ctx context.Context, b Bridge, predicate *Predicate, opts ...CallOption) (T, error) {
	objects, err := FetchObjects[T](ctx, b, predicate, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(objects) == 0 {
		var zero T
		return zero, fmt.Errorf("%w: %T matching %s", ErrNotFound, zero, predicate)
	}
	return objects[0], nil
}

func cast[T any](result any) (T, error) {
	v, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T, want %T", ErrUnexpectedResultType, result, zero)
	}
	return v, nil
}

func castAll[T any](results []Object) ([]T, error) {
	out := make([]T, 0, len(results))
	for _, r := range results {
		v, err := cast[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
