// internal/types/failure/errors.go
package failure

import (
	"errors"
	"fmt"
)

// Kind - категория ошибки мониторинга
type Kind string

const (
	KindFetch         Kind = "fetch_failure"
	KindParse         Kind = "parse_failure"
	KindStorage       Kind = "storage_failure"
	KindDispatch      Kind = "dispatch_failure"
	KindConfiguration Kind = "configuration_error"
)

// Сентинелы для errors.Is
var (
	ErrFetch         = &Error{Kind: KindFetch}
	ErrParse         = &Error{Kind: KindParse}
	ErrStorage       = &Error{Kind: KindStorage}
	ErrDispatch      = &Error{Kind: KindDispatch}
	ErrConfiguration = &Error{Kind: KindConfiguration}
)

// Error - типизированная ошибка с операцией и причиной
type Error struct {
	Kind  Kind
	Op    string
	Err   error
	Fatal bool // только для storage: соединение потеряно, цикл прерывается
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает только по Kind, чтобы errors.Is(err, ErrStorage) работал
// для любой ошибки хранилища
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

func Fetch(op string, err error) *Error {
	return &Error{Kind: KindFetch, Op: op, Err: err}
}

func Parse(op string, err error) *Error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// FatalStorage - ошибка уровня соединения с хранилищем
func FatalStorage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Err: err, Fatal: true}
}

func Dispatch(op string, err error) *Error {
	return &Error{Kind: KindDispatch, Op: op, Err: err}
}

func Configuration(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// IsFatal сообщает, что ошибка требует прервать цикл
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal
	}
	return false
}

// KindOf возвращает категорию ошибки или пустую строку
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
