package connector

import (
	"reflect"
	"sync"
)

type AccountsChangedHandler interface {
	AccountsChanged(accounts []string)
}

// AccountsListener adapts a function to AccountsChangedHandler. Handlers are
// matched by pointer, so keep the listener to remove it later.
type AccountsListener struct {
	fn func(accounts []string)
}

func NewAccountsListener(fn func(accounts []string)) *AccountsListener {
	return &AccountsListener{fn: fn}
}

func (l *AccountsListener) AccountsChanged(accounts []string) {
	if l.fn != nil {
		l.fn(accounts)
	}
}

// Listeners is an ordered set of account change handlers, safe for concurrent use.
type Listeners struct {
	mu       sync.Mutex
	handlers []AccountsChangedHandler
}

// isComparable reports whether h can be matched with ==; func, map and slice
// backed handlers cannot.
func isComparable(h AccountsChangedHandler) bool {
	return reflect.TypeOf(h).Comparable()
}

// sameHandler compares two handlers. Comparable types can still hold
// incomparable values inside interface fields, == panics on those.
func sameHandler(a, b AccountsChangedHandler) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// Add registers h once; adding the same handler again is a no-op. Handlers
// that are not comparable are always appended and can never be removed.
func (l *Listeners) Add(h AccountsChangedHandler) {
	if h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !isComparable(h) {
		l.handlers = append(l.handlers, h)
		return
	}
	for _, existing := range l.handlers {
		if sameHandler(existing, h) {
			return
		}
	}
	l.handlers = append(l.handlers, h)
}

func (l *Listeners) Remove(h AccountsChangedHandler) bool {
	if h == nil || !isComparable(h) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.handlers {
		if sameHandler(existing, h) {
			l.handlers = append(l.handlers[:i:i], l.handlers[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handlers)
}

// Emit calls every handler in registration order outside the lock.
func (l *Listeners) Emit(accounts []string) {
	l.mu.Lock()
	handlers := make([]AccountsChangedHandler, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()
	for _, h := range handlers {
		h.AccountsChanged(accounts)
	}
}
