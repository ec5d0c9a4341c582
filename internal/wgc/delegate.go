package wgc

import (
	"sync"
	"syscall"
	"unsafe"
)

// eventHandler is a minimal ITypedEventHandler<Object,Object>
// implementation backed by a fixed-layout vtable produced with
// syscall.NewCallback, the same technique go-ole uses to let native COM
// call back into Go (IDispatch-style callbacks there; here the callee is
// the compositor's FrameArrived delegate instead).
//
// vtable: 0 QueryInterface, 1 AddRef, 2 Release, 3 Invoke(sender, args).
type eventHandler struct {
	vtbl *eventHandlerVtbl
	refs int32
	fn   func()
}

type eventHandlerVtbl struct {
	queryInterface uintptr
	addRef         uintptr
	release        uintptr
	invoke         uintptr
}

var (
	sharedVtbl     *eventHandlerVtbl
	sharedVtblOnce sync.Once

	// liveHandlers pins Go-side eventHandler values reachable only through
	// COM so the garbage collector never reclaims one while the
	// compositor still holds a reference to its vtable.
	liveHandlers   = map[*eventHandler]struct{}{}
	liveHandlersMu sync.Mutex
)

func buildSharedVtbl() {
	sharedVtbl = &eventHandlerVtbl{
		queryInterface: syscall.NewCallback(handlerQueryInterface),
		addRef:         syscall.NewCallback(handlerAddRef),
		release:        syscall.NewCallback(handlerRelease),
		invoke:         syscall.NewCallback(handlerInvoke),
	}
}

func newTypedEventHandler(fn func()) *eventHandler {
	sharedVtblOnce.Do(buildSharedVtbl)
	h := &eventHandler{vtbl: sharedVtbl, refs: 1, fn: fn}
	liveHandlersMu.Lock()
	liveHandlers[h] = struct{}{}
	liveHandlersMu.Unlock()
	return h
}

func handlerFromThis(this uintptr) *eventHandler {
	return (*eventHandler)(unsafe.Pointer(this))
}

func handlerQueryInterface(this, riid, ppv uintptr) uintptr {
	// Every interface this delegate is asked for resolves to itself; a
	// real implementation would check riid against IUnknown/IInspectable/
	// ITypedEventHandler, but WGC only ever queries for the handler it
	// was just handed.
	*(*uintptr)(unsafe.Pointer(ppv)) = this
	handlerAddRef(this)
	return 0
}

func handlerAddRef(this uintptr) uintptr {
	h := handlerFromThis(this)
	h.refs++
	return uintptr(h.refs)
}

func handlerRelease(this uintptr) uintptr {
	h := handlerFromThis(this)
	h.refs--
	n := h.refs
	if n == 0 {
		liveHandlersMu.Lock()
		delete(liveHandlers, h)
		liveHandlersMu.Unlock()
	}
	return uintptr(n)
}

func handlerInvoke(this, _sender, _args uintptr) uintptr {
	h := handlerFromThis(this)
	h.fn()
	return 0
}
