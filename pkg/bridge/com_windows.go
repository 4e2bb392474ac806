//go:build windows
// +build windows

package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"github.com/lxn/win"
)

const (
	// HRESULTs that still leave COM usable on this thread
	hrSFalse          = 0x00000001
	hrRPCChangedMode  = 0x80010106
	asyncPollInterval = 5 * time.Millisecond
)

// IAsyncInfo status values
const (
	asyncStatusStarted   = 0
	asyncStatusCompleted = 1
	asyncStatusCanceled  = 2
	asyncStatusError     = 3
)

// vtable slots shared by every WinRT interface: IUnknown (3) + IInspectable (3)
const inspectableMethods = 6

// IAsyncInfo slots
const (
	asyncInfoGetStatus    = inspectableMethods + 1
	asyncInfoGetErrorCode = inspectableMethods + 2
	asyncInfoCancel       = inspectableMethods + 3
	asyncInfoClose        = inspectableMethods + 4
)

// IAsyncOperation<T>::GetResults
const asyncOperationGetResults = inspectableMethods + 2

var (
	iidAsyncInfo = ole.NewGUID("{00000036-0000-0000-C000-000000000046}")

	errAsyncCanceled = errors.New("async operation was canceled")
)

// comScope pins the calling goroutine to its OS thread and initializes COM on it. The returned
// release func must run on the same goroutine, which gets unpinned afterwards
func comScope() (func(), error) {
	runtime.LockOSThread()

	needUninitialize := true

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("initialize COM: %w", err)
		}

		switch oleErr.Code() {
		case hrSFalse:
			// already initialized on this thread, still needs balancing
		case hrRPCChangedMode:
			// someone else owns this thread's apartment, use theirs
			needUninitialize = false
		default:
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("initialize COM: %w", err)
		}
	}

	return func() {
		if needUninitialize {
			ole.CoUninitialize()
		}
		runtime.UnlockOSThread()
	}, nil
}

// comCall invokes the method at the given vtable slot of a COM object
func comCall(obj unsafe.Pointer, slot int, args ...uintptr) error {
	if obj == nil {
		return errors.New("call on nil COM object")
	}

	vtbl := *(*unsafe.Pointer)(obj)
	method := *(*uintptr)(unsafe.Pointer(uintptr(vtbl) + uintptr(slot)*unsafe.Sizeof(uintptr(0))))

	hr, _, _ := syscall.SyscallN(method, append([]uintptr{uintptr(obj)}, args...)...)
	if win.FAILED(win.HRESULT(hr)) {
		return ole.NewError(hr)
	}

	return nil
}

func comRelease(obj unsafe.Pointer) {
	if obj != nil {
		(*ole.IUnknown)(obj).Release()
	}
}

// comGetString reads an HSTRING property from the given slot
func comGetString(obj unsafe.Pointer, slot int) (string, error) {
	var h ole.HString
	if err := comCall(obj, slot, uintptr(unsafe.Pointer(&h))); err != nil {
		return "", err
	}

	if h == 0 {
		return "", nil
	}
	defer ole.DeleteHString(h)

	return h.String(), nil
}

// awaitAsync blocks until the given IAsyncOperation completes, then stores its result in out.
// The operation is canceled if ctx ends first. The operation itself is not released here
func awaitAsync(ctx context.Context, operation unsafe.Pointer, out unsafe.Pointer) error {
	infoDispatch, err := (*ole.IUnknown)(operation).QueryInterface(iidAsyncInfo)
	if err != nil {
		return fmt.Errorf("query IAsyncInfo: %w", err)
	}
	info := unsafe.Pointer(infoDispatch)
	defer comRelease(info)
	defer comCall(info, asyncInfoClose)

	ticker := time.NewTicker(asyncPollInterval)
	defer ticker.Stop()

	for {
		var status int32
		if err := comCall(info, asyncInfoGetStatus, uintptr(unsafe.Pointer(&status))); err != nil {
			return fmt.Errorf("get async status: %w", err)
		}

		switch status {
		case asyncStatusCompleted:
			if err := comCall(operation, asyncOperationGetResults, uintptr(out)); err != nil {
				return fmt.Errorf("get async results: %w", err)
			}
			return nil

		case asyncStatusCanceled:
			return errAsyncCanceled

		case asyncStatusError:
			var code int32
			if err := comCall(info, asyncInfoGetErrorCode, uintptr(unsafe.Pointer(&code))); err != nil {
				return fmt.Errorf("get async error code: %w", err)
			}
			return ole.NewError(uintptr(uint32(code)))
		}

		select {
		case <-ctx.Done():
			comCall(info, asyncInfoCancel)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
