//go:build windows
// +build windows

package pin

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualLock        = kernel32.NewProc("VirtualLock")
	procVirtualUnlock      = kernel32.NewProc("VirtualUnlock")
	procSetThreadAffinity  = kernel32.NewProc("SetThreadAffinityMask")
	procGetCurrentThreadID = kernel32.NewProc("GetCurrentThread")
)

func lockBuffer(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	ret, _, err := procVirtualLock.Call(
		uintptr(unsafe.Pointer(&b[0])),
		uintptr(len(b)),
	)
	if ret == 0 {
		return err
	}
	return nil
}

func unlockBuffer(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	ret, _, err := procVirtualUnlock.Call(
		uintptr(unsafe.Pointer(&b[0])),
		uintptr(len(b)),
	)
	if ret == 0 {
		return err
	}
	return nil
}

func pinCurrentThread(cpuID int) error {
	if cpuID < 0 {
		return nil
	}
	hThread, _, _ := procGetCurrentThreadID.Call()
	mask := uintptr(1) << uintptr(cpuID)
	ret, _, err := procSetThreadAffinity.Call(hThread, mask)
	if ret == 0 {
		return err
	}
	return nil
}
