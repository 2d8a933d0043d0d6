//go:build windows

package main

import (
	"golang.org/x/sys/windows"
)

// setupConsole switches the console to UTF-8 and turns on virtual terminal
// processing so severity colors and bar glyphs render in cmd.exe and
// PowerShell. Redirected handles are left alone.
func setupConsole() {
	const cpUTF8 = 65001
	_ = windows.SetConsoleOutputCP(cpUTF8)

	for _, stdHandle := range []uint32{windows.STD_ERROR_HANDLE, windows.STD_OUTPUT_HANDLE} {
		h, err := windows.GetStdHandle(stdHandle)
		if err != nil {
			continue
		}
		var mode uint32
		if windows.GetConsoleMode(h, &mode) != nil {
			continue
		}
		_ = windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	}
}
