//go:build windows

// Package platformstub provides the Windows ScreenGrabber collaborator.
// Real frame acquisition and input injection need DXGI/GDI and stay out
// of scope; this package only implements the one query that is cheap
// and real: monitor enumeration via WMI, using a CoInitializeEx/
// CoUninitialize-bracketed IDispatch call through oleutil.
package platformstub

import (
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/breeze-rmm/remote-desktop/internal/capture"
)

// Grabber implements capture.ScreenGrabber by enumerating monitors
// through WMI's Win32_DesktopMonitor class. Grab is unimplemented: pixel
// acquisition needs DXGI/GDI, which is out of scope here.
type Grabber struct{}

// NewGrabber returns a capture.ScreenGrabber backed by WMI monitor
// enumeration.
func NewGrabber() capture.ScreenGrabber { return Grabber{} }

func (Grabber) ListMonitors() ([]capture.Monitor, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		return nil, fmt.Errorf("platformstub: CoInitializeEx: %w", err)
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return nil, fmt.Errorf("platformstub: create SWbemLocator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("platformstub: query IDispatch: %w", err)
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer")
	if err != nil {
		return nil, fmt.Errorf("platformstub: ConnectServer: %w", err)
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", "SELECT * FROM Win32_DesktopMonitor")
	if err != nil {
		return nil, fmt.Errorf("platformstub: ExecQuery: %w", err)
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	countRaw, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		return nil, fmt.Errorf("platformstub: query result count: %w", err)
	}
	count := int(countRaw.Val)

	monitors := make([]capture.Monitor, 0, count)
	for i := 0; i < count; i++ {
		itemRaw, err := oleutil.CallMethod(result, "ItemIndex", i)
		if err != nil {
			continue
		}
		item := itemRaw.ToIDispatch()
		name := "Display"
		if nameVar, err := oleutil.GetProperty(item, "Name"); err == nil {
			if s, ok := nameVar.Value().(string); ok && s != "" {
				name = s
			}
		}
		item.Release()

		monitors = append(monitors, capture.Monitor{
			Index:        i,
			Name:         name,
			Primary:      i == 0,
			PlatformHint: "wmi",
		})
	}

	return monitors, nil
}

func (Grabber) Grab(int) (*capture.Frame, error) {
	return nil, capture.ErrNotSupported
}
