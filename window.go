package forge

import (
	"reflect"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// WindowState wraps the single shared GLFW window. The renderer process draws
// into it out of band; the editor only needs it for input polling and sizing.
type WindowState struct {
	windowGlfw   *glfw.Window
	WindowWidth  int
	WindowHeight int
	windowTitle  string
}

// WindowModule ensures a single shared GLFW window (WindowState) is created
// and made available as a resource for the input module.
// Install is idempotent: if a WindowState resource already exists, it is reused.
type WindowModule struct {
	Width  int
	Height int
	Title  string
}

// NewWindowModule creates a module that provides a shared WindowState resource.
// If Width/Height are zero, sensible defaults are used.
func NewWindowModule(width, height int, title string) *WindowModule {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if title == "" {
		title = "Forge"
	}
	return &WindowModule{
		Width:  width,
		Height: height,
		Title:  title,
	}
}

// Install provides the WindowState resource if missing.
func (m WindowModule) Install(app *App) {
	t := reflect.TypeOf((*WindowState)(nil)).Elem()
	if _, ok := app.resources[t]; ok {
		// Already created by another module; no-op to preserve the
		// single-window invariant.
		return
	}

	ws := createWindowState(m.Width, m.Height, m.Title)
	app.AddResources(ws)
	app.OnDispose(func() {
		ws.windowGlfw.Destroy()
		glfw.Terminate()
	})
}

func createWindowState(windowWidth int, windowHeight int, windowTitle string) *WindowState {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		panic(err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // the renderer owns the surface API
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		panic(err)
	}

	return &WindowState{
		windowGlfw:   win,
		WindowWidth:  windowWidth,
		WindowHeight: windowHeight,
		windowTitle:  windowTitle,
	}
}
