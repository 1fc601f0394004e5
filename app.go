package forge

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// Module installs resources and systems into an app. Modules are the
// unit of composition: an editor session is just a builder plus the
// modules it selected.
type Module interface {
	Install(app *App)
}

// AppControl is the resource systems use to ask the session to stop.
type AppControl struct {
	Quit bool
}

// App is one editor session: a resource registry plus staged systems
// driven by Update once per frame. Everything is single-threaded and
// cooperative; resources are injected into systems by reflection, keyed
// by type. There are no globals; multiple independent sessions can
// coexist and are torn down deterministically by Dispose.
type App struct {
	modules   []Module
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any
	disposers []func()
}

func (app *App) AddResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// OnDispose registers teardown work, run in reverse order by Dispose.
func (app *App) OnDispose(fn func()) {
	app.disposers = append(app.disposers, fn)
}

// Update runs every system of every stage once, in stage order.
func (app *App) Update() {
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
	}
}

// Run drives Update until a system flips AppControl.Quit.
func (app *App) Run() {
	ctl := &AppControl{}
	if existing, ok := app.resources[reflect.TypeOf(AppControl{})]; ok {
		ctl = existing.(*AppControl)
	} else {
		app.AddResources(ctl)
	}
	for !ctl.Quit {
		app.Update()
	}
}

// Dispose tears the session down: history cleared, scene disposed,
// module teardown hooks run in reverse order.
func (app *App) Dispose() {
	for i := len(app.disposers) - 1; i >= 0; i-- {
		app.disposers[i]()
	}
	app.disposers = nil
}

var typeOfApp = reflect.TypeOf(App{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)

		// Logger is an interface resource; everything else is *T.
		if argType.Kind() == reflect.Interface {
			resolved := false
			for _, r := range app.resources {
				if reflect.TypeOf(r).Implements(argType) {
					args[i] = reflect.ValueOf(r)
					resolved = true
					break
				}
			}
			if resolved {
				continue
			}
			app.unresolved(systemValue, systemType, argType)
		}

		underlyingType := argType.Elem()
		if underlyingType == typeOfApp {
			args[i] = reflect.ValueOf(app)
			continue
		}
		resource, ok := app.resources[underlyingType]
		if !ok {
			app.unresolved(systemValue, systemType, argType)
		}
		args[i] = reflect.ValueOf(resource)
	}
	systemValue.Call(args)
}

func (app *App) unresolved(systemValue reflect.Value, systemType, argType reflect.Type) {
	msg := fmt.Sprintf("Unable to resolve system dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
		runtime.FuncForPC(systemValue.Pointer()).Name(),
		fmt.Sprint(systemType),
		fmt.Sprint(argType),
	)
	panic(msg)
}

// ResourceOf fetches a typed resource, or nil when absent.
func ResourceOf[T any](app *App) *T {
	var zero T
	if r, ok := app.resources[reflect.TypeOf(zero)]; ok {
		return r.(*T)
	}
	return nil
}

// Logger returns the first Logger resource if present, otherwise a
// no-op logger. Safe to call at any time; never returns nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}
