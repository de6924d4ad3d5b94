package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface lists every HTTP operation of the API.
type ServerInterface interface {
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
	// (POST /images)
	UploadImage(w http.ResponseWriter, r *http.Request)
	// (GET /images)
	ListImages(w http.ResponseWriter, r *http.Request, params ListImagesParams)
	// (DELETE /images)
	ClearImages(w http.ResponseWriter, r *http.Request)
	// (GET /images/{id})
	GetImage(w http.ResponseWriter, r *http.Request, id string)
	// (DELETE /images/{id})
	DeleteImage(w http.ResponseWriter, r *http.Request, id string)
	// (POST /images/{id}/publish)
	PublishImage(w http.ResponseWriter, r *http.Request, id string)
	// (POST /search)
	Search(w http.ResponseWriter, r *http.Request)
	// (POST /session/search)
	SessionSearch(w http.ResponseWriter, r *http.Request)
	// (GET /session)
	GetSession(w http.ResponseWriter, r *http.Request)
}

// InvalidParamFormatError reports a parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper binds parameters and dispatches to the ServerInterface.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// ListImages binds ?limit= and dispatches.
func (siw *ServerInterfaceWrapper) ListImages(w http.ResponseWriter, r *http.Request) {
	var params ListImagesParams

	err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.Handler.ListImages(w, r, params)
}

// GetImage binds {id} and dispatches.
func (siw *ServerInterfaceWrapper) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.Handler.GetImage(w, r, id)
}

// DeleteImage binds {id} and dispatches.
func (siw *ServerInterfaceWrapper) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.Handler.DeleteImage(w, r, id)
}

// PublishImage binds {id} and dispatches.
func (siw *ServerInterfaceWrapper) PublishImage(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.Handler.PublishImage(w, r, id)
}

func (siw *ServerInterfaceWrapper) bindID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return "", false
	}
	return id, true
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler mounts si on a fresh router.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions mounts si on options.BaseRouter.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Get("/health", si.HealthCheck)
	r.Get("/metrics", si.Metrics)
	r.Post("/images", si.UploadImage)
	r.Get("/images", wrapper.ListImages)
	r.Delete("/images", si.ClearImages)
	r.Get("/images/{id}", wrapper.GetImage)
	r.Delete("/images/{id}", wrapper.DeleteImage)
	r.Post("/images/{id}/publish", wrapper.PublishImage)
	r.Post("/search", si.Search)
	r.Post("/session/search", si.SessionSearch)
	r.Get("/session", si.GetSession)

	return r
}
