package provider

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RoutePrefix is where source route bundles are mounted.
const RoutePrefix = "/api/metadata/"

// MountRoutes mounts the route bundle of every loaded source that has one
// under /api/metadata/{name}. Requests resolve the live instance, so the
// mounts stay valid across reloads. It returns the mounted names.
func (r *Registry) MountRoutes(router chi.Router) []string {
	var mounted []string
	snap := r.current()
	for _, name := range r.LoadedNames() {
		if !snap.caps[name].Routes {
			continue
		}
		prefix := RoutePrefix + name
		router.Mount(prefix, r.routeHandler(name))
		r.log.Infow("mounted metadata source routes", "provider", name, "prefix", prefix)
		mounted = append(mounted, name)
	}
	return mounted
}

func (r *Registry) routeHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		src, ok := r.Get(name)
		if !ok {
			http.Error(w, NotFound(name).Error(), http.StatusNotFound)
			return
		}
		rp, ok := src.(RouteProvider)
		if !ok {
			http.NotFound(w, req)
			return
		}
		handler := rp.Routes()
		if handler == nil {
			http.NotFound(w, req)
			return
		}
		handler.ServeHTTP(w, req)
	})
}
