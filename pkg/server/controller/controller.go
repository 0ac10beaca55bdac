package controller

import "github.com/fasthttp/router"

// HttpController attaches its route(s) to the router.
type HttpController interface {
	AddRoute(router *router.Router)
}
