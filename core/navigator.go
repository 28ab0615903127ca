package core

// Route names understood by navigators.
const (
	RouteLogin      = "login-page"
	RouteHome       = "home"
	RouteComplaints = "complaints"
)

// Navigator moves the user between views.
type Navigator interface {
	GotoLogin()
	GotoHome()
	Goto(route string)
}
