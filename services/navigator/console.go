package navsvc

import (
	"fmt"
	"io"
	"sync"

	"github.com/trezcool/barakah/core"
)

var hints = map[string]string{
	core.RouteLogin:      "you are logged out, run `barakah login` to sign in",
	core.RouteHome:       "signed in, run `barakah dashboard` to get started",
	core.RouteComplaints: "signed in, run `barakah complaints` to see the complaints",
}

// Console is the Navigator of the command line: it prints where the user should go next
// and records every navigation.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	history []string
}

var _ core.Navigator = (*Console)(nil)

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (n *Console) GotoLogin() { n.Goto(core.RouteLogin) }

func (n *Console) GotoHome() { n.Goto(core.RouteHome) }

func (n *Console) Goto(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.history = append(n.history, route)
	if hint, ok := hints[route]; ok {
		fmt.Fprintln(n.out, hint)
	} else {
		fmt.Fprintf(n.out, "-> %s\n", route)
	}
}

// History returns the visited routes, oldest first.
func (n *Console) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}

// Count returns how many times `route` was visited.
func (n *Console) Count(route string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var count int
	for _, r := range n.history {
		if r == route {
			count++
		}
	}
	return count
}

// Last returns the current route, "" before any navigation.
func (n *Console) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return ""
	}
	return n.history[len(n.history)-1]
}
