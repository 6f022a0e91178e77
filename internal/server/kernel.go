package server

import (
	"github.com/nfrund/relay/internal/chat"
	"github.com/nfrund/relay/internal/module"
)

// AppModules is the central list of application modules. The kernel iterates
// over it to register and boot each one in order.
func AppModules(chatModule *chat.Module) []module.Module {
	return []module.Module{
		chatModule,
	}
}
