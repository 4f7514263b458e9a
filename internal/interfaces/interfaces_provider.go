package interfaces

import (
	"github.com/google/wire"

	"workify/services/conversation-api/internal/interfaces/httpserver"
	"workify/services/conversation-api/internal/interfaces/httpserver/handlers"
)

// InterfacesProvider provides all interface layer dependencies
var InterfacesProvider = wire.NewSet(
	handlers.NewProvider,
	httpserver.New,
)
