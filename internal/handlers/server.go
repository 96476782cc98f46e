// internal/handlers/server.go
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/skirmish-game/skirmish/internal/leaderboard"
	"github.com/skirmish-game/skirmish/internal/ledger"
)

// Server bundles the components the credit and leaderboard handlers
// close over.
type Server struct {
	Ledger *ledger.Ledger
	Boards *leaderboard.Engine
	Logger *logrus.Logger
}

func NewServer(l *ledger.Ledger, boards *leaderboard.Engine, logger *logrus.Logger) *Server {
	return &Server{
		Ledger: l,
		Boards: boards,
		Logger: logger,
	}
}
