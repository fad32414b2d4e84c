package system

import (
	coresys "github.com/boxworld/box/internal/core/system"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred destruction queue once the bus has
// been delivered, so every handler saw the entities before they go.
type CleanupSystem struct {
	log *zap.Logger
}

func NewCleanupSystem(log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{log: log}
}

func (s *CleanupSystem) Name() string                                { return "cleanup" }
func (s *CleanupSystem) Priority() coresys.Priority                  { return coresys.PriorityCleanup }
func (s *CleanupSystem) Access() coresys.Access                      { return coresys.Access{} }
func (s *CleanupSystem) Run(*sim.Context)                            {}
func (s *CleanupSystem) HandleMessage(*sim.Context, message.Message) {}

func (s *CleanupSystem) AfterFlush(ctx *sim.Context) {
	if n := ctx.Store.FlushDestroyQueue(); n > 0 {
		s.log.Debug("entities destroyed", zap.Int("count", n))
	}
}
