package core

import "github.com/dkeye/jsonrpcd/internal/domain"

// NopHandler ignores lifecycle hooks and rejects every method. Embed it to
// implement only what an application needs.
type NopHandler struct{}

func (NopHandler) AfterConnectionEstablished(*Session)   {}
func (NopHandler) AfterConnectionClosed(*Session, string) {}
func (NopHandler) HandleTransportError(*Session, error)   {}

func (NopHandler) HandleRequest(_ *Session, req *domain.Request, _ ResponseSender) error {
	return domain.MethodNotFound(req.Method)
}
