package session

import (
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/pkg/xerr"
)

func validate(sess *conversation.Session) error {
	if sess == nil || sess.SessionID == "" {
		return xerr.Input("session id is required")
	}
	for _, m := range sess.Messages {
		if !m.Role.Valid() {
			return xerr.Input("invalid message role: " + string(m.Role))
		}
	}
	return nil
}
