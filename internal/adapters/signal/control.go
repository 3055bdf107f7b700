package signal

import "github.com/dkeye/voicebridge/internal/core"

func (ctl *SignalWSController) handlePing(c core.SignalConnection, rid string) {
	ctl.sendJSON(c, envelope{Type: "pong", RID: rid})
}
