package signal

import (
	"encoding/json"

	"github.com/dkeye/voicebridge/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRename(sid core.SessionID, c core.SignalConnection, rid string, data []byte) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.badPayload(c, opRename, rid, err)
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename")
	u, err := ctl.Orch.Rename(sid, p.Name)
	if err != nil {
		ctl.replyError(c, opRename, rid, err)
		return
	}
	ctl.reply(c, opRename, rid, u)
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, c core.SignalConnection, rid string) {
	me, err := ctl.Orch.WhoAmI(sid)
	if err != nil {
		ctl.replyError(c, opWhoAmI, rid, err)
		return
	}
	ctl.reply(c, opWhoAmI, rid, me)
}
