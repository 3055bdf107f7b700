package app

import (
	"testing"

	"github.com/dkeye/voicebridge/internal/core"
	"github.com/stretchr/testify/require"
)

func TestPolicies(t *testing.T) {
	require.Equal(t, KickMember, SimplePolicy{}.OnBackPressure("s", core.EventRoomCreated))
	require.Equal(t, DropFrame, LenientPolicy{}.OnBackPressure("s", core.EventRoomDestroyed))
	require.Equal(t, KickMember, LenientPolicy{}.OnBackPressure("s", core.EventReceiveSdpOffer))
	require.Equal(t, "kick", KickMember.String())
	require.Equal(t, "drop", DropFrame.String())
}
