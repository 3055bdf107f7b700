package orch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/voicebridge/internal/app"
	"github.com/dkeye/voicebridge/internal/app/negotiation"
	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/core/mocks"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSDP = "v=0\r\n" +
	"o=- 1 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n"

type sent struct {
	to    string
	event string
	data  any
}

// fakeTransport records deliveries per connection. Connections are created
// by connect; groups mirror what a real transport would track.
type fakeTransport struct {
	mu     sync.Mutex
	conns  map[core.SessionID][]sent
	groups map[string]map[core.SessionID]struct{}
	fail   map[core.SessionID]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		conns:  make(map[core.SessionID][]sent),
		groups: make(map[string]map[core.SessionID]struct{}),
		fail:   make(map[core.SessionID]bool),
	}
}

func (f *fakeTransport) connect(sid core.SessionID) {
	f.mu.Lock()
	f.conns[sid] = nil
	f.mu.Unlock()
}

func (f *fakeTransport) disconnect(sid core.SessionID) {
	f.mu.Lock()
	delete(f.conns, sid)
	f.mu.Unlock()
}

func (f *fakeTransport) SendToAll(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid := range f.conns {
		f.conns[sid] = append(f.conns[sid], sent{"all", event, payload})
	}
}

func (f *fakeTransport) SendToGroup(group, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid := range f.groups[group] {
		if _, ok := f.conns[sid]; ok {
			f.conns[sid] = append(f.conns[sid], sent{group, event, payload})
		}
	}
}

func (f *fakeTransport) SendToConnection(sid core.SessionID, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conns[sid]; !ok || f.fail[sid] {
		return domain.ErrTransport
	}
	f.conns[sid] = append(f.conns[sid], sent{string(sid), event, payload})
	return nil
}

func (f *fakeTransport) AddToGroup(sid core.SessionID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[group] == nil {
		f.groups[group] = make(map[core.SessionID]struct{})
	}
	f.groups[group][sid] = struct{}{}
}

func (f *fakeTransport) RemoveFromGroup(sid core.SessionID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups[group], sid)
}

// take returns and clears what sid received.
func (f *fakeTransport) take(sid core.SessionID) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.conns[sid]
	if _, ok := f.conns[sid]; ok {
		f.conns[sid] = nil
	}
	return out
}

func events(in []sent) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.event)
	}
	return out
}

func newTestOrch(media core.MediaService) (*Orchestrator, *fakeTransport) {
	tr := newFakeTransport()
	o := New(app.NewRegistry(), app.NewRoomManager(media), negotiation.NewTable(), tr)
	return o, tr
}

func connect(o *Orchestrator, tr *fakeTransport, sid core.SessionID) {
	tr.connect(sid)
	o.OnConnect(sid, "", "", nil)
}

func TestLobbyScenario(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	connect(o, tr, "u1")
	connect(o, tr, "u2")
	connect(o, tr, "watcher")

	_, err := o.CreateRoom(ctx, "u1", "Lobby")
	require.NoError(t, err)
	_, err = o.JoinRoom(ctx, "u1", "Lobby")
	require.NoError(t, err)
	_, err = o.JoinRoom(ctx, "u2", "Lobby")
	require.NoError(t, err)

	require.Equal(t, []string{core.EventRoomCreated, core.EventUserJoined, core.EventUserJoined}, events(tr.take("u1")))
	require.Equal(t, []string{core.EventRoomCreated, core.EventUserJoined}, events(tr.take("u2")))
	require.Equal(t, []string{core.EventRoomCreated}, events(tr.take("watcher")))

	// u2 trickles a candidate before any offer exists; it waits
	require.NoError(t, o.RouteIceCandidate(domain.IceCandidate{Candidate: "c-u2", RoomID: "Lobby", UserID: "u2", TargetID: "u1"}))
	require.Empty(t, tr.take("u1"))

	require.NoError(t, o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "Lobby", UserID: "u1", TargetID: "u2"}))
	got := tr.take("u2")
	require.Equal(t, []string{core.EventReceiveSdpOffer}, events(got))
	offer := got[0].data.(domain.SdpMessage)
	require.Equal(t, domain.UserID("u1"), offer.UserID)
	require.Equal(t, domain.SdpOffer, offer.Type)

	require.NoError(t, o.RouteAnswer(domain.SdpMessage{SDP: testSDP, RoomID: "Lobby", UserID: "u2"}))
	got = tr.take("u1")
	require.Equal(t, []string{core.EventReceiveSdpAnswer, core.EventReceiveIceCandidate}, events(got))
	require.Equal(t, "c-u2", got[1].data.(domain.IceCandidate).Candidate)

	require.Equal(t, negotiation.Stable, o.Links.State("u1", "u2"))
	require.Equal(t, negotiation.Stable, o.Links.State("u2", "u1"))

	o.OnDisconnect("u1")
	tr.disconnect("u1")
	got = tr.take("u2")
	require.Equal(t, []string{core.EventUserLeft}, events(got))
	require.Equal(t, domain.UserID("u1"), got[0].data.(memberEvent).User.ID)
	room, err := o.GetRoom("Lobby")
	require.NoError(t, err)
	require.Len(t, room.Members, 1)
	require.Equal(t, negotiation.New, o.Links.State("u2", "u1"))

	require.NoError(t, o.LeaveRoom(ctx, "u2", "Lobby"))
	_, err = o.GetRoom("Lobby")
	require.ErrorIs(t, err, domain.ErrNotFound)
	// the leaver is out of the group before UserLeft goes out
	require.Equal(t, []string{core.EventRoomDestroyed}, events(tr.take("u2")))
	require.Equal(t, []string{core.EventRoomDestroyed}, events(tr.take("watcher")))
	require.Empty(t, o.ListRooms())
}

func TestRouteRejectsNonMembers(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	connect(o, tr, "a")
	connect(o, tr, "b")
	_, _ = o.CreateRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "a", "r")
	tr.take("a")
	tr.take("b")

	err := o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "b"})
	require.ErrorIs(t, err, domain.ErrUserNotInRoom)
	err = o.RouteIceCandidate(domain.IceCandidate{Candidate: "x", RoomID: "r", UserID: "b"})
	require.ErrorIs(t, err, domain.ErrUserNotInRoom)
	err = o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "a", TargetID: "b"})
	require.ErrorIs(t, err, domain.ErrUserNotInRoom)
	err = o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "missing", UserID: "a"})
	require.ErrorIs(t, err, domain.ErrUserNotInRoom)

	require.Empty(t, tr.take("a"))
	require.Empty(t, tr.take("b"))
}

func TestRouteUnsolicitedAnswer(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	connect(o, tr, "a")
	connect(o, tr, "b")
	_, _ = o.CreateRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "b", "r")
	tr.take("a")

	err := o.RouteAnswer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "b", TargetID: "a"})
	require.ErrorIs(t, err, domain.ErrInvalidNegotiationState)
	err = o.RouteAnswer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "b"})
	require.ErrorIs(t, err, domain.ErrInvalidNegotiationState)
	require.Empty(t, tr.take("a"))
	require.Equal(t, negotiation.New, o.Links.State("a", "b"))
}

func TestRouteOfferBroadcastToPeers(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	for _, sid := range []core.SessionID{"a", "b", "c"} {
		connect(o, tr, sid)
	}
	_, _ = o.CreateRoom(ctx, "a", "r")
	for _, sid := range []core.SessionID{"a", "b", "c"} {
		_, err := o.JoinRoom(ctx, sid, "r")
		require.NoError(t, err)
		tr.take(sid)
	}
	tr.take("a")
	tr.take("b")

	require.NoError(t, o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "a"}))
	require.Empty(t, tr.take("a"))
	require.Equal(t, []string{core.EventReceiveSdpOffer}, events(tr.take("b")))
	require.Equal(t, []string{core.EventReceiveSdpOffer}, events(tr.take("c")))

	// with two offers pending on b an untargeted answer is ambiguous
	require.NoError(t, o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "c", TargetID: "b"}))
	err := o.RouteAnswer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "b"})
	require.ErrorIs(t, err, domain.ErrInvalidNegotiationState)
	require.NoError(t, o.RouteAnswer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "b", TargetID: "c"}))
	require.Equal(t, negotiation.Stable, o.Links.State("c", "b"))
}

func TestRouteOfferInvalidSDP(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	connect(o, tr, "a")
	connect(o, tr, "b")
	_, _ = o.CreateRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "b", "r")

	err := o.RouteOffer(domain.SdpMessage{SDP: "nonsense", RoomID: "r", UserID: "a"})
	require.ErrorIs(t, err, domain.ErrInvalidSDP)
	require.Equal(t, negotiation.New, o.Links.State("a", "b"))
}

func TestRouteTransportFailure(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	connect(o, tr, "a")
	connect(o, tr, "b")
	_, _ = o.CreateRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "b", "r")
	tr.fail["b"] = true

	err := o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "a"})
	require.ErrorIs(t, err, domain.ErrTransport)
}

func TestDisconnectNeverFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	media := mocks.NewMockMediaService(ctrl)
	boom := errors.New("boom")
	media.EXPECT().CreateRoom(gomock.Any(), gomock.Any()).Return("1", nil)
	media.EXPECT().JoinRoom(gomock.Any(), "1", "a").Return(nil)
	media.EXPECT().LeaveRoom(gomock.Any(), "1", "a").Return(boom)
	media.EXPECT().DestroyRoom(gomock.Any(), "1").Return(boom)

	ctx := context.Background()
	o, tr := newTestOrch(media)
	connect(o, tr, "a")
	connect(o, tr, "b")
	_, _ = o.CreateRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "a", "r")
	tr.take("b")

	o.OnDisconnect("a")
	_, err := o.GetRoom("r")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, []string{core.EventRoomDestroyed}, events(tr.take("b")))
	_, ok := o.Registry.User("a")
	require.False(t, ok)

	// disconnect of an unknown or roomless connection is a no-op
	o.OnDisconnect("b")
	o.OnDisconnect("ghost")
}

func TestRenameAndWhoAmI(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	connect(o, tr, "a")
	connect(o, tr, "b")
	_, _ = o.CreateRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "b", "r")
	tr.take("a")
	tr.take("b")

	u, err := o.Rename("a", "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, []string{core.EventUserUpdated}, events(tr.take("b")))

	me, err := o.WhoAmI("a")
	require.NoError(t, err)
	require.Equal(t, "alice", me.User.Username)
	require.NotNil(t, me.Room)
	require.Equal(t, "alice", me.Room.Members[0].Username)

	_, err = o.WhoAmI("ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJoinSecondRoomRejected(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	connect(o, tr, "a")
	_, _ = o.CreateRoom(ctx, "a", "r1")
	_, _ = o.CreateRoom(ctx, "a", "r2")
	_, err := o.JoinRoom(ctx, "a", "r1")
	require.NoError(t, err)
	_, err = o.JoinRoom(ctx, "a", "r2")
	require.ErrorIs(t, err, domain.ErrAlreadyInRoom)

	_, err = o.JoinRoom(ctx, "nobody", "r1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = o.CreateRoom(ctx, "a", "")
	require.ErrorIs(t, err, domain.ErrInvalidRoomName)
}

func TestRouteToDepartedPeer(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	for _, sid := range []core.SessionID{"a", "b", "c"} {
		connect(o, tr, sid)
	}
	_, _ = o.CreateRoom(ctx, "a", "r")
	for _, sid := range []core.SessionID{"a", "b", "c"} {
		_, err := o.JoinRoom(ctx, sid, "r")
		require.NoError(t, err)
	}

	require.NoError(t, o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "a", TargetID: "b"}))
	require.NoError(t, o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "c", TargetID: "a"}))
	require.NoError(t, o.LeaveRoom(ctx, "b", "r"))
	require.NoError(t, o.LeaveRoom(ctx, "c", "r"))
	for _, sid := range []core.SessionID{"a", "b", "c"} {
		tr.take(sid)
	}

	// a is still a member; the peer it talks to is gone
	err := o.RouteIceCandidate(domain.IceCandidate{Candidate: "late", RoomID: "r", UserID: "a", TargetID: "b"})
	require.ErrorIs(t, err, domain.ErrInvalidNegotiationState)
	require.NotErrorIs(t, err, domain.ErrUserNotInRoom)

	err = o.RouteAnswer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "a", TargetID: "c"})
	require.ErrorIs(t, err, domain.ErrInvalidNegotiationState)
	require.NotErrorIs(t, err, domain.ErrUserNotInRoom)

	// offers still name a non-member target explicitly
	err = o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "a", TargetID: "b"})
	require.ErrorIs(t, err, domain.ErrUserNotInRoom)

	require.Empty(t, tr.take("a"))
	require.Empty(t, tr.take("b"))
	require.Empty(t, tr.take("c"))
}

func TestQueuedCandidatesFlushInOrder(t *testing.T) {
	ctx := context.Background()
	o, tr := newTestOrch(app.NewLocalMedia())
	connect(o, tr, "a")
	connect(o, tr, "b")
	_, _ = o.CreateRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "a", "r")
	_, _ = o.JoinRoom(ctx, "b", "r")
	tr.take("a")
	tr.take("b")

	candidates := func(in []sent) []string {
		var out []string
		for _, s := range in {
			if c, ok := s.data.(domain.IceCandidate); ok {
				out = append(out, c.Candidate)
			}
		}
		return out
	}

	for _, c := range []string{"a1", "a2", "a3", "a4"} {
		require.NoError(t, o.RouteIceCandidate(domain.IceCandidate{Candidate: c, RoomID: "r", UserID: "a", TargetID: "b"}))
	}
	require.Empty(t, tr.take("b"))

	require.NoError(t, o.RouteOffer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "a", TargetID: "b"}))
	got := tr.take("b")
	require.Equal(t, core.EventReceiveSdpOffer, got[0].event)
	require.Equal(t, []string{"a1", "a2", "a3", "a4"}, candidates(got))

	for _, c := range []string{"b1", "b2", "b3"} {
		require.NoError(t, o.RouteIceCandidate(domain.IceCandidate{Candidate: c, RoomID: "r", UserID: "b", TargetID: "a"}))
	}
	require.Empty(t, tr.take("a"))

	require.NoError(t, o.RouteAnswer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "b"}))
	got = tr.take("a")
	require.Equal(t, []string{
		core.EventReceiveSdpAnswer,
		core.EventReceiveIceCandidate,
		core.EventReceiveIceCandidate,
		core.EventReceiveIceCandidate,
	}, events(got))
	require.Equal(t, []string{"b1", "b2", "b3"}, candidates(got))

	// nothing is replayed by a repeated answer
	err := o.RouteAnswer(domain.SdpMessage{SDP: testSDP, RoomID: "r", UserID: "b", TargetID: "a"})
	require.ErrorIs(t, err, domain.ErrInvalidNegotiationState)
	require.Empty(t, tr.take("a"))
	require.Zero(t, o.Links.Pending("a", "b"))
	require.Zero(t, o.Links.Pending("b", "a"))
}
