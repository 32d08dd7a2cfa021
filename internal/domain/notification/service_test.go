package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushdesk/internal/common"
	"pushdesk/internal/domain/audience"
)

// fakeUpstream implements Upstream in memory and records every write.
type fakeUpstream struct {
	notifications map[string]*Notification
	overdue       []Notification

	nextID    string
	created   *Notification
	updates   []map[string]any
	cancelOps []map[string]any
	deleted   []string

	createErr error
	fetchErr  error
	updateErr error
	cancelErr error
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		notifications: make(map[string]*Notification),
		nextID:        "n-1",
	}
}

func (f *fakeUpstream) FetchNotifications(ctx context.Context) ([]Notification, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]Notification, 0, len(f.notifications))
	for _, n := range f.notifications {
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeUpstream) FetchScheduled(ctx context.Context) ([]Notification, error) {
	return f.FetchNotifications(ctx)
}

func (f *fakeUpstream) FetchNotification(ctx context.Context, id string) (*Notification, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	n, ok := f.notifications[id]
	if !ok {
		return nil, nil
	}
	copied := *n
	return &copied, nil
}

func (f *fakeUpstream) CreateNotification(ctx context.Context, n *Notification) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	copied := *n
	copied.ID = f.nextID
	f.created = &copied
	f.notifications[f.nextID] = &copied
	return f.nextID, nil
}

func (f *fakeUpstream) UpdateNotification(ctx context.Context, id string, fields map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeUpstream) CancelOrReschedule(ctx context.Context, id string, fields map[string]any) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelOps = append(f.cancelOps, fields)
	return nil
}

func (f *fakeUpstream) DeleteNotification(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUpstream) ListOverdue(ctx context.Context, olderThan time.Time, limit int) ([]Notification, error) {
	return f.overdue, nil
}

// dispatchCall records one Dispatch invocation.
type dispatchCall struct {
	tokens         []string
	title, body    string
	data           map[string]any
	notificationID string
}

type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, tokens []string, title, body string, data map[string]any, notificationID string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, dispatchCall{tokens: tokens, title: title, body: body, data: data, notificationID: notificationID})
	return nil
}

type enqueueCall struct {
	id string
	at time.Time
}

type fakeEnqueuer struct {
	calls []enqueueCall
	err   error
}

func (f *fakeEnqueuer) EnqueueDispatch(notificationID string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, enqueueCall{id: notificationID, at: at})
	return nil
}

type fakeLimiter struct {
	allowed bool
	err     error
}

func (f *fakeLimiter) Allow(ctx context.Context, token string) (bool, error) {
	return f.allowed, f.err
}

// fakeDirectory implements audience.DirectorySource for the real resolver.
type fakeDirectory struct {
	users  []audience.User
	groups []audience.UserGroup
}

func (f *fakeDirectory) FetchDirectory(ctx context.Context) ([]audience.User, error) {
	return f.users, nil
}

func (f *fakeDirectory) FetchGroups(ctx context.Context) ([]audience.UserGroup, error) {
	return f.groups, nil
}

type serviceFixture struct {
	upstream   *fakeUpstream
	dispatcher *fakeDispatcher
	enqueuer   *fakeEnqueuer
	limiter    *fakeLimiter
	service    *Service
}

func newFixture(dir *fakeDirectory, strict bool) *serviceFixture {
	up := newFakeUpstream()
	d := &fakeDispatcher{}
	e := &fakeEnqueuer{}
	l := &fakeLimiter{allowed: true}
	return &serviceFixture{
		upstream:   up,
		dispatcher: d,
		enqueuer:   e,
		limiter:    l,
		service:    NewService(up, audience.NewResolver(dir), d, e, l, strict),
	}
}

func TestCreate_ScheduleNew(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	tomorrow := time.Now().Add(24 * time.Hour)

	n, err := fx.service.Create(context.Background(), &CreateRequest{
		Title:  "Flash sale",
		Body:   "50% off",
		SendAt: &tomorrow,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, "n-1", n.ID)
	assert.Empty(t, n.UserGroup, "all-users target persists as an absent group")

	require.Len(t, fx.enqueuer.calls, 1)
	assert.Equal(t, "n-1", fx.enqueuer.calls[0].id)
	assert.True(t, fx.enqueuer.calls[0].at.Equal(tomorrow))
}

func TestCreate_InvalidDataNeverReachesUpstream(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)

	_, err := fx.service.Create(context.Background(), &CreateRequest{
		Title: "t", Body: "b", Data: `{"broken":`,
	})

	var payload *common.InvalidPayloadError
	require.ErrorAs(t, err, &payload)
	assert.Nil(t, fx.upstream.created)
}

func TestCreate_PastSendAt(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	yesterday := time.Now().Add(-24 * time.Hour)

	_, err := fx.service.Create(context.Background(), &CreateRequest{
		Title: "t", Body: "b", SendAt: &yesterday,
	})

	var schedule *common.InvalidScheduleError
	require.ErrorAs(t, err, &schedule)
	assert.Nil(t, fx.upstream.created)
}

func TestCreate_ExplicitDevicesMaterializedAtCreate(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)

	n, err := fx.service.Create(context.Background(), &CreateRequest{
		Title: "t", Body: "b",
		Target: TargetRequest{
			DeviceIDs: []string{"d1", "d2"},
			Devices: []audience.User{
				{ID: "d1", Token: "t1"},
				{ID: "d2", Token: "t1"},
				{ID: "d3", Token: "t3"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, n.TargetTokens)
}

func TestSend_EditThenSend(t *testing.T) {
	fx := newFixture(&fakeDirectory{users: []audience.User{{ID: "u1", Token: "t1"}}}, false)
	fx.upstream.notifications["n-1"] = &Notification{
		ID: "n-1", Title: "A", Body: "old", Status: StatusPending,
	}

	n, err := fx.service.Send(context.Background(), "n-1", &SendRequest{
		Original: Snapshot{Title: "A", Body: "old", Data: map[string]any{}},
		Current:  Edit{Title: "A", Body: "new"},
	})
	require.NoError(t, err)

	// The pre-dispatch update carries only the changed field.
	require.Len(t, fx.upstream.updates, 2)
	assert.Equal(t, map[string]any{"body": "new"}, fx.upstream.updates[0])
	assert.Equal(t, map[string]any{"status": "sent"}, fx.upstream.updates[1])

	// The dispatch carries the edited content, never the stale copy.
	require.Len(t, fx.dispatcher.calls, 1)
	assert.Equal(t, "new", fx.dispatcher.calls[0].body)
	assert.Equal(t, []string{"t1"}, fx.dispatcher.calls[0].tokens)

	assert.Equal(t, StatusSent, n.Status)
}

func TestSend_ToNobodyAbortsBeforeDispatch(t *testing.T) {
	dir := &fakeDirectory{groups: []audience.UserGroup{{ID: "g", Tokens: []string{}}}}
	fx := newFixture(dir, false)
	fx.upstream.notifications["n-1"] = &Notification{
		ID: "n-1", Title: "A", Body: "B", Status: StatusPending,
	}

	_, err := fx.service.Send(context.Background(), "n-1", &SendRequest{
		Original: Snapshot{Title: "A", Body: "B"},
		Current:  Edit{Title: "A", Body: "B"},
		Target:   TargetRequest{Group: "g"},
	})

	var empty *common.EmptyAudienceError
	require.ErrorAs(t, err, &empty)
	assert.Empty(t, fx.dispatcher.calls, "no dispatch call may be issued")
	assert.Empty(t, fx.upstream.updates, "no status change recorded")
}

func TestSend_DispatchFailureLeavesPending(t *testing.T) {
	fx := newFixture(&fakeDirectory{users: []audience.User{{ID: "u1", Token: "t1"}}}, false)
	fx.upstream.notifications["n-1"] = &Notification{
		ID: "n-1", Title: "A", Body: "B", Status: StatusPending,
	}
	fx.dispatcher.err = errors.New("gateway 503")

	_, err := fx.service.Send(context.Background(), "n-1", &SendRequest{
		Original: Snapshot{Title: "A", Body: "B"},
		Current:  Edit{Title: "A", Body: "B"},
	})

	var up *common.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "dispatch notification", up.Op)
	assert.Empty(t, fx.upstream.updates, "never marked sent speculatively")
}

func TestSend_BestEffortReconciliationProceeds(t *testing.T) {
	fx := newFixture(&fakeDirectory{users: []audience.User{{ID: "u1", Token: "t1"}}}, false)
	fx.upstream.notifications["n-1"] = &Notification{
		ID: "n-1", Title: "A", Body: "old", Status: StatusPending,
	}
	fx.upstream.updateErr = errors.New("update rejected")

	_, err := fx.service.Send(context.Background(), "n-1", &SendRequest{
		Original: Snapshot{Title: "A", Body: "old"},
		Current:  Edit{Title: "A", Body: "new"},
	})
	require.NoError(t, err, "best-effort mode swallows the pre-dispatch update failure")

	require.Len(t, fx.dispatcher.calls, 1)
	assert.Equal(t, "new", fx.dispatcher.calls[0].body)
}

func TestSend_StrictReconciliationAborts(t *testing.T) {
	fx := newFixture(&fakeDirectory{users: []audience.User{{ID: "u1", Token: "t1"}}}, true)
	fx.upstream.notifications["n-1"] = &Notification{
		ID: "n-1", Title: "A", Body: "old", Status: StatusPending,
	}
	fx.upstream.updateErr = errors.New("update rejected")

	_, err := fx.service.Send(context.Background(), "n-1", &SendRequest{
		Original: Snapshot{Title: "A", Body: "old"},
		Current:  Edit{Title: "A", Body: "new"},
	})

	var up *common.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "pre-dispatch update", up.Op)
	assert.Empty(t, fx.dispatcher.calls)
}

func TestSend_FallsBackToPersistedTarget(t *testing.T) {
	dir := &fakeDirectory{groups: []audience.UserGroup{{ID: "g1", Tokens: []string{"t7"}}}}
	fx := newFixture(dir, false)
	fx.upstream.notifications["n-1"] = &Notification{
		ID: "n-1", Title: "A", Body: "B", Status: StatusPending, UserGroup: "g1",
	}

	_, err := fx.service.Send(context.Background(), "n-1", &SendRequest{
		Original: Snapshot{Title: "A", Body: "B"},
		Current:  Edit{Title: "A", Body: "B"},
	})
	require.NoError(t, err)

	require.Len(t, fx.dispatcher.calls, 1)
	assert.Equal(t, []string{"t7"}, fx.dispatcher.calls[0].tokens)
}

func TestSend_TerminalStatus(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.upstream.notifications["n-1"] = &Notification{ID: "n-1", Status: StatusSent}

	_, err := fx.service.Send(context.Background(), "n-1", &SendRequest{
		Current: Edit{Title: "A", Body: "B"},
	})

	var transition *common.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Empty(t, fx.dispatcher.calls)
}

func TestReschedule_TerminalGuardLeavesEntityUnchanged(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.upstream.notifications["n-1"] = &Notification{ID: "n-1", Status: StatusSent}
	later := time.Now().Add(time.Hour)

	err := fx.service.Reschedule(context.Background(), "n-1", &RescheduleRequest{SendAt: &later})

	var transition *common.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Empty(t, fx.upstream.cancelOps, "no write may happen")
	assert.Empty(t, fx.enqueuer.calls)
}

func TestReschedule_PastSendAt(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.upstream.notifications["n-1"] = &Notification{ID: "n-1", Status: StatusPending}
	past := time.Now().Add(-time.Hour)

	err := fx.service.Reschedule(context.Background(), "n-1", &RescheduleRequest{SendAt: &past})

	var schedule *common.InvalidScheduleError
	require.ErrorAs(t, err, &schedule)
	assert.Empty(t, fx.upstream.cancelOps)
}

func TestCancel_Idempotent(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.upstream.notifications["n-1"] = &Notification{ID: "n-1", Status: StatusPending}

	require.NoError(t, fx.service.Cancel(context.Background(), "n-1"))
	require.Len(t, fx.upstream.cancelOps, 1)
	assert.Equal(t, map[string]any{"status": "cancelled"}, fx.upstream.cancelOps[0])

	// Second cancel against the now-cancelled entity is a no-op success.
	fx.upstream.notifications["n-1"].Status = StatusCancelled
	require.NoError(t, fx.service.Cancel(context.Background(), "n-1"))
	assert.Len(t, fx.upstream.cancelOps, 1, "no second write")
}

func TestCancel_SentIsInvalidTransition(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.upstream.notifications["n-1"] = &Notification{ID: "n-1", Status: StatusSent}

	err := fx.service.Cancel(context.Background(), "n-1")

	var transition *common.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestSave_UnchangedSessionIsNoOp(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.upstream.notifications["n-1"] = &Notification{ID: "n-1", Status: StatusPending}

	cs, err := fx.service.Save(context.Background(), "n-1", &SaveRequest{
		Original: Snapshot{Title: "A", Body: "B", Data: map[string]any{}},
		Current:  Edit{Title: "A", Body: "B", Data: "  "},
	})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.Empty(t, fx.upstream.updates)
}

func TestSave_PartialUpdateCarriesOnlyChanges(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.upstream.notifications["n-1"] = &Notification{ID: "n-1", Status: StatusPending}

	_, err := fx.service.Save(context.Background(), "n-1", &SaveRequest{
		Original: Snapshot{Title: "A", Body: "B"},
		Current:  Edit{Title: "A2", Body: "B"},
	})
	require.NoError(t, err)

	require.Len(t, fx.upstream.updates, 1)
	assert.Equal(t, map[string]any{"title": "A2"}, fx.upstream.updates[0])
}

func TestSave_NotFound(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)

	_, err := fx.service.Save(context.Background(), "ghost", &SaveRequest{})

	var notFound *common.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestTestSend_RateLimited(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.limiter.allowed = false

	err := fx.service.TestSend(context.Background(), &TestSendRequest{
		Token: "t1", Title: "hi", Body: "there",
	})

	var payload *common.InvalidPayloadError
	require.ErrorAs(t, err, &payload)
	assert.Empty(t, fx.dispatcher.calls)
}

func TestTestSend_FailsOpenWhenLimiterErrors(t *testing.T) {
	fx := newFixture(&fakeDirectory{}, false)
	fx.limiter.allowed = false
	fx.limiter.err = errors.New("redis down")

	err := fx.service.TestSend(context.Background(), &TestSendRequest{
		Token: "t1", Title: "hi", Body: "there",
	})
	require.NoError(t, err)

	require.Len(t, fx.dispatcher.calls, 1)
	assert.Equal(t, []string{"t1"}, fx.dispatcher.calls[0].tokens)
	assert.Empty(t, fx.dispatcher.calls[0].notificationID)
}
