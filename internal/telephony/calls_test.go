package telephony

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

type mockCallUpdater struct {
	UpdateCallFunc func(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

func (m *mockCallUpdater) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	return m.UpdateCallFunc(sid, params)
}

func TestCalls_SayAndHangup_SendsTwiml(t *testing.T) {
	var gotSID string
	var gotParams *api.UpdateCallParams
	calls := &Calls{
		updater: &mockCallUpdater{
			UpdateCallFunc: func(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
				gotSID = sid
				gotParams = params
				return &api.ApiV2010Call{}, nil
			},
		},
		voice:    "alice",
		language: "fr-FR",
		logger:   zap.NewNop(),
	}

	err := calls.SayAndHangup(context.Background(), "CA123", "Au revoir")
	require.NoError(t, err)

	assert.Equal(t, "CA123", gotSID)
	require.NotNil(t, gotParams.Twiml)
	assert.Contains(t, *gotParams.Twiml, "Au revoir")
	assert.Contains(t, *gotParams.Twiml, "<Hangup")
}

func TestCalls_SayAndHangup_PropagatesErrors(t *testing.T) {
	calls := &Calls{
		updater: &mockCallUpdater{
			UpdateCallFunc: func(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
				return nil, errors.New("call is not in-progress")
			},
		},
		logger: zap.NewNop(),
	}

	err := calls.SayAndHangup(context.Background(), "CA123", "Au revoir")
	assert.ErrorContains(t, err, "CA123")
}

func TestCalls_SayAndHangup_RespectsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	calls := &Calls{
		updater: &mockCallUpdater{
			UpdateCallFunc: func(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
				<-release
				return nil, nil
			},
		},
		logger: zap.NewNop(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := calls.SayAndHangup(ctx, "CA123", "Au revoir")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
